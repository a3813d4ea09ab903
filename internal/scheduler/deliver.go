package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

const maxWriteBackoff = 30 * time.Second

// deliver hands res to the store and observers without blocking the loop.
func (s *Scheduler) deliver(res domain.CheckResult) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx := context.Background()
		s.appendWithRetry(ctx, res)
		for _, o := range s.observers {
			if err := o.Observe(ctx, res); err != nil {
				s.log.Warn("result_observer_error",
					zap.String("site_id", string(res.SiteID)),
					zap.Error(err),
				)
			}
		}
	}()
}

// appendWithRetry makes up to WriteAttempts attempts with exponential backoff
// and drops the result after the last failure.
func (s *Scheduler) appendWithRetry(ctx context.Context, res domain.CheckResult) bool {
	backoff := s.cfg.WriteBackoff
	var err error
	for attempt := 1; attempt <= s.cfg.WriteAttempts; attempt++ {
		if err = s.results.Append(ctx, res); err == nil {
			return true
		}
		if attempt == s.cfg.WriteAttempts {
			break
		}
		s.log.Warn("store_append_retry",
			zap.String("site_id", string(res.SiteID)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if !sleepCtx(ctx, backoff) {
			break
		}
		backoff = min(backoff*2, maxWriteBackoff)
	}
	s.log.Error("store_append_dropped",
		zap.String("site_id", string(res.SiteID)),
		zap.String("url", res.URL),
		zap.String("status", string(res.Status)),
		zap.Time("timestamp", res.Timestamp),
		zap.Int("attempts", s.cfg.WriteAttempts),
		zap.Error(err),
	)
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
