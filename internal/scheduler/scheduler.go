package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/domain"
	"github.com/hamed0406/uptimeprobe/internal/probe"
	"github.com/hamed0406/uptimeprobe/internal/repo"
)

// Source supplies the authoritative site list. Snapshot must not interleave
// fn with change notifications.
type Source interface {
	Snapshot(ctx context.Context, fn func([]domain.Site)) error
}

// ResultObserver is told about every probe outcome after it was handed to
// the store. Errors are logged and otherwise ignored.
type ResultObserver interface {
	Observe(ctx context.Context, r domain.CheckResult) error
}

type Config struct {
	WriteAttempts  int
	WriteBackoff   time.Duration
	ResyncSchedule string // cron spec; empty disables periodic resync
}

var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler runs one fixed-rate probe loop per active site.
type Scheduler struct {
	log       *zap.Logger
	source    Source
	results   repo.ResultStore
	checker   probe.Checker
	cfg       Config
	observers []ResultObserver

	mu       sync.Mutex
	base     context.Context
	cancel   context.CancelFunc
	running  bool
	jobs     map[domain.SiteID]*job
	draining map[domain.SiteID]chan struct{} // loops cancelled but maybe still probing
	last     map[domain.SiteID]time.Time     // last recorded timestamp per site
	cron     *cron.Cron

	loops  sync.WaitGroup
	writes sync.WaitGroup
}

type job struct {
	interval time.Duration
	site     atomic.Pointer[domain.Site]
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(
	logger *zap.Logger,
	source Source,
	results repo.ResultStore,
	checker probe.Checker,
	cfg Config,
	observers ...ResultObserver,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteAttempts < 1 {
		cfg.WriteAttempts = 1
	}
	if cfg.WriteBackoff < 0 {
		cfg.WriteBackoff = 0
	}
	return &Scheduler{
		log:       logger,
		source:    source,
		results:   results,
		checker:   checker,
		cfg:       cfg,
		observers: observers,
		jobs:      make(map[domain.SiteID]*job),
		draining:  make(map[domain.SiteID]chan struct{}),
		last:      make(map[domain.SiteID]time.Time),
	}
}

// Start loads the site list and begins one loop per active site. Loops run
// until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.base, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	if err := s.Resync(ctx); err != nil {
		s.Stop()
		return err
	}

	if s.cfg.ResyncSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.ResyncSchedule, func() {
			if err := s.Resync(s.base); err != nil {
				s.log.Warn("scheduler_resync_error", zap.Error(err))
			}
		}); err != nil {
			s.Stop()
			return fmt.Errorf("resync schedule %q: %w", s.cfg.ResyncSchedule, err)
		}
		c.Start()
		s.mu.Lock()
		s.cron = c
		s.mu.Unlock()
	}

	s.log.Info("scheduler_started", zap.Int("active_sites", len(s.Running())))
	return nil
}

// Stop cancels every loop and blocks until in-flight probes and their
// storage writes have finished. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.cron = nil
	for id, j := range s.jobs {
		s.cancelJob(id, j)
	}
	s.cancel()
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.loops.Wait()
	s.writes.Wait()
	s.log.Info("scheduler_stopped")
}

// Reconcile brings the loop for change.Site in line with its desired state.
func (s *Scheduler) Reconcile(change domain.SiteChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.reconcileLocked(change)
}

// Resync reconciles every site from the source and cancels loops for sites
// that are no longer present.
func (s *Scheduler) Resync(ctx context.Context) error {
	return s.source.Snapshot(ctx, func(sites []domain.Site) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running {
			return
		}
		seen := make(map[domain.SiteID]struct{}, len(sites))
		for _, site := range sites {
			seen[site.ID] = struct{}{}
			s.reconcileLocked(domain.SiteChange{Kind: domain.ChangeUpsert, Site: site})
		}
		for id, j := range s.jobs {
			if _, ok := seen[id]; !ok {
				s.cancelJob(id, j)
				s.log.Info("scheduler_orphan_cancelled", zap.String("site_id", string(id)))
			}
		}
	})
}

// Running returns the IDs of sites with a live loop, sorted.
func (s *Scheduler) Running() []domain.SiteID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SiteID, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Scheduler) reconcileLocked(change domain.SiteChange) {
	id := change.Site.ID
	cur := s.jobs[id]

	if !change.Wanted() {
		if cur != nil {
			s.cancelJob(id, cur)
			s.log.Info("site_loop_cancelled", zap.String("site_id", string(id)), zap.String("reason", change.Kind.String()))
		}
		return
	}

	site := change.Site
	if cur != nil && cur.interval == site.Interval() {
		// same period: keep the timer phase, pick up URL or name edits
		cur.site.Store(&site)
		return
	}
	if cur != nil {
		s.cancelJob(id, cur)
	}
	s.startJob(site)
}

func (s *Scheduler) startJob(site domain.Site) {
	ctx, cancel := context.WithCancel(s.base)
	j := &job{interval: site.Interval(), cancel: cancel, done: make(chan struct{})}
	j.site.Store(&site)
	prev := s.draining[site.ID]
	s.jobs[site.ID] = j

	s.loops.Add(1)
	go s.loop(ctx, site.ID, j, prev)
	s.log.Info("site_loop_started",
		zap.String("site_id", string(site.ID)),
		zap.String("url", site.URL),
		zap.Int("check_interval_ms", site.CheckInterval),
	)
}

// cancelJob must be called with mu held.
func (s *Scheduler) cancelJob(id domain.SiteID, j *job) {
	j.cancel()
	delete(s.jobs, id)
	s.draining[id] = j.done
}

func (s *Scheduler) loop(ctx context.Context, id domain.SiteID, j *job, prev <-chan struct{}) {
	defer s.loops.Done()
	defer s.forget(id, j.done)
	defer close(j.done)
	// done must not close before the loop we replaced has finished probing
	defer func() {
		if prev != nil {
			<-prev
		}
	}()

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if ctx.Err() != nil {
			return
		}
		if prev != nil {
			select {
			case <-prev:
				prev = nil
			case <-ctx.Done():
				return
			}
		}
		s.runTick(id, *j.site.Load())
	}
}

func (s *Scheduler) runTick(id domain.SiteID, site domain.Site) {
	var pc panics.Catcher
	pc.Try(func() { s.tick(site) })
	if r := pc.Recovered(); r != nil {
		s.log.Error("site_tick_panic",
			zap.String("site_id", string(id)),
			zap.Error(r.AsError()),
		)
	}
}

func (s *Scheduler) tick(site domain.Site) {
	// In-flight probes are not tied to the loop context; they finish and are
	// recorded even after the site is stopped.
	res := s.checker.Check(context.Background(), site.URL)
	res.SiteID = site.ID
	res.URL = site.URL
	res.Timestamp = s.stamp(site.ID, res.Timestamp)

	s.log.Debug("probe_result",
		zap.String("site_id", string(site.ID)),
		zap.String("url", site.URL),
		zap.String("status", string(res.Status)),
		zap.Int64("response_time_ms", res.ResponseTimeMS),
		zap.String("error", res.ErrorMessage),
	)
	s.deliver(res)
}

// stamp returns t, nudged forward if needed so timestamps for one site are
// strictly increasing.
func (s *Scheduler) stamp(id domain.SiteID, t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.IsZero() {
		t = time.Now().UTC()
	}
	if prev, ok := s.last[id]; ok && !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	s.last[id] = t
	return t
}

func (s *Scheduler) forget(id domain.SiteID, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining[id] == done {
		delete(s.draining, id)
	}
	if _, live := s.jobs[id]; !live {
		if _, pending := s.draining[id]; !pending {
			delete(s.last, id)
		}
	}
}
