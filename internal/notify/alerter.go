package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

type alertState struct {
	up         bool
	lastSeen   time.Time
	lastSentAt time.Time
}

// Alerter watches probe results and notifies on up/down transitions.
// Down alerts respect Cooldown; recovery alerts bypass it.
type Alerter struct {
	notifier Notifier
	cfg      AlerterConfig
	log      *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	state map[domain.SiteID]alertState
}

func NewAlerter(notifier Notifier, cfg AlerterConfig, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		state:    map[domain.SiteID]alertState{},
	}
}

// Observe records r and sends an alert when the site changed state.
func (a *Alerter) Observe(ctx context.Context, r domain.CheckResult) error {
	title, send := a.decide(r)
	if !send {
		return nil
	}
	if err := a.notifier.Send(ctx, title, alertText(r)); err != nil {
		return fmt.Errorf("send alert for %s: %w", r.SiteID, err)
	}
	a.log.Info("alert_sent",
		zap.String("site_id", string(r.SiteID)),
		zap.String("url", r.URL),
		zap.String("status", string(r.Status)),
	)
	return nil
}

func (a *Alerter) decide(r domain.CheckResult) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	up := r.Up()
	prev, known := a.state[r.SiteID]
	// deliveries can complete out of order
	if known && !r.Timestamp.After(prev.lastSeen) {
		return "", false
	}

	stateChanged := !known || prev.up != up
	cooled := prev.lastSentAt.IsZero() || now.Sub(prev.lastSentAt) >= a.cfg.Cooldown

	downAlert := stateChanged && !up && cooled
	recoveryAlert := known && stateChanged && up && a.cfg.AlertOnRecovery

	next := alertState{up: up, lastSeen: r.Timestamp, lastSentAt: prev.lastSentAt}
	if downAlert || recoveryAlert {
		next.lastSentAt = now
	}
	a.state[r.SiteID] = next

	switch {
	case downAlert:
		return "🔴 Site DOWN", true
	case recoveryAlert:
		return "🟢 Site RECOVERED", true
	}
	return "", false
}

// Reconcile forgets alert state for deleted sites.
func (a *Alerter) Reconcile(c domain.SiteChange) {
	if c.Kind != domain.ChangeDelete {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.state, c.Site.ID)
}

func alertText(r domain.CheckResult) string {
	httpTxt := "n/a"
	if r.StatusCode != nil {
		httpTxt = fmt.Sprintf("%d", *r.StatusCode)
	}
	reason := r.ErrorMessage
	if reason == "" {
		reason = "ok"
	}
	return fmt.Sprintf(
		"URL: %s\nHTTP: %s\nLatency: %d ms\nReason: %s\nChecked: %s",
		r.URL, httpTxt, r.ResponseTimeMS, reason, r.Timestamp.Format(time.RFC3339),
	)
}
