package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/domain"
	"github.com/hamed0406/uptimeprobe/internal/repo"
)

// Observer receives a change after it has been persisted.
type Observer interface {
	Reconcile(change domain.SiteChange)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(domain.SiteChange)

func (f ObserverFunc) Reconcile(c domain.SiteChange) { f(c) }

// Registry is the single source of truth for site desired state. Every
// mutation is validated, persisted, and then announced to observers in
// persistence order.
type Registry struct {
	store repo.SiteStore
	log   *zap.Logger
	now   func() time.Time

	mu        sync.Mutex // serializes mutations with their notifications
	observers []Observer
}

func New(store repo.SiteStore, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers o for every future change.
func (r *Registry) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) Create(ctx context.Context, in domain.SiteInput) (domain.Site, error) {
	site, err := domain.NewSite(in)
	if err != nil {
		return domain.Site{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	site.ID = domain.SiteID(uuid.NewString())
	site.CreatedAt = now
	site.UpdatedAt = now
	if err := r.store.Create(ctx, site); err != nil {
		return domain.Site{}, fmt.Errorf("create site: %w", err)
	}
	r.log.Info("site_created",
		zap.String("site_id", string(site.ID)),
		zap.String("url", site.URL),
		zap.Int("check_interval_ms", site.CheckInterval),
		zap.Bool("is_active", site.IsActive),
	)
	r.notify(domain.SiteChange{Kind: domain.ChangeUpsert, Site: site})
	return site, nil
}

func (r *Registry) Get(ctx context.Context, id domain.SiteID) (domain.Site, error) {
	return r.store.Get(ctx, id)
}

// List returns every site ordered by creation time.
func (r *Registry) List(ctx context.Context) ([]domain.Site, error) {
	return r.store.List(ctx)
}

func (r *Registry) Update(ctx context.Context, id domain.SiteID, patch domain.SitePatch) (domain.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.Site{}, err
	}
	next, err := patch.Apply(cur)
	if err != nil {
		return domain.Site{}, err
	}
	if patch.Empty() {
		return cur, nil
	}
	next.UpdatedAt = advance(cur.UpdatedAt, r.now())
	if err := r.store.Update(ctx, next); err != nil {
		return domain.Site{}, err
	}
	r.log.Info("site_updated",
		zap.String("site_id", string(next.ID)),
		zap.String("url", next.URL),
		zap.Int("check_interval_ms", next.CheckInterval),
		zap.Bool("is_active", next.IsActive),
	)
	r.notify(domain.SiteChange{Kind: domain.ChangeUpsert, Site: next})
	return next, nil
}

func (r *Registry) Delete(ctx context.Context, id domain.SiteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.log.Info("site_deleted", zap.String("site_id", string(id)))
	r.notify(domain.SiteChange{Kind: domain.ChangeDelete, Site: domain.Site{ID: id}})
	return nil
}

// SetActiveForAll sets every site's IsActive to active in one store update and returns
// how many sites changed. Repeating the call returns 0.
func (r *Registry) SetActiveForAll(ctx context.Context, active bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed, err := r.store.SetActiveForAll(ctx, active, r.now())
	if err != nil {
		return 0, fmt.Errorf("set active for all: %w", err)
	}
	r.log.Info("sites_set_active",
		zap.Bool("is_active", active),
		zap.Int("affected", len(changed)),
	)
	for _, s := range changed {
		r.notify(domain.SiteChange{Kind: domain.ChangeUpsert, Site: s})
	}
	return len(changed), nil
}

// notify must be called with mu held.
func (r *Registry) notify(c domain.SiteChange) {
	for _, o := range r.observers {
		o.Reconcile(c)
	}
}

// advance keeps UpdatedAt strictly increasing even when the clock does not move.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// Snapshot calls fn with the current site list while holding the mutation
// lock, so no change notification can interleave with fn.
func (r *Registry) Snapshot(ctx context.Context, fn func([]domain.Site)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sites, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	fn(sites)
	return nil
}
