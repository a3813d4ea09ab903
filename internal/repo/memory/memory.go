package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/uptimeprobe/internal/domain"
	"github.com/hamed0406/uptimeprobe/internal/repo"
)

// Store keeps sites and check results in process memory. It is safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	sites   map[domain.SiteID]domain.Site
	results map[domain.SiteID][]domain.CheckResult
}

func New() *Store {
	return &Store{
		sites:   make(map[domain.SiteID]domain.Site),
		results: make(map[domain.SiteID][]domain.CheckResult),
	}
}

var (
	_ repo.SiteStore   = (*Store)(nil)
	_ repo.ResultStore = (*Store)(nil)
)

// ---- SiteStore ----

func (m *Store) Create(ctx context.Context, s domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sites[s.ID]; exists {
		return fmt.Errorf("site %s already exists", s.ID)
	}
	m.sites[s.ID] = s
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.SiteID) (domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[id]
	if !ok {
		return domain.Site{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *Store) List(ctx context.Context) ([]domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, s)
	}
	sortSites(out)
	return out, nil
}

func (m *Store) Update(ctx context.Context, s domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[s.ID]; !ok {
		return domain.ErrNotFound
	}
	m.sites[s.ID] = s
	return nil
}

func (m *Store) Delete(ctx context.Context, id domain.SiteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sites, id)
	return nil
}

func (m *Store) SetActiveForAll(ctx context.Context, active bool, at time.Time) ([]domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed []domain.Site
	for id, s := range m.sites {
		if s.IsActive == active {
			continue
		}
		s.IsActive = active
		s.UpdatedAt = after(s.UpdatedAt, at)
		m.sites[id] = s
		changed = append(changed, s)
	}
	sortSites(changed)
	return changed, nil
}

// ---- ResultStore ----

func (m *Store) Append(ctx context.Context, r domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.SiteID] = append(m.results[r.SiteID], clone(r))
	return nil
}

func (m *Store) Query(ctx context.Context, q repo.ResultQuery) ([]domain.CheckResult, error) {
	m.mu.RLock()
	var out []domain.CheckResult
	for _, r := range m.results[q.SiteID] {
		if !q.Range.Contains(r.Timestamp) {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		out = append(out, clone(r))
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Store) Aggregate(ctx context.Context, id domain.SiteID, rng repo.TimeRange) (repo.Aggregate, error) {
	agg := repo.Aggregate{ByStatus: map[domain.Status]int64{}}
	type hourAcc struct {
		count    int64
		sum      int64
		byStatus map[domain.Status]int64
	}
	hours := map[time.Time]*hourAcc{}
	var sum int64

	m.mu.RLock()
	for _, r := range m.results[id] {
		if !rng.Contains(r.Timestamp) {
			continue
		}
		if agg.Total == 0 || r.ResponseTimeMS < agg.MinMS {
			agg.MinMS = r.ResponseTimeMS
		}
		if agg.Total == 0 || r.ResponseTimeMS > agg.MaxMS {
			agg.MaxMS = r.ResponseTimeMS
		}
		agg.Total++
		agg.ByStatus[r.Status]++
		sum += r.ResponseTimeMS

		start := r.Timestamp.UTC().Truncate(time.Hour)
		h := hours[start]
		if h == nil {
			h = &hourAcc{byStatus: map[domain.Status]int64{}}
			hours[start] = h
		}
		h.count++
		h.sum += r.ResponseTimeMS
		h.byStatus[r.Status]++
	}
	m.mu.RUnlock()

	if agg.Total > 0 {
		agg.AvgMS = float64(sum) / float64(agg.Total)
	}
	for start, h := range hours {
		agg.Hours = append(agg.Hours, repo.HourAggregate{
			Start:    start,
			Count:    h.count,
			AvgMS:    float64(h.sum) / float64(h.count),
			ByStatus: h.byStatus,
		})
	}
	sort.Slice(agg.Hours, func(i, j int) bool { return agg.Hours[i].Start.Before(agg.Hours[j].Start) })
	return agg, nil
}

func sortSites(s []domain.Site) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.Before(s[j].CreatedAt)
		}
		return s[i].ID < s[j].ID
	})
}

// after returns at, or prev+1µs when at would not move the timestamp forward.
func after(prev, at time.Time) time.Time {
	if at.After(prev) {
		return at
	}
	return prev.Add(time.Microsecond)
}

func clone(r domain.CheckResult) domain.CheckResult {
	if r.StatusCode != nil {
		c := *r.StatusCode
		r.StatusCode = &c
	}
	return r
}
