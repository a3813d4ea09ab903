package repo

import (
	"context"
	"time"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

// Ports implemented by the memory and postgres adapters.

// SiteStore persists site desired state. Get, Update and Delete return
// domain.ErrNotFound for unknown IDs.
type SiteStore interface {
	Create(ctx context.Context, s domain.Site) error
	Get(ctx context.Context, id domain.SiteID) (domain.Site, error)
	List(ctx context.Context) ([]domain.Site, error)
	Update(ctx context.Context, s domain.Site) error
	Delete(ctx context.Context, id domain.SiteID) error
	// SetActiveForAll flips every site whose flag differs from active in one
	// atomic operation and returns the changed sites.
	SetActiveForAll(ctx context.Context, active bool, at time.Time) ([]domain.Site, error)
}

// ResultStore is the append-only check event log.
type ResultStore interface {
	Append(ctx context.Context, r domain.CheckResult) error
	// Query returns matching results, most recent first.
	Query(ctx context.Context, q ResultQuery) ([]domain.CheckResult, error)
	Aggregate(ctx context.Context, id domain.SiteID, rng TimeRange) (Aggregate, error)
}

// TimeRange is inclusive at both ends; a zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

type ResultQuery struct {
	SiteID domain.SiteID
	Range  TimeRange
	Status domain.Status // empty matches any status
	Limit  int           // <= 0 means no limit
	Offset int
}

// Aggregate holds the raw primitives the aggregator needs. Hours lists only
// hours with at least one check, ascending, keyed by UTC hour start.
type Aggregate struct {
	Total    int64
	ByStatus map[domain.Status]int64
	MinMS    int64
	MaxMS    int64
	AvgMS    float64
	Hours    []HourAggregate
}

type HourAggregate struct {
	Start    time.Time
	Count    int64
	AvgMS    float64
	ByStatus map[domain.Status]int64
}
