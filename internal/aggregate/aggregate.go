package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hamed0406/uptimeprobe/internal/domain"
	"github.com/hamed0406/uptimeprobe/internal/repo"
)

const (
	MinWindowDays      = 1
	MaxWindowDays      = 90
	DefaultRecentLimit = 50
	MaxRecentLimit     = 1000
)

// SiteGetter resolves a site so unknown IDs can be told apart from sites
// without checks.
type SiteGetter interface {
	Get(ctx context.Context, id domain.SiteID) (domain.Site, error)
}

// Aggregator answers statistics queries from stored check results. It holds
// no state of its own.
type Aggregator struct {
	sites   SiteGetter
	results repo.ResultStore
	now     func() time.Time
}

func New(sites SiteGetter, results repo.ResultStore) *Aggregator {
	return &Aggregator{
		sites:   sites,
		results: results,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Window returns the range covering the 24*days UTC hours ending with the
// hour that contains now, and the number of hourly buckets in it.
func Window(now time.Time, days int) (repo.TimeRange, int) {
	hours := 24 * days
	now = now.UTC()
	from := now.Truncate(time.Hour).Add(-time.Duration(hours-1) * time.Hour)
	return repo.TimeRange{From: from, To: now}, hours
}

// Stats computes the report for a site over the last windowDays days.
func (a *Aggregator) Stats(ctx context.Context, id domain.SiteID, windowDays int) (domain.AggregateReport, error) {
	if windowDays < MinWindowDays || windowDays > MaxWindowDays {
		return domain.AggregateReport{}, &domain.ValidationError{
			Field:  "days",
			Reason: fmt.Sprintf("must be between %d and %d", MinWindowDays, MaxWindowDays),
		}
	}
	if _, err := a.sites.Get(ctx, id); err != nil {
		return domain.AggregateReport{}, err
	}

	rng, hours := Window(a.now(), windowDays)
	agg, err := a.results.Aggregate(ctx, id, rng)
	if err != nil {
		return domain.AggregateReport{}, fmt.Errorf("aggregate %s: %w", id, err)
	}
	return Build(id, windowDays, rng, hours, agg), nil
}

// Build turns raw store aggregates into a report with rounded figures and
// exactly hours contiguous buckets starting at rng.From.
func Build(id domain.SiteID, windowDays int, rng repo.TimeRange, hours int, agg repo.Aggregate) domain.AggregateReport {
	rep := domain.AggregateReport{
		SiteID:             id,
		WindowDays:         windowDays,
		From:               rng.From,
		To:                 rng.To,
		StatusDistribution: domain.ZeroStatusCounts(),
		HourlyBuckets:      make([]domain.HourlyBucket, hours),
	}
	for i := range rep.HourlyBuckets {
		rep.HourlyBuckets[i] = domain.HourlyBucket{
			BucketStart:  rng.From.Add(time.Duration(i) * time.Hour),
			StatusCounts: domain.ZeroStatusCounts(),
		}
	}

	if agg.Total > 0 {
		rep.TotalChecks = agg.Total
		for st, n := range agg.ByStatus {
			rep.StatusDistribution[st] += n
		}
		rep.UpChecks = rep.StatusDistribution[domain.StatusUp]
		rep.DownChecks = rep.StatusDistribution[domain.StatusDown]
		rep.UptimePercentage = Percent(rep.UpChecks, rep.TotalChecks)
		rep.AvgResponseTime = RoundMS(agg.AvgMS)
		rep.MinResponseTime = agg.MinMS
		rep.MaxResponseTime = agg.MaxMS
	}

	for _, h := range agg.Hours {
		i := int(h.Start.Sub(rng.From) / time.Hour)
		if i < 0 || i >= hours {
			continue
		}
		b := &rep.HourlyBuckets[i]
		b.Count = h.Count
		b.AvgResponseTime = RoundMS(h.AvgMS)
		for st, n := range h.ByStatus {
			b.StatusCounts[st] += n
		}
	}
	return rep
}

// Percent returns 100*part/total rounded to two decimals, or 0 when total is 0.
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*100/float64(total)*100) / 100
}

// RoundMS rounds a latency to whole milliseconds, half away from zero.
func RoundMS(ms float64) int64 {
	if math.IsNaN(ms) {
		return 0
	}
	return int64(math.Round(ms))
}

// Recent returns the latest results for a site, most recent first. A
// non-positive limit selects DefaultRecentLimit.
func (a *Aggregator) Recent(ctx context.Context, id domain.SiteID, limit int, status domain.Status) ([]domain.CheckResult, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	if status != "" && !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "must be up or down"}
	}
	if _, err := a.sites.Get(ctx, id); err != nil {
		return nil, err
	}
	out, err := a.results.Query(ctx, repo.ResultQuery{SiteID: id, Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("recent %s: %w", id, err)
	}
	if out == nil {
		out = []domain.CheckResult{}
	}
	return out, nil
}
