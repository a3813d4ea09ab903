package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/uptimeprobe/internal/domain"
	"github.com/hamed0406/uptimeprobe/internal/repo"
	"github.com/hamed0406/uptimeprobe/internal/repo/memory"
)

var now = time.Date(2024, 6, 15, 13, 42, 10, 0, time.UTC)

func setup(t *testing.T) (*Aggregator, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Create(context.Background(), domain.Site{ID: "s1", Name: "s1", URL: "https://s1.test", CheckInterval: 60000, IsActive: true}))
	a := New(store, store)
	a.now = func() time.Time { return now }
	return a, store
}

func add(t *testing.T, store *memory.Store, st domain.Status, ms int64, at time.Time) {
	t.Helper()
	r := domain.CheckResult{SiteID: "s1", URL: "https://s1.test", Status: st, ResponseTimeMS: ms, Timestamp: at}
	if st == domain.StatusUp {
		code := 200
		r.StatusCode = &code
	} else {
		r.ErrorMessage = "timeout"
	}
	require.NoError(t, store.Append(context.Background(), r))
}

func TestWindow_AlignsToHours(t *testing.T) {
	rng, hours := Window(now, 1)
	assert.Equal(t, 24, hours)
	assert.Equal(t, time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC), rng.From)
	assert.Equal(t, now, rng.To)

	_, hours = Window(now, 7)
	assert.Equal(t, 168, hours)
}

func TestStats_ZeroChecksIsZeroReport(t *testing.T) {
	a, _ := setup(t)
	rep, err := a.Stats(context.Background(), "s1", 7)
	require.NoError(t, err)

	assert.Zero(t, rep.TotalChecks)
	assert.Equal(t, 0.0, rep.UptimePercentage)
	assert.Zero(t, rep.AvgResponseTime)
	assert.Len(t, rep.HourlyBuckets, 168)
	assert.Equal(t, map[domain.Status]int64{domain.StatusUp: 0, domain.StatusDown: 0}, rep.StatusDistribution)
	for _, b := range rep.HourlyBuckets {
		assert.Zero(t, b.Count)
		assert.Zero(t, b.AvgResponseTime)
	}
}

func TestStats_UnknownSiteIsNotFound(t *testing.T) {
	a, _ := setup(t)
	_, err := a.Stats(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = a.Recent(context.Background(), "nope", 10, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats_RejectsWindowOutOfRange(t *testing.T) {
	a, _ := setup(t)
	for _, d := range []int{0, -1, 91} {
		_, err := a.Stats(context.Background(), "s1", d)
		assert.True(t, domain.IsValidation(err), "days=%d", d)
	}
}

func TestStats_SeventyFivePercent(t *testing.T) {
	a, store := setup(t)
	base := now.Add(-3 * time.Hour)
	for i := 0; i < 8; i++ {
		st := domain.StatusUp
		if i%4 == 3 {
			st = domain.StatusDown
		}
		add(t, store, st, 100, base.Add(time.Duration(i)*time.Minute))
	}

	rep, err := a.Stats(context.Background(), "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), rep.TotalChecks)
	assert.Equal(t, int64(6), rep.UpChecks)
	assert.Equal(t, int64(2), rep.DownChecks)
	assert.Equal(t, 75.0, rep.UptimePercentage)
	assert.Equal(t, rep.TotalChecks, rep.UpChecks+rep.DownChecks)
}

func TestStats_LatencyAndBuckets(t *testing.T) {
	a, store := setup(t)
	h := now.Truncate(time.Hour)
	add(t, store, domain.StatusUp, 100, h.Add(-2*time.Hour+time.Minute))
	add(t, store, domain.StatusUp, 201, h.Add(-2*time.Hour+2*time.Minute))
	add(t, store, domain.StatusDown, 2000, h.Add(time.Minute))
	// outside the window
	add(t, store, domain.StatusDown, 9999, h.Add(-48*time.Hour))

	rep, err := a.Stats(context.Background(), "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rep.TotalChecks)
	assert.Equal(t, int64(767), rep.AvgResponseTime) // 2301/3 = 767.0
	assert.Equal(t, int64(100), rep.MinResponseTime)
	assert.Equal(t, int64(2000), rep.MaxResponseTime)
	assert.Equal(t, 66.67, rep.UptimePercentage)

	require.Len(t, rep.HourlyBuckets, 24)
	for i := 1; i < len(rep.HourlyBuckets); i++ {
		assert.Equal(t, time.Hour, rep.HourlyBuckets[i].BucketStart.Sub(rep.HourlyBuckets[i-1].BucketStart))
	}
	twoAgo := rep.HourlyBuckets[21]
	assert.Equal(t, h.Add(-2*time.Hour), twoAgo.BucketStart)
	assert.Equal(t, int64(2), twoAgo.Count)
	assert.Equal(t, int64(151), twoAgo.AvgResponseTime) // 150.5 rounds half away from zero
	assert.Equal(t, int64(2), twoAgo.StatusCounts[domain.StatusUp])

	last := rep.HourlyBuckets[23]
	assert.Equal(t, h, last.BucketStart)
	assert.Equal(t, int64(1), last.StatusCounts[domain.StatusDown])

	var sum int64
	for _, b := range rep.HourlyBuckets {
		sum += b.Count
	}
	assert.Equal(t, rep.TotalChecks, sum, "buckets cover the same checks as totals")
}

func TestStats_IsReproducible(t *testing.T) {
	a, store := setup(t)
	for i := 0; i < 7; i++ {
		st := domain.StatusUp
		if i == 0 {
			st = domain.StatusDown
		}
		add(t, store, st, int64(10+i), now.Add(-time.Duration(i)*time.Minute))
	}
	first, err := a.Stats(context.Background(), "s1", 1)
	require.NoError(t, err)
	second, err := a.Stats(context.Background(), "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 85.71, first.UptimePercentage)
}

func TestPercentAndRound(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0, 0))
	assert.Equal(t, 100.0, Percent(5, 5))
	assert.Equal(t, 33.33, Percent(1, 3))
	assert.Equal(t, 66.67, Percent(2, 3))
	assert.Equal(t, int64(3), RoundMS(2.5))
	assert.Equal(t, int64(2), RoundMS(2.49))
}

func TestBuild_IgnoresHoursOutsideWindow(t *testing.T) {
	rng, hours := Window(now, 1)
	agg := repo.Aggregate{
		Total:    1,
		ByStatus: map[domain.Status]int64{domain.StatusUp: 1},
		Hours: []repo.HourAggregate{
			{Start: rng.From.Add(-time.Hour), Count: 5},
			{Start: rng.From, Count: 1, AvgMS: 4, ByStatus: map[domain.Status]int64{domain.StatusUp: 1}},
		},
	}
	rep := Build("s1", 1, rng, hours, agg)
	assert.Equal(t, int64(1), rep.HourlyBuckets[0].Count)
}

func TestRecent_LimitsAndFilters(t *testing.T) {
	a, store := setup(t)
	for i := 0; i < 60; i++ {
		st := domain.StatusUp
		if i%10 == 0 {
			st = domain.StatusDown
		}
		add(t, store, st, 1, now.Add(-time.Duration(i)*time.Second))
	}

	got, err := a.Recent(context.Background(), "s1", 0, "")
	require.NoError(t, err)
	assert.Len(t, got, DefaultRecentLimit)
	assert.Equal(t, now, got[0].Timestamp)

	got, err = a.Recent(context.Background(), "s1", 5000, domain.StatusDown)
	require.NoError(t, err)
	assert.Len(t, got, 6)

	_, err = a.Recent(context.Background(), "s1", 10, "sideways")
	assert.True(t, domain.IsValidation(err))
}
