package domain

import "time"

// HourlyBucket aggregates the checks whose timestamp falls in
// [BucketStart, BucketStart+1h).
type HourlyBucket struct {
	BucketStart     time.Time        `json:"bucket_start"`
	Count           int64            `json:"count"`
	AvgResponseTime int64            `json:"avg_response_time_ms"`
	StatusCounts    map[Status]int64 `json:"status_counts"`
}

// AggregateReport is computed on demand from stored check results.
type AggregateReport struct {
	SiteID             SiteID           `json:"site_id"`
	WindowDays         int              `json:"window_days"`
	From               time.Time        `json:"from"`
	To                 time.Time        `json:"to"`
	TotalChecks        int64            `json:"total_checks"`
	UpChecks           int64            `json:"up_checks"`
	DownChecks         int64            `json:"down_checks"`
	UptimePercentage   float64          `json:"uptime_percentage"`
	AvgResponseTime    int64            `json:"avg_response_time_ms"`
	MinResponseTime    int64            `json:"min_response_time_ms"`
	MaxResponseTime    int64            `json:"max_response_time_ms"`
	StatusDistribution map[Status]int64 `json:"status_distribution"`
	HourlyBuckets      []HourlyBucket   `json:"hourly_buckets"`
}

// ZeroStatusCounts returns a map with every status present at zero.
func ZeroStatusCounts() map[Status]int64 {
	m := make(map[Status]int64, len(Statuses))
	for _, s := range Statuses {
		m[s] = 0
	}
	return m
}
