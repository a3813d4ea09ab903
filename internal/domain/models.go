package domain

import "time"

type SiteID string

// Site is the desired monitoring state for one external website.
// CheckInterval is in milliseconds.
type Site struct {
	ID            SiteID    `json:"id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	CheckInterval int       `json:"check_interval_ms"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Interval returns CheckInterval as a time.Duration.
func (s Site) Interval() time.Duration {
	return time.Duration(s.CheckInterval) * time.Millisecond
}

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Statuses lists every status value in reporting order.
var Statuses = []Status{StatusUp, StatusDown}

func (s Status) Valid() bool {
	return s == StatusUp || s == StatusDown
}

// CheckResult is the immutable record of one completed probe.
// StatusCode is nil when no HTTP response was received.
type CheckResult struct {
	SiteID         SiteID    `json:"site_id"`
	URL            string    `json:"url"`
	Status         Status    `json:"status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	StatusCode     *int      `json:"status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Up reports whether the probe succeeded.
func (r CheckResult) Up() bool { return r.Status == StatusUp }

type ChangeKind int

const (
	ChangeUpsert ChangeKind = iota
	ChangeDelete
)

func (k ChangeKind) String() string {
	if k == ChangeDelete {
		return "delete"
	}
	return "upsert"
}

// SiteChange is emitted by the registry after a site mutation is persisted.
// For ChangeDelete only Site.ID is meaningful.
type SiteChange struct {
	Kind ChangeKind
	Site Site
}

// Wanted reports whether the change leaves the site in a probed state.
func (c SiteChange) Wanted() bool {
	return c.Kind != ChangeDelete && c.Site.IsActive
}
