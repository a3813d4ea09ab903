package domain

import (
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MinCheckInterval     = 1000
	MaxCheckInterval     = 300000
	DefaultCheckInterval = 60000
	MaxNameLength        = 100
)

// SiteInput carries the caller-supplied fields for a new site.
// A zero CheckInterval selects DefaultCheckInterval; a nil IsActive means active.
type SiteInput struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	CheckInterval int    `json:"check_interval_ms"`
	IsActive      *bool  `json:"is_active"`
}

// SitePatch carries a partial update; nil fields are left unchanged.
type SitePatch struct {
	Name          *string `json:"name"`
	URL           *string `json:"url"`
	CheckInterval *int    `json:"check_interval_ms"`
	IsActive      *bool   `json:"is_active"`
}

// Empty reports whether the patch changes nothing.
func (p SitePatch) Empty() bool {
	return p.Name == nil && p.URL == nil && p.CheckInterval == nil && p.IsActive == nil
}

// NewSite validates in and returns the normalized site without ID or timestamps.
func NewSite(in SiteInput) (Site, error) {
	if in.CheckInterval == 0 {
		in.CheckInterval = DefaultCheckInterval
	}
	s := Site{
		Name:          strings.TrimSpace(in.Name),
		URL:           strings.TrimSpace(in.URL),
		CheckInterval: in.CheckInterval,
		IsActive:      in.IsActive == nil || *in.IsActive,
	}
	if err := ValidateName(s.Name); err != nil {
		return Site{}, err
	}
	if !IsValidHTTPURL(s.URL) {
		return Site{}, invalid("url", "must be an absolute http or https URL")
	}
	s.URL = NormalizeURL(s.URL)
	if err := ValidateInterval(s.CheckInterval); err != nil {
		return Site{}, err
	}
	return s, nil
}

// Apply validates p and returns s with the patch applied.
func (p SitePatch) Apply(s Site) (Site, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := ValidateName(name); err != nil {
			return Site{}, err
		}
		s.Name = name
	}
	if p.URL != nil {
		raw := strings.TrimSpace(*p.URL)
		if !IsValidHTTPURL(raw) {
			return Site{}, invalid("url", "must be an absolute http or https URL")
		}
		s.URL = NormalizeURL(raw)
	}
	if p.CheckInterval != nil {
		if err := ValidateInterval(*p.CheckInterval); err != nil {
			return Site{}, err
		}
		s.CheckInterval = *p.CheckInterval
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	return s, nil
}

func ValidateInterval(ms int) error {
	if ms < MinCheckInterval || ms > MaxCheckInterval {
		return invalid("check_interval_ms", "must be between %d and %d", MinCheckInterval, MaxCheckInterval)
	}
	return nil
}

func ValidateName(name string) error {
	if name == "" {
		return invalid("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return invalid("name", "must be at most %d characters", MaxNameLength)
	}
	return nil
}

// IsValidHTTPURL accepts absolute http/https URLs with a host.
func IsValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// NormalizeURL lowercases scheme and host, drops default ports and a bare "/" path.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	if u.Path == "/" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = ""
	}
	return u.String()
}
