package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolp(b bool) *bool { return &b }
func intp(i int) *int    { return &i }
func strp(s string) *string {
	return &s
}

func TestValidateInterval_Bounds(t *testing.T) {
	cases := []struct {
		ms int
		ok bool
	}{
		{999, false},
		{1000, true},
		{60000, true},
		{300000, true},
		{300001, false},
		{-5, false},
	}
	for _, c := range cases {
		err := ValidateInterval(c.ms)
		if c.ok {
			assert.NoError(t, err, "interval %d", c.ms)
			continue
		}
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), "interval %d should be rejected", c.ms)
		assert.Equal(t, "check_interval_ms", ve.Field)
	}
}

func TestNewSite_DefaultsAndNormalizes(t *testing.T) {
	s, err := NewSite(SiteInput{Name: "  Example ", URL: "https://EXAMPLE.com:443/"})
	require.NoError(t, err)
	assert.Equal(t, "Example", s.Name)
	assert.Equal(t, "https://example.com", s.URL)
	assert.Equal(t, DefaultCheckInterval, s.CheckInterval)
	assert.True(t, s.IsActive)

	s, err = NewSite(SiteInput{Name: "x", URL: "http://a.test", CheckInterval: 5000, IsActive: boolp(false)})
	require.NoError(t, err)
	assert.False(t, s.IsActive)
	assert.Equal(t, 5000, s.CheckInterval)
}

func TestNewSite_Rejects(t *testing.T) {
	cases := map[string]SiteInput{
		"empty name":     {URL: "https://example.com"},
		"ftp url":        {Name: "x", URL: "ftp://example.com"},
		"relative url":   {Name: "x", URL: "/health"},
		"no host":        {Name: "x", URL: "https://"},
		"short interval": {Name: "x", URL: "https://example.com", CheckInterval: 500},
		"long interval":  {Name: "x", URL: "https://example.com", CheckInterval: 300001},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSite(in)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}
}

func TestSitePatch_Apply(t *testing.T) {
	base := Site{ID: "s1", Name: "a", URL: "https://a.test", CheckInterval: 1000, IsActive: true}

	got, err := SitePatch{CheckInterval: intp(2000), IsActive: boolp(false)}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 2000, got.CheckInterval)
	assert.False(t, got.IsActive)
	assert.Equal(t, base.URL, got.URL)

	_, err = SitePatch{CheckInterval: intp(0)}.Apply(base)
	assert.True(t, IsValidation(err))

	_, err = SitePatch{URL: strp("mailto:x@y")}.Apply(base)
	assert.True(t, IsValidation(err))

	assert.True(t, SitePatch{}.Empty())
}

func TestIsValidHTTPURL(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"http://EXAMPLE.com", true},
		{"ftp://x", false},
		{"", false},
		{"https://", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsValidHTTPURL(c.in), "IsValidHTTPURL(%q)", c.in)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://EXAMPLE.com/", "https://example.com"},
		{"http://example.com:80", "http://example.com"},
		{"https://example.com:443/", "https://example.com"},
		{"https://example.com/p/", "https://example.com/p/"},
		{"http://example.com:8080/x?q=1", "http://example.com:8080/x?q=1"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeURL(c.in), "NormalizeURL(%q)", c.in)
	}
}

func TestCheckResult_StatusCodeOmittedWhenAbsent(t *testing.T) {
	b, err := json.Marshal(CheckResult{SiteID: "s1", Status: StatusDown, ResponseTimeMS: 2000, ErrorMessage: "timeout"})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	_, has := m["status_code"]
	assert.False(t, has)
	assert.Equal(t, "timeout", m["error_message"])
}

func TestSiteChange_Wanted(t *testing.T) {
	assert.True(t, SiteChange{Site: Site{IsActive: true}}.Wanted())
	assert.False(t, SiteChange{Site: Site{IsActive: false}}.Wanted())
	assert.False(t, SiteChange{Kind: ChangeDelete, Site: Site{IsActive: true}}.Wanted())
}
