package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	require.Equal(t, domain.StatusUp, out.Status, "%+v", out)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, 200, *out.StatusCode)
	assert.Empty(t, out.ErrorMessage)
	assert.GreaterOrEqual(t, out.ResponseTimeMS, int64(0))
	assert.False(t, out.Timestamp.IsZero())
}

func TestHTTPChecker_AnyTwoHundredIsUp(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	out := NewHTTPChecker(time.Second).Check(context.Background(), s.URL)
	require.Equal(t, domain.StatusUp, out.Status)
	assert.Equal(t, 204, *out.StatusCode)
}

func TestHTTPChecker_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	require.Equal(t, domain.StatusDown, out.Status)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, 500, *out.StatusCode)
	assert.Equal(t, MsgNonSuccess, out.ErrorMessage)
}

func TestHTTPChecker_NotModifiedIsDown(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer s.Close()

	out := NewHTTPChecker(time.Second).Check(context.Background(), s.URL)
	assert.Equal(t, domain.StatusDown, out.Status)
	assert.Equal(t, 304, *out.StatusCode)
}

func TestHTTPChecker_TimeoutRecordsTimeoutValue(t *testing.T) {
	// Server holds the request longer than the client timeout.
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		out := chk.Check(context.Background(), s.URL)
		require.Equal(t, domain.StatusDown, out.Status)
		assert.Nil(t, out.StatusCode)
		assert.Equal(t, int64(50), out.ResponseTimeMS)
		assert.Equal(t, MsgTimeout, out.ErrorMessage)
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := s.URL
	s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), addr)
	require.Equal(t, domain.StatusDown, out.Status)
	assert.Nil(t, out.StatusCode)
	assert.NotEmpty(t, out.ErrorMessage)
	assert.NotEqual(t, MsgTimeout, out.ErrorMessage)
	assert.GreaterOrEqual(t, out.ResponseTimeMS, int64(0))
	assert.Less(t, out.ResponseTimeMS, int64(2000))
}

func TestHTTPChecker_BadURL(t *testing.T) {
	out := NewHTTPChecker(time.Second).Check(context.Background(), "http://bad host/")
	assert.Equal(t, domain.StatusDown, out.Status)
	assert.NotEmpty(t, out.ErrorMessage)
}

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, ClampTimeout(0))
	assert.Equal(t, MaxTimeout, ClampTimeout(time.Hour))
	assert.Equal(t, 2*time.Second, ClampTimeout(2*time.Second))
}
