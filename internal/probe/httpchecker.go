package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

const (
	// MaxTimeout bounds every probe regardless of the site's interval.
	MaxTimeout     = 30 * time.Second
	DefaultTimeout = 10 * time.Second

	MsgTimeout    = "timeout"
	MsgNonSuccess = "non-success status"

	userAgent    = "uptimeprobe/1.0"
	maxBodyDrain = 64 << 10
)

// ClampTimeout returns d bounded to (0, MaxTimeout]; non-positive values select DefaultTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

type HTTPChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		// No Client.Timeout: the per-request context carries the deadline so
		// timeouts can be told apart from other transport errors.
		Client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Timeout: ClampTimeout(timeout),
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) domain.CheckResult {
	timeout := ClampTimeout(h.Timeout)
	start := time.Now()
	res := domain.CheckResult{Status: domain.StatusDown, Timestamp: start.UTC()}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		res.ErrorMessage = err.Error()
		return res
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.Client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(reqCtx, err) {
			res.ResponseTimeMS = timeout.Milliseconds()
			res.ErrorMessage = MsgTimeout
			return res
		}
		res.ResponseTimeMS = elapsed.Milliseconds()
		res.ErrorMessage = failureText(err)
		return res
	}
	defer resp.Body.Close()
	// drain a bounded amount so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	code := resp.StatusCode
	res.StatusCode = &code
	res.ResponseTimeMS = elapsed.Milliseconds()
	if code >= 200 && code <= 299 {
		res.Status = domain.StatusUp
		return res
	}
	res.ErrorMessage = MsgNonSuccess
	return res
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// failureText strips the "Get <url>:" prefix net/http adds.
func failureText(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return err.Error()
}
