package probe

import (
	"context"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

// Checker performs a single probe of a target URL.
//
// The returned result carries Status, ResponseTimeMS, StatusCode,
// ErrorMessage and Timestamp; SiteID and URL are filled in by the caller.
// Implementations never write to storage.
type Checker interface {
	Check(ctx context.Context, target string) domain.CheckResult
}
