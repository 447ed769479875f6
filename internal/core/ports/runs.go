package ports

import (
	"context"
	"time"

	"github.com/egnyte/cloudimized/internal/core/domain"
)

// RunSource resolves automation runs possibly behind a service-account
// change. RunsFor fails with errors.CodeUnknownIdentity for a login that
// has no configured workspace mapping, and errors.CodeRunQueryError for
// transport failures; callers treat both as non-fatal.
type RunSource interface {
	// BaseURL is the pipeline system address run URLs are built from.
	BaseURL() string
	RunsFor(ctx context.Context, login string, changeTime time.Time) ([]domain.AutomationRun, error)
}
