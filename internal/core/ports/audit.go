package ports

import (
	"context"
	"time"

	"github.com/egnyte/cloudimized/internal/core/domain"
)

// AuditLogSource correlates a changed resource against a cloud audit log.
// Query returns a bounded, most-recent-first list of entries recorded at
// or after since. Data-shape problems in individual records degrade to
// zero-valued fields; only a transport or auth failure returns an error.
type AuditLogSource interface {
	Provider() string
	Query(ctx context.Context, resourceType, targetID string, since time.Time) ([]domain.AuditLogEntry, error)
}
