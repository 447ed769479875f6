package ports

import (
	"context"

	"github.com/egnyte/cloudimized/internal/core/domain"
)

// Notifier delivers a finalized change to an external channel.
// A failed Post must not affect other notifiers or the scan.
type Notifier interface {
	Name() string
	Post(ctx context.Context, change *domain.Change) error
}
