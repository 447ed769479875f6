package ports

import (
	"context"

	"github.com/egnyte/cloudimized/internal/core/domain"
)

// GitRepository is the version-control collaborator the change processor
// commits attribution results through. All operations may fail with a
// transport-level error.
type GitRepository interface {
	// Setup clones the remote or syncs an existing working tree to the
	// remote default branch.
	Setup(ctx context.Context) error
	// Clean removes all snapshot directories in preparation for a fresh
	// scan cycle.
	Clean(ctx context.Context) error
	// Changes lists modified and untracked snapshot files as changes.
	Changes(ctx context.Context) ([]*domain.Change, error)

	Stage(ctx context.Context, path string) error
	// HasPendingDiff reports whether the index differs from HEAD.
	HasPendingDiff(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) (string, error)
	// DiffLastCommit returns the patch text of the most recent commit.
	DiffLastCommit(ctx context.Context) (string, error)
	// CommitsAhead counts local commits not present on the remote branch.
	CommitsAhead(ctx context.Context) (int, error)
	// TotalCommits counts all commits reachable from HEAD.
	TotalCommits(ctx context.Context) (int, error)
	Push(ctx context.Context) error
}
