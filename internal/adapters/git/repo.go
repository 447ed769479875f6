package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

const (
	branchMaster = "master"
	remoteOrigin = "origin"

	commitName  = "cloudimized"
	commitEmail = "cloudimized@localhost"
)

// Repository tracks resource snapshots in a local clone synced with a
// remote. It implements ports.GitRepository.
type Repository struct {
	remoteURL string
	directory string
	auth      transport.AuthMethod
	repo      *gogit.Repository
	logger    ports.Logger
}

// NewRepository validates credentials against the remote URL scheme.
// HTTPS remotes require a user and password (typically from the GIT_USR
// and GIT_PSW environment variables).
func NewRepository(remoteURL, directory, user, password string, logger ports.Logger) (*Repository, error) {
	r := &Repository{
		remoteURL: remoteURL,
		directory: directory,
		logger:    logger,
	}
	switch {
	case strings.HasPrefix(remoteURL, "https://"):
		if user == "" || password == "" {
			return nil, apperrors.New(apperrors.CodeGitConfigError,
				"missing credentials for git HTTPS method")
		}
		r.auth = &githttp.BasicAuth{Username: user, Password: password}
	case strings.HasPrefix(remoteURL, "git@"):
		// SSH auth comes from the ambient agent/key setup.
	default:
		return nil, apperrors.Newf(apperrors.CodeGitConfigError,
			"incorrect git URL: %q", remoteURL)
	}
	return r, nil
}

// Setup opens the local clone and hard-resets it onto the remote master
// branch, cloning first when the directory does not exist yet.
func (r *Repository) Setup(ctx context.Context) error {
	if _, err := os.Stat(r.directory); err == nil {
		r.logger.Infof(ctx, "verifying git repo at %q", r.directory)
		repo, err := gogit.PlainOpen(r.directory)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.CodeGitError,
				"directory %q is not a git repo", r.directory)
		}
		r.repo = repo
		if err := r.sync(ctx); err != nil {
			return apperrors.Wrap(err, apperrors.CodeGitError, "issue syncing remote")
		}
		return nil
	}
	r.logger.Infof(ctx, "local git repo not found, cloning %s into %s", r.remoteURL, r.directory)
	repo, err := gogit.PlainCloneContext(ctx, r.directory, false, &gogit.CloneOptions{
		URL:           r.remoteURL,
		Auth:          r.auth,
		ReferenceName: plumbing.NewBranchReferenceName(branchMaster),
	})
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeGitError,
			"issue cloning git repo %q", r.remoteURL)
	}
	r.repo = repo
	return nil
}

func (r *Repository) sync(ctx context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Reset(&gogit.ResetOptions{Mode: gogit.HardReset}); err != nil {
		return err
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branchMaster),
		Force:  true,
	}); err != nil {
		return err
	}
	r.logger.Infof(ctx, "syncing local repo with remote")
	err = r.repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: remoteOrigin, Auth: r.auth})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return err
	}
	remote, err := r.remoteMasterHash()
	if err != nil {
		return err
	}
	return wt.Reset(&gogit.ResetOptions{Mode: gogit.HardReset, Commit: remote})
}

// Clean removes every directory under the clone except .git, preparing
// the tree for a fresh snapshot pass. Plain files like README.md stay.
func (r *Repository) Clean(ctx context.Context) error {
	if r.repo == nil {
		return apperrors.Newf(apperrors.CodeGitError, "repo %q needs to be set up first", r.remoteURL)
	}
	entries, err := os.ReadDir(r.directory)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeGitError,
			"issue retrieving directories in %q", r.directory)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == gogit.GitDirName {
			continue
		}
		r.logger.Infof(ctx, "removing directory %q", filepath.Join(r.directory, e.Name()))
		if err := os.RemoveAll(filepath.Join(r.directory, e.Name())); err != nil {
			return apperrors.Wrapf(err, apperrors.CodeGitError,
				"issue removing directories in %q", r.directory)
		}
	}
	return nil
}

// Changes lists modified and untracked snapshot files as Change values.
// Paths outside the provider/resource/target.yaml layout are skipped.
func (r *Repository) Changes(ctx context.Context) ([]*domain.Change, error) {
	if r.repo == nil {
		return nil, apperrors.New(apperrors.CodeGitError, "git repo not set up")
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeGitError, "issue opening worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeGitError, "issue reading worktree status")
	}
	var changes []*domain.Change
	for file, s := range status {
		if s.Worktree == gogit.Unmodified && s.Staging == gogit.Unmodified {
			continue
		}
		parts := strings.Split(file, "/")
		if len(parts) != 3 {
			r.logger.Debugf(ctx, "skipping change outside snapshot layout: %q", file)
			continue
		}
		target := strings.TrimSuffix(parts[2], filepath.Ext(parts[2]))
		changes = append(changes, domain.NewChange(parts[0], parts[1], target))
	}
	return changes, nil
}

func (r *Repository) Stage(ctx context.Context, path string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	_, err = wt.Add(path)
	return err
}

// HasPendingDiff reports whether anything is staged against HEAD.
func (r *Repository) HasPendingDiff(ctx context.Context) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		switch s.Staging {
		case gogit.Unmodified, gogit.Untracked:
		default:
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) Commit(ctx context.Context, message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", err
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: commitName, Email: commitEmail, When: time.Now()},
	})
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// DiffLastCommit returns the textual patch between HEAD and its first
// parent. A root commit yields an empty diff.
func (r *Repository) DiffLastCommit(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", err
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", err
	}
	if commit.NumParents() == 0 {
		return "", nil
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return "", err
	}
	patch, err := parent.Patch(commit)
	if err != nil {
		return "", err
	}
	return patch.String(), nil
}

// CommitsAhead counts local commits not yet on the remote master branch.
func (r *Repository) CommitsAhead(ctx context.Context) (int, error) {
	remote, err := r.remoteMasterHash()
	if err != nil {
		return 0, err
	}
	head, err := r.repo.Head()
	if err != nil {
		return 0, err
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	count := 0
	for {
		commit, err := iter.Next()
		if err != nil {
			return 0, err
		}
		if commit.Hash == remote {
			return count, nil
		}
		count++
	}
}

func (r *Repository) TotalCommits(ctx context.Context) (int, error) {
	head, err := r.repo.Head()
	if err != nil {
		return 0, err
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) Push(ctx context.Context) error {
	err := r.repo.PushContext(ctx, &gogit.PushOptions{RemoteName: remoteOrigin, Auth: r.auth})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return apperrors.Wrap(err, apperrors.CodeGitError, "issue pushing local changes to remote")
	}
	return nil
}

// Directory is the local clone path, used by snapshot writers.
func (r *Repository) Directory() string {
	return r.directory
}

func (r *Repository) remoteMasterHash() (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteOrigin, branchMaster), true)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}
