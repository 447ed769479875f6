package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// ChangeProcessor attributes detected configuration changes to their
// authors, commits them with an explanatory message and fans the result
// out to the configured notifiers.
type ChangeProcessor struct {
	repo         ports.GitRepository
	auditSources map[string]ports.AuditLogSource
	runSource    ports.RunSource
	classifier   *Classifier
	tickets      *TicketExtractor
	notifiers    []ports.Notifier
	scanInterval time.Duration
	logger       ports.Logger
}

// ProcessorParams bundles the collaborators of a ChangeProcessor.
// RunSource, Tickets and Notifiers are optional.
type ProcessorParams struct {
	Repo         ports.GitRepository
	AuditSources map[string]ports.AuditLogSource
	RunSource    ports.RunSource
	Classifier   *Classifier
	Tickets      *TicketExtractor
	Notifiers    []ports.Notifier
	ScanInterval time.Duration
	Logger       ports.Logger
}

func NewChangeProcessor(p ProcessorParams) *ChangeProcessor {
	return &ChangeProcessor{
		repo:         p.Repo,
		auditSources: p.AuditSources,
		runSource:    p.RunSource,
		classifier:   p.Classifier,
		tickets:      p.Tickets,
		notifiers:    p.Notifiers,
		scanInterval: p.ScanInterval,
		logger:       p.Logger,
	}
}

// Process attributes and commits every change in order, then pushes the
// accumulated commits. Staging, commit and push failures abort the
// batch; commits created before the failure stay committed.
func (p *ChangeProcessor) Process(ctx context.Context, changes []*domain.Change, refTime time.Time) error {
	for _, change := range changes {
		if err := p.processChange(ctx, change, refTime); err != nil {
			return err
		}
	}

	count, err := p.repo.CommitsAhead(ctx)
	if err != nil {
		p.logger.Warnf(ctx, "issue checking commit count against remote, empty repo without commit? %v", err)
		count, err = p.repo.TotalCommits(ctx)
		if err != nil {
			p.logger.Warnf(ctx, "unexpected error counting commits: %v", err)
			count = 1
		}
	}
	if count > 0 {
		p.logger.Infof(ctx, "pushing %d commit(s) to remote", count)
		if err := p.repo.Push(ctx); err != nil {
			return apperrors.Wrap(err, apperrors.CodeGitError, "issue pushing changes to remote")
		}
	}
	return nil
}

func (p *ChangeProcessor) processChange(ctx context.Context, change *domain.Change, refTime time.Time) error {
	file := change.FileName()
	message := titleCase(change.ResourceType) + " updated in " + change.Project

	if err := p.repo.Stage(ctx, file); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeGitError, "issue adding file %q in git", file)
	}
	pending, err := p.repo.HasPendingDiff(ctx)
	if err != nil {
		p.logger.Warnf(ctx, "issue checking pending diff against HEAD, empty repo without commit? %v", err)
	} else if !pending {
		p.logger.Infof(ctx, "skipping non-change %q", file)
		return nil
	}

	if refTime.IsZero() {
		refTime = time.Now().UTC()
	}
	entries := p.queryAuditLogs(ctx, change, refTime)
	if len(entries) == 1 {
		p.logger.Infof(ctx, "found audit log entry for resource %q in %q", change.ResourceType, change.Project)
	} else if len(entries) > 1 {
		// Multiple entries kept for future analysis.
		p.logger.Infof(ctx, "multiple audit log entries for resource %q in %q, count %d",
			change.ResourceType, change.Project, len(entries))
	}

	var changers []string
	seen := func(name string) bool {
		for _, c := range changers {
			if c == name {
				return true
			}
		}
		return false
	}
	skipTicketLogged := false
	for _, entry := range entries {
		if entry.Changer == "" {
			p.logger.Infof(ctx, "missing changer in audit log entry for change %q", file)
			continue
		}
		login, ok := SplitLogin(entry.Changer)
		if !ok {
			p.logger.Warnf(ctx, "issue retrieving changer login from %q", entry.Changer)
			if !seen(entry.Changer) {
				changers = append(changers, entry.Changer)
				message += "\n Change done by unknown user '" + entry.Changer + "'"
			}
			continue
		}
		if seen(login) {
			p.logger.Infof(ctx, "skipping lookup for changer %q", login)
			continue
		}
		changers = append(changers, login)

		if !p.classifier.IsAutomation(entry.Changer) {
			change.Manual = true
			p.logger.Infof(ctx, "manual change performed by %q detected", login)
			message += "\n MANUAL change done by " + login
			continue
		}
		message += "\n Terraform change done by " + login
		if p.runSource == nil {
			continue
		}
		p.logger.Infof(ctx, "retrieving pipeline runs for service account %q", login)
		runs, err := p.runSource.RunsFor(ctx, login, refTime)
		if err != nil {
			p.logger.Warnf(ctx, "issue getting pipeline runs for changer %q: %v", login, err)
			continue
		}
		if p.tickets == nil && !skipTicketLogged {
			p.logger.Infof(ctx, "skipping ticket processing, ticket regex and/or ticketing URL not set")
			skipTicketLogged = true
		}
		for _, run := range runs {
			if !run.Status.IsChangeRelevant() {
				p.logger.Infof(ctx, "skipping non-change pipeline run %q", run.ID)
				continue
			}
			p.logger.Infof(ctx, "processing pipeline run %q", run.ID)
			message += "\n Related TF run " + p.runSource.BaseURL() +
				"/app/" + run.Org + "/workspaces/" + run.Workspace + "/runs/" + run.ID
			if p.tickets == nil {
				continue
			}
			if url, ok := p.tickets.Extract(ctx, run.Message); ok {
				message += "\n Related ticket " + url
			}
		}
	}
	if len(changers) > 0 {
		change.Changers = changers
	} else {
		message += "\n Unable to identify changer"
	}
	change.Message = message

	p.logger.Infof(ctx, "committing change %q", file)
	commit, err := p.repo.Commit(ctx, message)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeGitError, "issue committing change %q", file)
	}
	change.Commit = commit
	diff, err := p.repo.DiffLastCommit(ctx)
	if err != nil {
		p.logger.Warnf(ctx, "issue retrieving diff of last commit: %v", err)
	} else {
		change.Diff = diff
	}

	for _, n := range p.notifiers {
		p.logger.Infof(ctx, "posting change %q via %s", file, n.Name())
		if err := n.Post(ctx, change); err != nil {
			p.logger.Warnf(ctx, "issue posting change via %s: %v", n.Name(), err)
		}
	}
	return nil
}

func (p *ChangeProcessor) queryAuditLogs(ctx context.Context, change *domain.Change, refTime time.Time) []domain.AuditLogEntry {
	source, ok := p.auditSources[change.Provider]
	if !ok {
		p.logger.Warnf(ctx, "no audit log source configured for provider %q", change.Provider)
		return nil
	}
	p.logger.Infof(ctx, "retrieving audit logs for %q", change.FileName())
	since := refTime.Add(-p.scanInterval)
	entries, err := source.Query(ctx, change.ResourceType, change.Project, since)
	if err != nil {
		p.logger.Warnf(ctx, "issue getting audit logs for change %q: %v", change.FileName(), err)
		return nil
	}
	return entries
}

// titleCase uppercases the first letter of every word and lowercases the
// rest, treating any non-letter as a word boundary.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
