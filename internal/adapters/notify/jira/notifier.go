package jira

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/trivago/tgo/tcontainer"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

const defaultIssueType = "Task"

// issueService is the slice of the Jira API the notifier needs.
type issueService interface {
	CreateWithContext(ctx context.Context, issue *gojira.Issue) (*gojira.Issue, *gojira.Response, error)
	UpdateAssigneeWithContext(ctx context.Context, issueID string, assignee *gojira.User) (*gojira.Response, error)
}

// Notifier opens a Jira ticket for every manual change and assigns it to
// the first changer that Jira accepts.
type Notifier struct {
	issues        issueService
	url           string
	projectKey    string
	issueType     string
	projectFilter *regexp.Regexp
	extraFields   map[string]interface{}
	logger        ports.Logger
}

// NewNotifier connects with basic auth, typically fed from the JIRA_USR
// and JIRA_PSW environment variables. projectFilterExpr limits ticket
// creation to matching project IDs; empty means no filtering.
// extraFields are set verbatim on every created issue.
func NewNotifier(url, username, password, projectKey, issueType, projectFilterExpr string,
	extraFields map[string]interface{}, logger ports.Logger) (*Notifier, error) {
	if issueType == "" {
		issueType = defaultIssueType
	}
	var filter *regexp.Regexp
	if projectFilterExpr != "" {
		var err error
		filter, err = regexp.Compile(`\A(?:` + projectFilterExpr + `)`)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigValidation,
				"invalid Jira project filter %q", projectFilterExpr)
		}
	}
	transport := gojira.BasicAuthTransport{Username: username, Password: password}
	client, err := gojira.NewClient(transport.Client(), url)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeNotifyError,
			"issue creating Jira client for %q", url)
	}
	return &Notifier{
		issues:        client.Issue,
		url:           url,
		projectKey:    projectKey,
		issueType:     issueType,
		projectFilter: filter,
		extraFields:   extraFields,
		logger:        logger,
	}, nil
}

func (n *Notifier) Name() string { return "jira" }

// Post creates a ticket for manual changes only. Assignment failures are
// logged and do not fail the post.
func (n *Notifier) Post(ctx context.Context, change *domain.Change) error {
	if !change.Manual {
		n.logger.Infof(ctx, "skipping ticket creation for non-manual change")
		return nil
	}
	if n.projectFilter != nil && !n.projectFilter.MatchString(change.Project) {
		n.logger.Infof(ctx, "skipping ticket creation for non-matching project id")
		return nil
	}
	summary := fmt.Sprintf("Manual change detected - project: %s, resource: %s",
		change.Project, change.ResourceType)
	changer := "Unknown changer"
	switch len(change.Changers) {
	case 0:
	case 1:
		changer = change.Changers[0]
	default:
		changer = strings.Join(change.Changers, ", ")
	}
	description := fmt.Sprintf("Manual changes performed by %s\n\n{code:java}\n%s\n{code}\n",
		changer, change.Diff)
	n.logger.Infof(ctx, "creating ticket: project %q, type %q", n.projectKey, n.issueType)
	fields := &gojira.IssueFields{
		Project:     gojira.Project{Key: n.projectKey},
		Type:        gojira.IssueType{Name: n.issueType},
		Summary:     summary,
		Description: description,
	}
	if len(n.extraFields) > 0 {
		fields.Unknowns = tcontainer.MarshalMap(n.extraFields)
	}
	issue, _, err := n.issues.CreateWithContext(ctx, &gojira.Issue{Fields: fields})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeNotifyError, "issue creating ticket")
	}
	for _, login := range change.Changers {
		n.logger.Infof(ctx, "assigning issue %s to user %q", issue.Key, login)
		if _, err := n.issues.UpdateAssigneeWithContext(ctx, issue.ID, &gojira.User{Name: login}); err != nil {
			n.logger.Warnf(ctx, "unable to assign ticket %s to changer %q: %v", issue.Key, login, err)
			continue
		}
		break
	}
	return nil
}
