package slack

import (
	"context"

	slackapi "github.com/slack-go/slack"

	"github.com/egnyte/cloudimized/internal/core/domain"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

const manualChangeHeader = ":warning: *MANUAL CHANGE* :warning:"

// uploader is the slice of the Slack API the notifier needs.
type uploader interface {
	UploadFileV2Context(ctx context.Context, params slackapi.UploadFileV2Parameters) (*slackapi.FileSummary, error)
}

// Notifier posts each change to a Slack channel as a file upload
// carrying the diff, with the attribution message as the comment.
type Notifier struct {
	client        uploader
	channelID     string
	repoCommitURL string
}

func NewNotifier(token, channelID, repoCommitURL string) *Notifier {
	return &Notifier{
		client:        slackapi.New(token),
		channelID:     channelID,
		repoCommitURL: repoCommitURL,
	}
}

func (n *Notifier) Name() string { return "slack" }

func (n *Notifier) Post(ctx context.Context, change *domain.Change) error {
	comment := ""
	if change.Manual {
		comment = manualChangeHeader + "\n"
	}
	comment += change.Message + "\n"
	if change.Commit != "" {
		comment += "Commit: " + n.repoCommitURL + "/" + change.Commit + "\n"
	} else {
		comment += "Unknown commit ID: " + n.repoCommitURL + "s/master\n"
	}

	content := change.Diff
	if content == "" {
		content = "no diff available"
	}
	_, err := n.client.UploadFileV2Context(ctx, slackapi.UploadFileV2Parameters{
		Channel:        n.channelID,
		Title:          change.FileName(),
		Filename:       change.FileName(),
		Content:        content,
		FileSize:       len(content),
		InitialComment: comment,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeNotifyError, "issue posting to Slack channel")
	}
	return nil
}
