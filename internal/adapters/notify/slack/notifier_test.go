package slack

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egnyte/cloudimized/internal/core/domain"
)

type fakeUploader struct {
	params slackapi.UploadFileV2Parameters
	err    error
}

func (f *fakeUploader) UploadFileV2Context(ctx context.Context, params slackapi.UploadFileV2Parameters) (*slackapi.FileSummary, error) {
	f.params = params
	return &slackapi.FileSummary{ID: "F123"}, f.err
}

func newTestNotifier(uploader *fakeUploader) *Notifier {
	return &Notifier{
		client:        uploader,
		channelID:     "C123",
		repoCommitURL: "https://git.example.com/snapshots/commit",
	}
}

func TestPostAutomationChange(t *testing.T) {
	uploader := &fakeUploader{}
	notifier := newTestNotifier(uploader)

	change := domain.NewChange(domain.ProviderGCP, "network", "p1")
	change.Message = "Network updated in p1\n Terraform change done by svc-terraform"
	change.Commit = "abc123"
	change.Diff = "-mtu: 1460\n+mtu: 1500"

	require.NoError(t, notifier.Post(context.Background(), change))

	assert.Equal(t, "C123", uploader.params.Channel)
	assert.Equal(t, "gcp/network/p1.yaml", uploader.params.Title)
	assert.Equal(t, "gcp/network/p1.yaml", uploader.params.Filename)
	assert.Equal(t, change.Diff, uploader.params.Content)
	assert.Equal(t, len(change.Diff), uploader.params.FileSize)
	assert.Equal(t, "Network updated in p1\n Terraform change done by svc-terraform\n"+
		"Commit: https://git.example.com/snapshots/commit/abc123\n", uploader.params.InitialComment)
}

func TestPostManualChangeHeader(t *testing.T) {
	uploader := &fakeUploader{}
	notifier := newTestNotifier(uploader)

	change := domain.NewChange(domain.ProviderGCP, "network", "p1")
	change.Message = "Network updated in p1\n MANUAL change done by alice"
	change.Manual = true
	change.Commit = "abc123"

	require.NoError(t, notifier.Post(context.Background(), change))

	assert.Equal(t, ":warning: *MANUAL CHANGE* :warning:\n"+
		"Network updated in p1\n MANUAL change done by alice\n"+
		"Commit: https://git.example.com/snapshots/commit/abc123\n", uploader.params.InitialComment)
}

func TestPostMissingCommitAndDiff(t *testing.T) {
	uploader := &fakeUploader{}
	notifier := newTestNotifier(uploader)

	change := domain.NewChange(domain.ProviderGCP, "network", "p1")
	change.Message = "Network updated in p1\n Unable to identify changer"

	require.NoError(t, notifier.Post(context.Background(), change))

	assert.Contains(t, uploader.params.InitialComment,
		"Unknown commit ID: https://git.example.com/snapshots/commits/master\n")
	assert.Equal(t, "no diff available", uploader.params.Content)
}

func TestPostUploadError(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("channel_not_found")}
	notifier := newTestNotifier(uploader)

	change := domain.NewChange(domain.ProviderGCP, "network", "p1")
	err := notifier.Post(context.Background(), change)
	require.Error(t, err)
}
