package tfc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egnyte/cloudimized/internal/core/domain"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
	"github.com/egnyte/cloudimized/internal/log"
)

const testWorkspaceID = "ws-abc123"

func newTestServer(t *testing.T, runsJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/organizations/my-org/workspaces/prod", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer org-token", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"data": {"id": %q}}`, testWorkspaceID)
	})
	mux.HandleFunc("/api/v2/workspaces/"+testWorkspaceID+"/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("page[size]"))
		assert.Equal(t, "created-by", r.URL.Query().Get("include"))
		fmt.Fprint(w, runsJSON)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSource(serverURL string) *Source {
	return NewSource(serverURL,
		map[string]WorkspaceMapping{
			"svc-terraform": {Org: "my-org", Workspaces: []string{"prod"}},
		},
		map[string]string{"my-org": "org-token"},
		30*time.Minute, log.NewNop())
}

func TestRunsFor(t *testing.T) {
	changeTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runsJSON := `{"data": [
		{"id": "run-applied", "attributes": {
			"status": "applied", "message": "apply TEST-1",
			"status-timestamps": {"applying-at": "2024-05-01T11:50:00+00:00"}}},
		{"id": "run-errored", "attributes": {
			"status": "errored", "message": "failed apply",
			"status-timestamps": {"errored-at": "2024-05-01T11:55:00+00:00"}}},
		{"id": "run-planned", "attributes": {
			"status": "planned", "message": "plan only",
			"status-timestamps": {"planned-at": "2024-05-01T11:58:00+00:00"}}},
		{"id": "run-stale", "attributes": {
			"status": "applied", "message": "old apply",
			"status-timestamps": {"applying-at": "2024-05-01T10:00:00+00:00"}}},
		{"id": "run-no-timestamps", "attributes": {
			"status": "applied", "message": "no timing"}},
		{"id": "run-no-status", "attributes": {
			"message": "broken record"}}
	]}`
	server := newTestServer(t, runsJSON)
	source := newTestSource(server.URL)

	runs, err := source.RunsFor(context.Background(), "svc-terraform", changeTime)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "run-applied", runs[0].ID)
	assert.Equal(t, domain.RunStatusApplied, runs[0].Status)
	assert.Equal(t, "apply TEST-1", runs[0].Message)
	assert.Equal(t, "my-org", runs[0].Org)
	assert.Equal(t, "prod", runs[0].Workspace)
	require.NotNil(t, runs[0].ApplyTime)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 50, 0, 0, time.UTC), runs[0].ApplyTime.UTC())
	// Errored runs fall back to the errored-at timestamp.
	assert.Equal(t, "run-errored", runs[1].ID)
}

func TestRunsForUnknownLogin(t *testing.T) {
	source := newTestSource("https://tf.example.com")

	_, err := source.RunsFor(context.Background(), "svc-unknown", time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnknownIdentity))
}

func TestRunsForMissingOrgToken(t *testing.T) {
	source := NewSource("https://tf.example.com",
		map[string]WorkspaceMapping{
			"svc-terraform": {Org: "other-org", Workspaces: []string{"prod"}},
		},
		map[string]string{"my-org": "org-token"},
		30*time.Minute, log.NewNop())

	_, err := source.RunsFor(context.Background(), "svc-terraform", time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeRunQueryError))
}

func TestRunsForWorkspaceLookupFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	source := newTestSource(server.URL)

	_, err := source.RunsFor(context.Background(), "svc-terraform", time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeRunQueryError))
}

func TestRunsForMissingDataKey(t *testing.T) {
	server := newTestServer(t, `{"errors": []}`)
	source := newTestSource(server.URL)

	_, err := source.RunsFor(context.Background(), "svc-terraform", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no 'data' in runs response")
}

func TestRunsForZeroChangeTimeUsesNow(t *testing.T) {
	applyTime := time.Now().UTC().Add(-5 * time.Minute).Format(time.RFC3339)
	runsJSON := fmt.Sprintf(`{"data": [
		{"id": "run-recent", "attributes": {
			"status": "applied", "message": "fresh apply",
			"status-timestamps": {"applying-at": %q}}}
	]}`, applyTime)
	server := newTestServer(t, runsJSON)
	source := newTestSource(server.URL)

	runs, err := source.RunsFor(context.Background(), "svc-terraform", time.Time{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-recent", runs[0].ID)
}

func TestParseRunTime(t *testing.T) {
	got, err := parseRunTime("2024-05-01T11:50:00+00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 50, 0, 0, time.UTC), got.UTC())

	// Timestamps without a zone designator still parse.
	got, err = parseRunTime("2024-05-01T11:50:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 50, 0, 0, time.UTC), got)

	_, err = parseRunTime("yesterday")
	require.Error(t, err)
}

func TestBaseURLTrimmed(t *testing.T) {
	source := NewSource("https://tf.example.com/", nil, nil, time.Minute, log.NewNop())
	assert.Equal(t, "https://tf.example.com", source.BaseURL())
}
