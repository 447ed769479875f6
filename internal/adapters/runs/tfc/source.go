package tfc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// Number of latest runs inspected per workspace.
const runPageSize = 10

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WorkspaceMapping ties a service account login to the organization and
// workspaces whose runs may explain its changes.
type WorkspaceMapping struct {
	Org        string   `mapstructure:"org" validate:"required"`
	Workspaces []string `mapstructure:"workspace" validate:"required,min=1"`
}

// Source resolves Terraform runs behind service account changes via the
// Terraform Cloud HTTP API. It implements ports.RunSource.
type Source struct {
	baseURL    string
	saMap      map[string]WorkspaceMapping
	orgTokens  map[string]string
	httpClient *http.Client
	window     time.Duration
	logger     ports.Logger
}

func NewSource(baseURL string, saMap map[string]WorkspaceMapping, orgTokens map[string]string,
	window time.Duration, logger ports.Logger) *Source {
	return &Source{
		baseURL:    strings.TrimRight(baseURL, "/"),
		saMap:      saMap,
		orgTokens:  orgTokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		window:     window,
		logger:     logger,
	}
}

func (s *Source) BaseURL() string { return s.baseURL }

// RunsFor returns change-relevant runs across all workspaces mapped to
// login, restricted to the window preceding changeTime. An unmapped
// login yields a CodeUnknownIdentity error.
func (s *Source) RunsFor(ctx context.Context, login string, changeTime time.Time) ([]domain.AutomationRun, error) {
	mapping, ok := s.saMap[login]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnknownIdentity,
			"unknown service account %q", login)
	}
	token, ok := s.orgTokens[mapping.Org]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeRunQueryError,
			"no API token for organization %q", mapping.Org)
	}
	var runs []domain.AutomationRun
	for _, workspace := range mapping.Workspaces {
		s.logger.Infof(ctx, "getting workspace ID for workspace %q", workspace)
		workspaceID, err := s.workspaceID(ctx, token, mapping.Org, workspace)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeRunQueryError,
				"issue getting workspace ID for workspace %q", workspace)
		}
		s.logger.Infof(ctx, "getting %d runs for workspace ID %q", runPageSize, workspaceID)
		workspaceRuns, err := s.listRuns(ctx, token, workspaceID, mapping.Org, workspace)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeRunQueryError,
				"issue getting terraform runs")
		}
		runs = append(runs, workspaceRuns...)
	}
	if changeTime.IsZero() {
		changeTime = time.Now().UTC()
	}
	return domain.FilterRelevantRuns(runs, changeTime, s.window), nil
}

type workspaceResponse struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (s *Source) workspaceID(ctx context.Context, token, org, workspace string) (string, error) {
	u := fmt.Sprintf("%s/api/v2/organizations/%s/workspaces/%s",
		s.baseURL, url.PathEscape(org), url.PathEscape(workspace))
	body, err := s.get(ctx, token, u)
	if err != nil {
		return "", err
	}
	var resp workspaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeRunParseError, "issue parsing workspace response")
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return "", apperrors.New(apperrors.CodeRunParseError, "no workspace ID in response")
	}
	return resp.Data.ID, nil
}

type runsResponse struct {
	Data *[]runData `json:"data"`
}

type runData struct {
	ID         string `json:"id"`
	Attributes struct {
		Status           string            `json:"status"`
		Message          string            `json:"message"`
		StatusTimestamps map[string]string `json:"status-timestamps"`
	} `json:"attributes"`
}

func (s *Source) listRuns(ctx context.Context, token, workspaceID, org, workspace string) ([]domain.AutomationRun, error) {
	u := fmt.Sprintf("%s/api/v2/workspaces/%s/runs?page%%5Bsize%%5D=%d&include=created-by",
		s.baseURL, url.PathEscape(workspaceID), runPageSize)
	body, err := s.get(ctx, token, u)
	if err != nil {
		return nil, err
	}
	var resp runsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRunParseError, "issue parsing runs response")
	}
	if resp.Data == nil {
		return nil, apperrors.New(apperrors.CodeRunParseError, "no 'data' in runs response")
	}
	return s.parseRuns(ctx, *resp.Data, org, workspace), nil
}

// parseRuns keeps only runs that might have changed configuration and
// carry a usable apply time.
func (s *Source) parseRuns(ctx context.Context, data []runData, org, workspace string) []domain.AutomationRun {
	var runs []domain.AutomationRun
	for _, rd := range data {
		status := domain.RunStatus(rd.Attributes.Status)
		if rd.Attributes.Status == "" {
			s.logger.Warnf(ctx, "no status field for run %q", rd.ID)
			continue
		}
		if !status.IsChangeRelevant() {
			continue
		}
		applyTimeRaw := rd.Attributes.StatusTimestamps["applying-at"]
		if applyTimeRaw == "" && status == domain.RunStatusErrored {
			applyTimeRaw = rd.Attributes.StatusTimestamps["errored-at"]
		}
		if applyTimeRaw == "" {
			s.logger.Warnf(ctx, "no status timestamps for run %q", rd.ID)
			continue
		}
		applyTime, err := parseRunTime(applyTimeRaw)
		if err != nil {
			s.logger.Warnf(ctx, "issue parsing run timestamp %q: %v", applyTimeRaw, err)
			continue
		}
		runs = append(runs, domain.AutomationRun{
			Message:   rd.Attributes.Message,
			ID:        rd.ID,
			Status:    status,
			ApplyTime: &applyTime,
			Org:       org,
			Workspace: workspace,
		})
	}
	return runs
}

func parseRunTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", strings.SplitN(raw, "+", 2)[0])
}

func (s *Source) get(ctx context.Context, token, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/vnd.api+json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeRunQueryError, "request to %q failed", u)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeRunQueryError, "issue reading response from %q", u)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Newf(apperrors.CodeRunQueryError,
			"unexpected status %d from %q", resp.StatusCode, u)
	}
	return body, nil
}
