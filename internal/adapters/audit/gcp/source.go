package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	logging "google.golang.org/api/logging/v2"
	"google.golang.org/api/option"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// One page of the newest entries is enough to attribute a change.
const pageSize = 6

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// entryLister is the slice of the Cloud Logging API the source needs.
type entryLister interface {
	List(ctx context.Context, project, filter string) ([]*logging.LogEntry, error)
}

type apiLister struct {
	svc *logging.Service
}

func (l *apiLister) List(ctx context.Context, project, filter string) ([]*logging.LogEntry, error) {
	resp, err := l.svc.Entries.List(&logging.ListLogEntriesRequest{
		ResourceNames: []string{"projects/" + project},
		Filter:        filter,
		OrderBy:       "timestamp desc",
		PageSize:      pageSize,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Source queries GCP Cloud Audit Logs for admin activity entries that
// touched a given resource type. It implements ports.AuditLogSource.
type Source struct {
	lister entryLister
	// resource type name to audit log resource.type value
	logResourceTypes map[string]string
	logger           ports.Logger
}

// NewSource builds a Cloud Logging backed source. logResourceTypes maps
// snapshot resource names (e.g. "networks") to the resource.type value
// used in the audit log filter (e.g. "gce_network").
func NewSource(ctx context.Context, logResourceTypes map[string]string, logger ports.Logger, opts ...option.ClientOption) (*Source, error) {
	svc, err := logging.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAuditQueryError,
			"issue creating GCP logging client")
	}
	return &Source{
		lister:           &apiLister{svc: svc},
		logResourceTypes: logResourceTypes,
		logger:           logger,
	}, nil
}

func (s *Source) Provider() string { return domain.ProviderGCP }

// Query lists the newest admin activity entries for resourceType in
// project since the given time, newest first, one page only.
func (s *Source) Query(ctx context.Context, resourceType, project string, since time.Time) ([]domain.AuditLogEntry, error) {
	logResourceType, ok := s.logResourceTypes[resourceType]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeAuditQueryError,
			"no audit log resource type mapped for %q", resourceType)
	}
	filter := fmt.Sprintf(`timestamp>="%s" AND `+
		`logName: "cloudaudit.googleapis.com" AND `+
		`logName: "activity" AND `+
		`resource.type="%s" AND `+
		`NOT protoPayload.response.@type="type.googleapis.com/error"`,
		since.UTC().Format("2006-01-02T15:04:05"), logResourceType)
	raw, err := s.lister.List(ctx, project, filter)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeAuditQueryError,
			"issue listing audit log entries for project %q", project)
	}
	entries := make([]domain.AuditLogEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, s.parseEntry(ctx, e, project))
	}
	return entries, nil
}

func (s *Source) parseEntry(ctx context.Context, e *logging.LogEntry, project string) domain.AuditLogEntry {
	var payload map[string]interface{}
	if len(e.ProtoPayload) > 0 {
		if err := json.Unmarshal(e.ProtoPayload, &payload); err != nil {
			s.logger.Warnf(ctx, "issue parsing audit log payload for project %q: %v", project, err)
		}
	}
	entry := domain.AuditLogEntry{
		ResourceName: stringField(payload, "resourceName"),
		Changer:      stringField(mapField(payload, "authenticationInfo"), "principalEmail"),
		MethodName:   stringField(payload, "methodName"),
		RequestType:  stringField(mapField(payload, "request"), "@type"),
	}
	if e.Resource != nil {
		entry.ResourceType = e.Resource.Type
	}
	if ts, err := parseTimestamp(e.Timestamp); err != nil {
		s.logger.Warnf(ctx, "issue parsing audit log timestamp for resource %q in project %q",
			entry.ResourceName, project)
	} else {
		entry.Timestamp = ts
	}
	return entry
}

// parseTimestamp drops sub-second precision the way the audit filter
// format does.
func parseTimestamp(raw string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t = t.Truncate(time.Second)
		return &t, nil
	}
	trimmed := strings.SplitN(raw, ".", 2)[0]
	t, err := time.Parse("2006-01-02T15:04:05", trimmed)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func mapField(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
