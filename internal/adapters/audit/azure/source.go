package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// One page of the newest events is enough to attribute a change.
const pageSize = 6

// activityLister is the slice of the Azure Monitor API the source needs.
type activityLister interface {
	List(ctx context.Context, subscriptionID, filter string) ([]*armmonitor.EventData, error)
}

type apiLister struct {
	cred azcore.TokenCredential
}

func (l *apiLister) List(ctx context.Context, subscriptionID, filter string) ([]*armmonitor.EventData, error) {
	client, err := armmonitor.NewActivityLogsClient(subscriptionID, l.cred, nil)
	if err != nil {
		return nil, err
	}
	pager := client.NewListPager(filter, nil)
	var events []*armmonitor.EventData
	for pager.More() && len(events) < pageSize {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Value...)
	}
	return events, nil
}

// Source queries the Azure activity log for administrative events on a
// resource type within a subscription. It implements
// ports.AuditLogSource.
type Source struct {
	lister activityLister
	// resource type name to Azure resource provider value used in the
	// activity log filter, e.g. "virtualNetworks" to
	// "Microsoft.Network/virtualNetworks"
	resourceProviders map[string]string
	logger            ports.Logger
}

func NewSource(cred azcore.TokenCredential, resourceProviders map[string]string, logger ports.Logger) *Source {
	return &Source{
		lister:            &apiLister{cred: cred},
		resourceProviders: resourceProviders,
		logger:            logger,
	}
}

func (s *Source) Provider() string { return domain.ProviderAzure }

// Query lists the newest administrative activity log events since the
// given time. The service returns events newest first; only the first
// few are kept, enough to attribute a change.
func (s *Source) Query(ctx context.Context, resourceType, subscriptionID string, since time.Time) ([]domain.AuditLogEntry, error) {
	provider, ok := s.resourceProviders[resourceType]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeAuditQueryError,
			"no resource provider mapped for %q", resourceType)
	}
	filter := fmt.Sprintf("eventTimestamp ge '%s' and category eq 'Administrative' and resourceProvider eq '%s'",
		since.UTC().Format(time.RFC3339), provider)
	events, err := s.lister.List(ctx, subscriptionID, filter)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeAuditQueryError,
			"issue listing activity log events for subscription %q", subscriptionID)
	}
	if len(events) > pageSize {
		events = events[:pageSize]
	}
	entries := make([]domain.AuditLogEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, parseEvent(e, resourceType))
	}
	return entries, nil
}

func parseEvent(e *armmonitor.EventData, resourceType string) domain.AuditLogEntry {
	entry := domain.AuditLogEntry{ResourceType: resourceType}
	if e.ResourceID != nil {
		entry.ResourceName = *e.ResourceID
	}
	if e.Caller != nil {
		entry.Changer = *e.Caller
	}
	if e.EventTimestamp != nil {
		ts := e.EventTimestamp.UTC().Truncate(time.Second)
		entry.Timestamp = &ts
	}
	if e.OperationName != nil && e.OperationName.Value != nil {
		entry.MethodName = *e.OperationName.Value
	}
	return entry
}
