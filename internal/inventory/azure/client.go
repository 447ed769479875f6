package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client snapshots Azure resources across subscriptions. Resource
// clients are built per subscription on demand from the shared
// credential; the rate limiter is shared across all workers.
type Client struct {
	cred    azcore.TokenCredential
	limiter *rate.Limiter
	logger  ports.Logger
}

func NewClient(cred azcore.TokenCredential, limiter *rate.Limiter, logger ports.Logger) *Client {
	return &Client{cred: cred, limiter: limiter, logger: logger}
}

// List runs the registered query for resource in a subscription and
// returns the result items as generic mappings.
func (c *Client) List(ctx context.Context, resource, subscriptionID string) ([]map[string]interface{}, error) {
	q, ok := registry[resource]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInventoryQueryError,
			"unknown Azure resource %q", resource)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	c.logger.Infof(ctx, "running query for %q in subscription %q", resource, subscriptionID)
	items, err := q.list(ctx, c, subscriptionID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeInventoryQueryError,
			"issue executing %q query for subscription %q", resource, subscriptionID)
	}
	return items, nil
}

func asItems(v interface{}) ([]map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
