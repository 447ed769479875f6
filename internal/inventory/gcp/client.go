package gcp

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	compute "google.golang.org/api/compute/v1"
	container "google.golang.org/api/container/v1"
	"google.golang.org/api/option"

	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client bundles the long-lived GCP API services one inventory worker
// uses for project snapshots. A shared rate limiter throttles all
// workers against the same quota.
type Client struct {
	compute   *compute.Service
	container *container.Service
	crm       *cloudresourcemanager.Service
	limiter   *rate.Limiter
	logger    ports.Logger
}

func NewClient(ctx context.Context, limiter *rate.Limiter, logger ports.Logger, opts ...option.ClientOption) (*Client, error) {
	computeSvc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInventoryQueryError,
			"issue creating GCP compute client")
	}
	containerSvc, err := container.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInventoryQueryError,
			"issue creating GCP container client")
	}
	crmSvc, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInventoryQueryError,
			"issue creating GCP resource manager client")
	}
	return &Client{
		compute:   computeSvc,
		container: containerSvc,
		crm:       crmSvc,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// List runs the registered query for resource in project and returns the
// result items as generic mappings.
func (c *Client) List(ctx context.Context, resource, project string) ([]map[string]interface{}, error) {
	q, ok := registry[resource]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInventoryQueryError,
			"unknown GCP resource %q", resource)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	c.logger.Infof(ctx, "running query for %q in project %q", resource, project)
	items, err := q.list(ctx, c, project)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeInventoryQueryError,
			"issue executing %q query for project %q", resource, project)
	}
	return items, nil
}

// asItems normalizes typed API response items into generic mappings.
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
