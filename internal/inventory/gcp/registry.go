package gcp

import (
	"context"

	compute "google.golang.org/api/compute/v1"
)

// query describes one snapshotted GCP resource. logResourceType is the
// resource.type value used when correlating audit log entries.
type query struct {
	logResourceType string
	list            func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error)
}

// registry is the static table of supported GCP resources. Adding a
// resource means adding an entry here, there is no runtime discovery of
// query implementations.
var registry = map[string]query{
	"networks": {
		logResourceType: "gce_network",
		list: func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error) {
			var items []*compute.Network
			err := c.compute.Networks.List(project).Pages(ctx, func(page *compute.NetworkList) error {
				items = append(items, page.Items...)
				return nil
			})
			if err != nil {
				return nil, err
			}
			return asItems(items)
		},
	},
	"firewalls": {
		logResourceType: "gce_firewall_rule",
		list: func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error) {
			var items []*compute.Firewall
			err := c.compute.Firewalls.List(project).Pages(ctx, func(page *compute.FirewallList) error {
				items = append(items, page.Items...)
				return nil
			})
			if err != nil {
				return nil, err
			}
			return asItems(items)
		},
	},
	"addresses": {
		logResourceType: "gce_reserved_address",
		list: func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error) {
			var items []*compute.Address
			err := c.compute.Addresses.AggregatedList(project).Pages(ctx, func(page *compute.AddressAggregatedList) error {
				for _, scoped := range page.Items {
					items = append(items, scoped.Addresses...)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return asItems(items)
		},
	},
	"subnetworks": {
		logResourceType: "gce_subnetwork",
		list: func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error) {
			var items []*compute.Subnetwork
			err := c.compute.Subnetworks.AggregatedList(project).Pages(ctx, func(page *compute.SubnetworkAggregatedList) error {
				for _, scoped := range page.Items {
					items = append(items, scoped.Subnetworks...)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return asItems(items)
		},
	},
	"routes": {
		logResourceType: "gce_route",
		list: func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error) {
			var items []*compute.Route
			err := c.compute.Routes.List(project).Pages(ctx, func(page *compute.RouteList) error {
				items = append(items, page.Items...)
				return nil
			})
			if err != nil {
				return nil, err
			}
			return asItems(items)
		},
	},
	"gkeClusters": {
		logResourceType: "gke_cluster",
		list: func(ctx context.Context, c *Client, project string) ([]map[string]interface{}, error) {
			resp, err := c.container.Projects.Locations.Clusters.
				List("projects/" + project + "/locations/-").Context(ctx).Do()
			if err != nil {
				return nil, err
			}
			return asItems(resp.Clusters)
		},
	},
}

// Resources lists every resource name the registry supports.
func Resources() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// LogResourceTypes maps each registered resource to its audit log
// resource.type value, feeding the audit source configuration.
func LogResourceTypes() map[string]string {
	types := make(map[string]string, len(registry))
	for name, q := range registry {
		types[name] = q.logResourceType
	}
	return types
}
