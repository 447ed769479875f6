package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

// query describes one snapshotted Azure resource. resourceProvider is
// the value used when correlating activity log events.
type query struct {
	resourceProvider string
	list             func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error)
}

// registry is the static table of supported Azure resources.
var registry = map[string]query{
	"virtualNetworks": {
		resourceProvider: "Microsoft.Network/virtualNetworks",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armnetwork.NewVirtualNetworksClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armnetwork.VirtualNetwork
			pager := client.NewListAllPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
	"networkSecurityGroups": {
		resourceProvider: "Microsoft.Network/networkSecurityGroups",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armnetwork.NewSecurityGroupsClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armnetwork.SecurityGroup
			pager := client.NewListAllPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
	"resourceGroups": {
		resourceProvider: "Microsoft.Resources/subscriptions/resourceGroups",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armresources.NewResourceGroupsClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armresources.ResourceGroup
			pager := client.NewListPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
	"routeTables": {
		resourceProvider: "Microsoft.Network/routeTables",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armnetwork.NewRouteTablesClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armnetwork.RouteTable
			pager := client.NewListAllPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
	"networkInterfaces": {
		resourceProvider: "Microsoft.Network/networkInterfaces",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armnetwork.NewInterfacesClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armnetwork.Interface
			pager := client.NewListAllPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
	"applicationSecurityGroups": {
		resourceProvider: "Microsoft.Network/applicationSecurityGroups",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armnetwork.NewApplicationSecurityGroupsClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armnetwork.ApplicationSecurityGroup
			pager := client.NewListAllPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
	// Gateways have no subscription-wide list call, so every resource
	// group is walked.
	"vnetGateways": {
		resourceProvider: "Microsoft.Network/virtualNetworkGateways",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			groups, err := resourceGroupNames(ctx, c, subscriptionID)
			if err != nil {
				return nil, err
			}
			client, err := armnetwork.NewVirtualNetworkGatewaysClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armnetwork.VirtualNetworkGateway
			for _, group := range groups {
				pager := client.NewListPager(group, nil)
				for pager.More() {
					page, err := pager.NextPage(ctx)
					if err != nil {
						return nil, err
					}
					items = append(items, page.Value...)
				}
			}
			return asItems(items)
		},
	},
	"aksClusters": {
		resourceProvider: "Microsoft.ContainerService/managedClusters",
		list: func(ctx context.Context, c *Client, subscriptionID string) ([]map[string]interface{}, error) {
			client, err := armcontainerservice.NewManagedClustersClient(subscriptionID, c.cred, nil)
			if err != nil {
				return nil, err
			}
			var items []*armcontainerservice.ManagedCluster
			pager := client.NewListPager(nil)
			for pager.More() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				items = append(items, page.Value...)
			}
			return asItems(items)
		},
	},
}

func resourceGroupNames(ctx context.Context, c *Client, subscriptionID string) ([]string, error) {
	client, err := armresources.NewResourceGroupsClient(subscriptionID, c.cred, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, group := range page.Value {
			if group.Name != nil {
				names = append(names, *group.Name)
			}
		}
	}
	return names, nil
}

// Resources lists every resource name the registry supports.
func Resources() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ResourceProviders maps each registered resource to its activity log
// resource provider value, feeding the audit source configuration.
func ResourceProviders() map[string]string {
	providers := make(map[string]string, len(registry))
	for name, q := range registry {
		providers[name] = q.resourceProvider
	}
	return providers
}
