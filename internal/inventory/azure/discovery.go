package azure

import (
	"context"
	"regexp"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// DiscoverSubscriptions lists all subscriptions visible to the
// credential, dropping IDs matched by excluded. Results are sorted for a
// stable snapshot tree.
func (c *Client) DiscoverSubscriptions(ctx context.Context, excluded *regexp.Regexp) ([]string, error) {
	client, err := armsubscriptions.NewClient(c.cred, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDiscoveryError,
			"issue creating Azure subscriptions client")
	}
	var subscriptions []string
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDiscoveryError,
				"issue listing Azure subscriptions")
		}
		for _, sub := range page.Value {
			if sub.SubscriptionID == nil {
				continue
			}
			id := *sub.SubscriptionID
			if excluded != nil && excluded.MatchString(id) {
				c.logger.Debugf(ctx, "excluding subscription %q from discovery", id)
				continue
			}
			subscriptions = append(subscriptions, id)
		}
	}
	sort.Strings(subscriptions)
	return subscriptions, nil
}
