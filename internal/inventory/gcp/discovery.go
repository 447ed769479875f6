package gcp

import (
	"context"
	"regexp"
	"sort"

	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"

	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

const projectActive = "ACTIVE"

// DiscoverProjects lists all active projects visible to the credentials,
// dropping project IDs matched by excluded. Results are sorted for a
// stable snapshot tree.
func (c *Client) DiscoverProjects(ctx context.Context, excluded *regexp.Regexp) ([]string, error) {
	var projects []string
	err := c.crm.Projects.List().Pages(ctx, func(page *cloudresourcemanager.ListProjectsResponse) error {
		for _, p := range page.Projects {
			if p.LifecycleState != projectActive {
				continue
			}
			if excluded != nil && excluded.MatchString(p.ProjectId) {
				c.logger.Debugf(ctx, "excluding project %q from discovery", p.ProjectId)
				continue
			}
			projects = append(projects, p.ProjectId)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDiscoveryError,
			"issue listing GCP projects")
	}
	sort.Strings(projects)
	return projects, nil
}
