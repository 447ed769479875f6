package domain

import "path"

// Provider names used in snapshot tree paths and audit source lookup.
const (
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
)

// Change represents a single drifted resource configuration file that
// needs attribution. It is created by change detection, mutated by the
// change processor during one batch and discarded afterwards; only the
// commit and diff outlive it.
type Change struct {
	Provider     string
	ResourceType string
	Project      string

	// Filled in by the change processor.
	Message  string
	Diff     string
	Manual   bool
	Commit   string
	Changers []string
}

func NewChange(provider, resourceType, project string) *Change {
	return &Change{
		Provider:     provider,
		ResourceType: resourceType,
		Project:      project,
	}
}

// FileName returns the snapshot file this change refers to, relative to
// the repository root.
func (c *Change) FileName() string {
	return path.Join(c.Provider, c.ResourceType, c.Project+".yaml")
}

// Equal treats two changes as interchangeable when they point at the
// same resource, regardless of accumulated message state.
func (c *Change) Equal(other *Change) bool {
	if other == nil {
		return false
	}
	return c.Provider == other.Provider &&
		c.ResourceType == other.ResourceType &&
		c.Project == other.Project
}
