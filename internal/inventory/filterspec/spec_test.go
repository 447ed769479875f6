package filterspec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egnyte/cloudimized/internal/inventory/filterspec"
)

func apply(t *testing.T, cfg filterspec.Config, items []map[string]interface{}) ([]map[string]interface{}, bool) {
	t.Helper()
	spec, err := filterspec.Compile(cfg)
	require.NoError(t, err)
	node := filterspec.FromItems(items)
	sorted := spec.Apply(node)
	return node.Items(), sorted
}

func TestCompileIncludeExcludeMutuallyExclusive(t *testing.T) {
	_, err := filterspec.Compile(filterspec.Config{
		FieldIncludeFilter: []string{"name"},
		FieldExcludeFilter: []interface{}{"selfLink"},
	})
	require.Error(t, err)
}

func TestCompileInvalidItemRegex(t *testing.T) {
	_, err := filterspec.Compile(filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{{"name": "foo["}},
	})
	require.Error(t, err)
}

func TestApplySortsByDefaultKey(t *testing.T) {
	items, sorted := apply(t, filterspec.Config{}, []map[string]interface{}{
		{"name": "charlie"},
		{"name": "alpha"},
		{"name": "bravo"},
	})

	assert.True(t, sorted)
	want := []map[string]interface{}{
		{"name": "alpha"},
		{"name": "bravo"},
		{"name": "charlie"},
	}
	assert.Empty(t, cmp.Diff(want, items))
}

func TestApplySortsByCustomKey(t *testing.T) {
	items, sorted := apply(t, filterspec.Config{SortKey: "id"}, []map[string]interface{}{
		{"id": "2", "name": "b"},
		{"id": "1", "name": "a"},
	})

	assert.True(t, sorted)
	assert.Equal(t, "1", items[0]["id"])
	assert.Equal(t, "2", items[1]["id"])
}

func TestApplySkipsSortWhenKeyMissing(t *testing.T) {
	items, sorted := apply(t, filterspec.Config{}, []map[string]interface{}{
		{"name": "charlie"},
		{"id": "no-name-here"},
		{"name": "alpha"},
	})

	assert.False(t, sorted)
	// API order is preserved.
	assert.Equal(t, "charlie", items[0]["name"])
	assert.Equal(t, "alpha", items[2]["name"])
}

func TestApplyItemExcludeFilter(t *testing.T) {
	cfg := filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{
			{"name": "default-.*"},
		},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{"name": "default-allow-ssh"},
		{"name": "custom-rule"},
		{"name": "not-default-rule"},
	})

	want := []map[string]interface{}{
		{"name": "custom-rule"},
		{"name": "not-default-rule"},
	}
	assert.Empty(t, cmp.Diff(want, items))
}

func TestApplyItemExcludeAllConditionsMustMatch(t *testing.T) {
	cfg := filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{
			{"name": "default-.*", "kind": "compute#route"},
		},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{"name": "default-route-1", "kind": "compute#route"},
		{"name": "default-fw", "kind": "compute#firewall"},
	})

	want := []map[string]interface{}{
		{"name": "default-fw", "kind": "compute#firewall"},
	}
	assert.Empty(t, cmp.Diff(want, items))
}

func TestApplyItemExcludeMissingFieldMatchesEmpty(t *testing.T) {
	cfg := filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{
			{"description": ".*"},
		},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{"name": "no-description"},
		{"name": "described", "description": "keep me out"},
	})

	// ".*" matches the empty string substituted for the missing field,
	// so both items are dropped.
	assert.Empty(t, items)
}

func TestApplyItemExcludePrunesSequenceField(t *testing.T) {
	cfg := filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{
			{"tags": "internal-.*"},
		},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{"name": "vm-1", "tags": []interface{}{"internal-lb", "public", "internal-dns"}},
	})

	// The item survives with matching list elements removed.
	want := []map[string]interface{}{
		{"name": "vm-1", "tags": []interface{}{"public"}},
	}
	assert.Empty(t, cmp.Diff(want, items))
}

func TestApplyItemExcludeNestedCondition(t *testing.T) {
	cfg := filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{
			{"metadata": map[string]interface{}{"owner": "ci-bot"}},
		},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{"name": "a", "metadata": map[string]interface{}{"owner": "ci-bot"}},
		{"name": "b", "metadata": map[string]interface{}{"owner": "alice"}},
	})

	want := []map[string]interface{}{
		{"name": "b", "metadata": map[string]interface{}{"owner": "alice"}},
	}
	assert.Empty(t, cmp.Diff(want, items))
}

func TestApplyFieldExcludeFilter(t *testing.T) {
	cfg := filterspec.Config{
		FieldExcludeFilter: []interface{}{
			"selfLink",
			map[string]interface{}{
				"subnets": []interface{}{"fingerprint"},
			},
		},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{
			"name":     "net-1",
			"selfLink": "https://compute/net-1",
			"subnets": []interface{}{
				map[string]interface{}{"name": "sub-a", "fingerprint": "abc"},
				map[string]interface{}{"name": "sub-b", "fingerprint": "def"},
			},
		},
	})

	want := []map[string]interface{}{
		{
			"name": "net-1",
			"subnets": []interface{}{
				map[string]interface{}{"name": "sub-a"},
				map[string]interface{}{"name": "sub-b"},
			},
		},
	}
	assert.Empty(t, cmp.Diff(want, items))
}

func TestApplyFieldIncludeFilter(t *testing.T) {
	cfg := filterspec.Config{
		FieldIncludeFilter: []string{"name", "network"},
	}
	items, _ := apply(t, cfg, []map[string]interface{}{
		{"name": "fw-1", "network": "net-1", "selfLink": "https://...", "creationTimestamp": "2024"},
	})

	want := []map[string]interface{}{
		{"name": "fw-1", "network": "net-1"},
	}
	assert.Empty(t, cmp.Diff(want, items))
}
