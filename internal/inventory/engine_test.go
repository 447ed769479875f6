package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egnyte/cloudimized/internal/inventory/filterspec"
	"github.com/egnyte/cloudimized/internal/log"
)

func TestEngineRunsAllJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	listers := map[string]ListFunc{
		"gcp": func(ctx context.Context, resource, target string) ([]map[string]interface{}, error) {
			mu.Lock()
			seen[resource+"/"+target] = true
			mu.Unlock()
			return []map[string]interface{}{{"name": target + "-item"}}, nil
		},
	}
	engine := NewEngine(listers, nil, 3, 0, log.NewNop())

	jobs := []Job{
		{Provider: "gcp", Resource: "networks", Target: "p1"},
		{Provider: "gcp", Resource: "networks", Target: "p2"},
		{Provider: "gcp", Resource: "firewalls", Target: "p1"},
	}
	results, err := engine.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Len(t, seen, 3)
	for _, res := range results {
		require.NoError(t, res.Err)
		require.Len(t, res.Items, 1)
	}
}

func TestEngineRetriesFailedQueries(t *testing.T) {
	var calls atomic.Int32
	listers := map[string]ListFunc{
		"gcp": func(ctx context.Context, resource, target string) ([]map[string]interface{}, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("transient")
			}
			return []map[string]interface{}{{"name": "net-1"}}, nil
		},
	}
	engine := NewEngine(listers, nil, 1, 3, log.NewNop())

	results, err := engine.Run(context.Background(),
		[]Job{{Provider: "gcp", Resource: "networks", Target: "p1"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEngineCarriesQueryError(t *testing.T) {
	queryErr := errors.New("permission denied")
	listers := map[string]ListFunc{
		"gcp": func(ctx context.Context, resource, target string) ([]map[string]interface{}, error) {
			return nil, queryErr
		},
	}
	engine := NewEngine(listers, nil, 1, 1, log.NewNop())

	results, err := engine.Run(context.Background(),
		[]Job{{Provider: "gcp", Resource: "networks", Target: "p1"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, queryErr)
	assert.Nil(t, results[0].Items)
}

func TestEngineAppliesConfiguredSpec(t *testing.T) {
	listers := map[string]ListFunc{
		"gcp": func(ctx context.Context, resource, target string) ([]map[string]interface{}, error) {
			return []map[string]interface{}{
				{"name": "default-route"},
				{"name": "custom-route"},
			}, nil
		},
	}
	spec, err := filterspec.Compile(filterspec.Config{
		ItemExcludeFilter: []map[string]interface{}{{"name": "default-.*"}},
	})
	require.NoError(t, err)
	specs := map[string]*filterspec.Spec{SpecKey("gcp", "routes"): spec}
	engine := NewEngine(listers, specs, 1, 0, log.NewNop())

	results, err := engine.Run(context.Background(),
		[]Job{{Provider: "gcp", Resource: "routes", Target: "p1"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Len(t, results[0].Items, 1)
	assert.Equal(t, "custom-route", results[0].Items[0]["name"])
}

func TestEngineSortsUnconfiguredResources(t *testing.T) {
	listers := map[string]ListFunc{
		"gcp": func(ctx context.Context, resource, target string) ([]map[string]interface{}, error) {
			return []map[string]interface{}{
				{"name": "bravo"},
				{"name": "alpha"},
			}, nil
		},
	}
	engine := NewEngine(listers, nil, 1, 0, log.NewNop())

	results, err := engine.Run(context.Background(),
		[]Job{{Provider: "gcp", Resource: "networks", Target: "p1"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Len(t, results[0].Items, 2)
	assert.Equal(t, "alpha", results[0].Items[0]["name"])
	assert.Equal(t, "bravo", results[0].Items[1]["name"])
}

func TestEngineUnknownProvider(t *testing.T) {
	engine := NewEngine(map[string]ListFunc{}, nil, 1, 0, log.NewNop())

	results, err := engine.Run(context.Background(),
		[]Job{{Provider: "aws", Resource: "vpcs", Target: "acct-1"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Nil(t, results[0].Items)
}
