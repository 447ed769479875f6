package inventory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/egnyte/cloudimized/internal/core/ports"
	"github.com/egnyte/cloudimized/internal/inventory/filterspec"
)

// ListFunc lists one resource in one target (project or subscription)
// and returns its items as generic mappings.
type ListFunc func(ctx context.Context, resource, target string) ([]map[string]interface{}, error)

// Job is one snapshot unit of work.
type Job struct {
	Provider string
	Resource string
	Target   string
}

// Result carries the filtered items of one job, or its error.
type Result struct {
	Job
	Items []map[string]interface{}
	Err   error
}

// Engine fans snapshot jobs out over a fixed pool of workers. Each
// worker reuses the long-lived provider client handed in at
// construction; the pool never builds clients mid-run.
type Engine struct {
	listers map[string]ListFunc
	specs   map[string]*filterspec.Spec
	workers int
	retries int
	logger  ports.Logger
}

// SpecKey identifies the filter spec for a provider resource.
func SpecKey(provider, resource string) string {
	return provider + "/" + resource
}

func NewEngine(listers map[string]ListFunc, specs map[string]*filterspec.Spec,
	workers, retries int, logger ports.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		listers: listers,
		specs:   specs,
		workers: workers,
		retries: retries,
		logger:  logger,
	}
}

// Run executes all jobs and returns one result per job. Query failures
// are carried in Result.Err; only context cancellation aborts the run.
func (e *Engine) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	jobCh := make(chan Job)
	results := make([]Result, 0, len(jobs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for job := range jobCh {
				res := e.runJob(ctx, job)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) runJob(ctx context.Context, job Job) Result {
	res := Result{Job: job}
	lister, ok := e.listers[job.Provider]
	if !ok {
		e.logger.Warnf(ctx, "no lister for provider %q", job.Provider)
		return res
	}
	var items []map[string]interface{}
	var err error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			e.logger.Warnf(ctx, "retrying %q query for %q, attempt %d: %v",
				job.Resource, job.Target, attempt, err)
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			}
		}
		items, err = lister(ctx, job.Resource, job.Target)
		if err == nil {
			break
		}
	}
	if err != nil {
		res.Err = err
		return res
	}
	node := filterspec.FromItems(items)
	spec, ok := e.specs[SpecKey(job.Provider, job.Resource)]
	if !ok {
		// Unconfigured resources still get the default name sort so
		// snapshots stay diffable.
		spec, _ = filterspec.Compile(filterspec.Config{})
	}
	if !spec.Apply(node) {
		e.logger.Warnf(ctx, "skipping result sorting for %q in %q, missing sort key",
			job.Resource, job.Target)
	}
	res.Items = node.Items()
	return res
}
