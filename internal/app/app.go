package app

import (
	"context"
	"regexp"
	"time"

	"github.com/egnyte/cloudimized/internal/config"
	"github.com/egnyte/cloudimized/internal/core/ports"
	"github.com/egnyte/cloudimized/internal/core/service"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
	"github.com/egnyte/cloudimized/internal/inventory"
	"github.com/egnyte/cloudimized/internal/reporting/text"
)

// targetSource yields the projects or subscriptions one provider scans,
// either the configured list or live discovery.
type targetSource struct {
	configured []string
	discover   func(ctx context.Context, excluded *regexp.Regexp) ([]string, error)
	excluded   *regexp.Regexp
	resources  []string
}

func (t *targetSource) targets(ctx context.Context) ([]string, error) {
	if t.discover != nil {
		return t.discover(ctx, t.excluded)
	}
	return t.configured, nil
}

// Application wires the snapshot engine and the change processor into
// the two run modes.
type Application struct {
	Config    *config.Config
	Logger    ports.Logger
	Repo      ports.GitRepository
	Engine    *inventory.Engine
	Writer    *inventory.Writer
	Processor *service.ChangeProcessor
	Reporter  *text.Reporter

	targetSources map[string]*targetSource
}

// Run executes one full scan: sync the repo, snapshot every configured
// resource, detect changed files, attribute and commit each change, and
// push.
func (a *Application) Run(ctx context.Context) error {
	refTime := time.Now().UTC()
	if err := a.Repo.Setup(ctx); err != nil {
		return err
	}
	jobs, err := a.buildJobs(ctx, "", "")
	if err != nil {
		return err
	}
	if err := a.Repo.Clean(ctx); err != nil {
		return err
	}
	results, err := a.Engine.Run(ctx, jobs)
	if err != nil {
		return err
	}
	if err := a.Writer.WriteYAML(ctx, a.Config.Git.LocalDirectory, results); err != nil {
		return err
	}
	changes, err := a.Repo.Changes(ctx)
	if err != nil {
		return err
	}
	a.Logger.Infof(ctx, "detected %d changed file(s)", len(changes))
	if err := a.Processor.Process(ctx, changes, refTime); err != nil {
		return err
	}
	a.Reporter.ReportScan(results, changes)
	return nil
}

// SingleRun scans one resource of one provider and dumps the results
// into outputDir as YAML or CSV, without touching the git repo.
func (a *Application) SingleRun(ctx context.Context, provider, resource, output, outputDir string) error {
	jobs, err := a.buildJobs(ctx, provider, resource)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return apperrors.Newf(apperrors.CodeConfigValidation,
			"resource %q is not configured for provider %q", resource, provider)
	}
	results, err := a.Engine.Run(ctx, jobs)
	if err != nil {
		return err
	}
	if output == "csv" {
		err = a.Writer.WriteCSV(ctx, outputDir, results)
	} else {
		err = a.Writer.WriteYAML(ctx, outputDir, results)
	}
	if err != nil {
		return err
	}
	a.Reporter.ReportScan(results, nil)
	return nil
}

// buildJobs expands the configured providers into one job per
// (resource, target) pair, restricted to the given provider and
// resource when non-empty.
func (a *Application) buildJobs(ctx context.Context, onlyProvider, onlyResource string) ([]inventory.Job, error) {
	var jobs []inventory.Job
	for provider, source := range a.targetSources {
		if onlyProvider != "" && provider != onlyProvider {
			continue
		}
		targets, err := source.targets(ctx)
		if err != nil {
			return nil, err
		}
		a.Logger.Infof(ctx, "scanning %d target(s) for provider %q", len(targets), provider)
		for _, resource := range source.resources {
			if onlyResource != "" && resource != onlyResource {
				continue
			}
			for _, target := range targets {
				jobs = append(jobs, inventory.Job{
					Provider: provider,
					Resource: resource,
					Target:   target,
				})
			}
		}
	}
	return jobs, nil
}
