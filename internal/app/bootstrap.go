package app

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	azureaudit "github.com/egnyte/cloudimized/internal/adapters/audit/azure"
	gcpaudit "github.com/egnyte/cloudimized/internal/adapters/audit/gcp"
	gitadapter "github.com/egnyte/cloudimized/internal/adapters/git"
	jiranotify "github.com/egnyte/cloudimized/internal/adapters/notify/jira"
	slacknotify "github.com/egnyte/cloudimized/internal/adapters/notify/slack"
	"github.com/egnyte/cloudimized/internal/adapters/runs/tfc"
	"github.com/egnyte/cloudimized/internal/config"
	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/core/ports"
	"github.com/egnyte/cloudimized/internal/core/service"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
	"github.com/egnyte/cloudimized/internal/inventory"
	azureinv "github.com/egnyte/cloudimized/internal/inventory/azure"
	"github.com/egnyte/cloudimized/internal/inventory/filterspec"
	gcpinv "github.com/egnyte/cloudimized/internal/inventory/gcp"
	"github.com/egnyte/cloudimized/internal/log"
	"github.com/egnyte/cloudimized/internal/reporting/text"
)

// BuildApplicationFromViper assembles the full application: config,
// logger, git repo, provider clients, audit sources, run source,
// notifiers, snapshot engine and change processor.
func BuildApplicationFromViper(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigParseError,
			"failed to unmarshal configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := log.NewLogger(log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "logger initialization failed")
	}
	logger.Infof(ctx, "logger initialized (level: %s, format: %s)",
		cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "using configuration file: %s", v.ConfigFileUsed())
	}

	repo, err := gitadapter.NewRepository(cfg.Git.RemoteURL, cfg.Git.LocalDirectory,
		os.Getenv(config.EnvGitUser), os.Getenv(config.EnvGitPassword), logger)
	if err != nil {
		return nil, err
	}

	scanWindow := time.Duration(cfg.ChangeProcessor.ScanInterval) * time.Minute

	listers := map[string]inventory.ListFunc{}
	auditSources := map[string]ports.AuditLogSource{}
	targetSources := map[string]*targetSource{}
	specs := map[string]*filterspec.Spec{}

	if cfg.GCP != nil {
		limiter := rate.NewLimiter(rate.Limit(cfg.Settings.QueryRateLimit), 1)
		client, err := gcpinv.NewClient(ctx, limiter, logger)
		if err != nil {
			return nil, err
		}
		listers[domain.ProviderGCP] = client.List
		source, err := buildTargetSource(domain.ProviderGCP, cfg.GCP.Queries,
			cfg.GCP.Projects, cfg.GCP.DiscoverProjects, cfg.GCP.ExcludedProjects,
			gcpinv.Resources(), specs)
		if err != nil {
			return nil, err
		}
		source.discoverFrom(cfg.GCP.DiscoverProjects, client.DiscoverProjects)
		targetSources[domain.ProviderGCP] = source

		auditSource, err := gcpaudit.NewSource(ctx, gcpinv.LogResourceTypes(), logger)
		if err != nil {
			return nil, err
		}
		auditSources[domain.ProviderGCP] = auditSource
	}

	if cfg.Azure != nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInventoryQueryError,
				"issue creating Azure credential")
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.Settings.QueryRateLimit), 1)
		client := azureinv.NewClient(cred, limiter, logger)
		listers[domain.ProviderAzure] = client.List
		source, err := buildTargetSource(domain.ProviderAzure, cfg.Azure.Queries,
			cfg.Azure.Subscriptions, cfg.Azure.DiscoverSubscriptions, cfg.Azure.ExcludedSubscriptions,
			azureinv.Resources(), specs)
		if err != nil {
			return nil, err
		}
		source.discoverFrom(cfg.Azure.DiscoverSubscriptions, client.DiscoverSubscriptions)
		targetSources[domain.ProviderAzure] = source

		auditSources[domain.ProviderAzure] = azureaudit.NewSource(cred, azureinv.ResourceProviders(), logger)
	}

	var runSource ports.RunSource
	if tf := cfg.ChangeProcessor.Terraform; tf != nil {
		tokens, err := config.LoadTokenMap(tf.WorkspaceTokenFile)
		if err != nil {
			return nil, err
		}
		runSource = tfc.NewSource(tf.URL, tf.ServiceWorkspaceMap, tokens, scanWindow, logger)
	} else {
		logger.Infof(ctx, "no terraform configuration found, skipping run lookups")
	}

	notifiers, err := buildNotifiers(cfg, logger)
	if err != nil {
		return nil, err
	}

	classifier, err := service.NewClassifier(cfg.ChangeProcessor.ServiceAccountRegex)
	if err != nil {
		return nil, err
	}
	tickets, err := service.NewTicketExtractor(cfg.ChangeProcessor.TicketRegex, cfg.ChangeProcessor.TicketSysURL, logger)
	if err != nil {
		return nil, err
	}

	processor := service.NewChangeProcessor(service.ProcessorParams{
		Repo:         repo,
		AuditSources: auditSources,
		RunSource:    runSource,
		Classifier:   classifier,
		Tickets:      tickets,
		Notifiers:    notifiers,
		ScanInterval: scanWindow,
		Logger:       logger,
	})
	engine := inventory.NewEngine(listers, specs,
		cfg.Settings.WorkerCount, cfg.Settings.QueryRetries, logger)

	return &Application{
		Config:        cfg,
		Logger:        logger,
		Repo:          repo,
		Engine:        engine,
		Writer:        inventory.NewWriter(logger),
		Processor:     processor,
		Reporter:      text.NewReporter(cfg.Settings.Reporter),
		targetSources: targetSources,
	}, nil
}

// buildTargetSource compiles the filter specs for one provider's queries
// and validates every resource against the static registry.
func buildTargetSource(provider string, queries []config.QueryConfig, configured []string,
	discover bool, excludedExpr string, known []string, specs map[string]*filterspec.Spec) (*targetSource, error) {
	source := &targetSource{configured: configured}
	if excludedExpr != "" {
		re, err := regexp.Compile(excludedExpr)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigValidation,
				"invalid excluded-target regex for provider %q", provider)
		}
		source.excluded = re
	}
	if !discover && len(configured) == 0 {
		return nil, apperrors.Newf(apperrors.CodeConfigValidation,
			"provider %q has neither a target list nor discovery enabled", provider)
	}
	for _, q := range queries {
		if !contains(known, q.Resource) {
			return nil, apperrors.Newf(apperrors.CodeConfigValidation,
				"unknown resource %q for provider %q", q.Resource, provider)
		}
		spec, err := filterspec.Compile(q.Filter)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigValidation,
				"invalid filter for resource %q", q.Resource)
		}
		specs[inventory.SpecKey(provider, q.Resource)] = spec
		source.resources = append(source.resources, q.Resource)
	}
	return source, nil
}

func (t *targetSource) discoverFrom(enabled bool, fn func(ctx context.Context, excluded *regexp.Regexp) ([]string, error)) {
	if enabled {
		t.discover = fn
	}
}

func buildNotifiers(cfg *config.Config, logger ports.Logger) ([]ports.Notifier, error) {
	var notifiers []ports.Notifier
	if sc := cfg.ChangeProcessor.Slack; sc != nil {
		token := os.Getenv(config.EnvSlackToken)
		if token == "" {
			return nil, apperrors.Newf(apperrors.CodeConfigValidation,
				"missing Slack token, set env var %s", config.EnvSlackToken)
		}
		notifiers = append(notifiers, slacknotify.NewNotifier(token, sc.ChannelID, sc.RepoCommitURL))
	}
	if jc := cfg.ChangeProcessor.Jira; jc != nil {
		user := os.Getenv(config.EnvJiraUser)
		password := os.Getenv(config.EnvJiraPassword)
		if user == "" || password == "" {
			return nil, apperrors.Newf(apperrors.CodeConfigValidation,
				"missing Jira credentials, set env vars %s and %s",
				config.EnvJiraUser, config.EnvJiraPassword)
		}
		notifier, err := jiranotify.NewNotifier(jc.URL, user, password,
			jc.ProjectKey, jc.IssueType, jc.ProjectIDFilter, jc.Fields, logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, notifier)
	}
	return notifiers, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
