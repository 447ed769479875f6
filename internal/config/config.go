package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/egnyte/cloudimized/internal/adapters/runs/tfc"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
	"github.com/egnyte/cloudimized/internal/inventory/filterspec"
	"github.com/egnyte/cloudimized/internal/log"
	"github.com/egnyte/cloudimized/internal/reporting/text"
)

// Environment variables carrying secrets. Credentials never live in the
// configuration file.
const (
	EnvGitUser         = "GIT_USR"
	EnvGitPassword     = "GIT_PSW"
	EnvSlackToken      = "SLACK_TOKEN"
	EnvJiraUser        = "JIRA_USR"
	EnvJiraPassword    = "JIRA_PSW"
	EnvTerraformTokens = "TERRAFORM_READ_TOKENS"
)

type Config struct {
	Settings        SettingsConfig        `mapstructure:"settings"`
	Git             GitConfig             `mapstructure:"git" validate:"required"`
	GCP             *GCPConfig            `mapstructure:"gcp"`
	Azure           *AzureConfig          `mapstructure:"azure"`
	ChangeProcessor ChangeProcessorConfig `mapstructure:"change_processor" validate:"required"`
}

type SettingsConfig struct {
	LogLevel  log.Level  `mapstructure:"log_level"`
	LogFormat log.Format `mapstructure:"log_format"`
	// Snapshot worker pool size.
	WorkerCount int `mapstructure:"worker_count" validate:"min=1"`
	// API calls per second shared by all workers of one provider.
	QueryRateLimit float64     `mapstructure:"query_rate_limit" validate:"gt=0"`
	QueryRetries   int         `mapstructure:"query_retries" validate:"min=0"`
	Reporter       text.Config `mapstructure:"reporter"`
}

type GitConfig struct {
	RemoteURL      string `mapstructure:"remote_url" validate:"required"`
	LocalDirectory string `mapstructure:"local_directory" validate:"required"`
}

// QueryConfig selects one registered resource and its result filtering.
// The filter fields sit at the same level as resource, matching the
// snapshot configuration files already in use.
type QueryConfig struct {
	Resource string            `mapstructure:"resource" validate:"required"`
	Filter   filterspec.Config `mapstructure:",squash"`
}

type GCPConfig struct {
	DiscoverProjects bool          `mapstructure:"discover_projects"`
	ExcludedProjects string        `mapstructure:"excluded_projects"`
	Projects         []string      `mapstructure:"project_list"`
	Queries          []QueryConfig `mapstructure:"queries" validate:"required,min=1,dive"`
}

type AzureConfig struct {
	DiscoverSubscriptions bool          `mapstructure:"discover_subscriptions"`
	ExcludedSubscriptions string        `mapstructure:"excluded_subscriptions"`
	Subscriptions         []string      `mapstructure:"subscription_list"`
	Queries               []QueryConfig `mapstructure:"queries" validate:"required,min=1,dive"`
}

type ChangeProcessorConfig struct {
	// Interval between scans in minutes, also the audit lookback window.
	ScanInterval        int              `mapstructure:"scan_interval" validate:"required,min=1"`
	ServiceAccountRegex string           `mapstructure:"service_account_regex" validate:"required"`
	TicketRegex         string           `mapstructure:"ticket_regex"`
	TicketSysURL        string           `mapstructure:"ticket_sys_url"`
	Terraform           *TerraformConfig `mapstructure:"terraform"`
	Slack               *SlackConfig     `mapstructure:"slack"`
	Jira                *JiraConfig      `mapstructure:"jira"`
}

type TerraformConfig struct {
	URL                 string                          `mapstructure:"url" validate:"required"`
	ServiceWorkspaceMap map[string]tfc.WorkspaceMapping `mapstructure:"service_workspace_map" validate:"required,min=1,dive"`
	// JSON file mapping organization name to API token. Falls back to
	// the file named by TERRAFORM_READ_TOKENS.
	WorkspaceTokenFile string `mapstructure:"workspace_token_file"`
}

type SlackConfig struct {
	ChannelID     string `mapstructure:"channel_id" validate:"required"`
	RepoCommitURL string `mapstructure:"repo_commit_url" validate:"required"`
}

type JiraConfig struct {
	URL             string `mapstructure:"url" validate:"required"`
	ProjectKey      string `mapstructure:"project_key" validate:"required"`
	IssueType       string `mapstructure:"issue_type"`
	ProjectIDFilter string `mapstructure:"project_id_filter"`
	// Extra issue fields set verbatim on every created ticket, e.g.
	// custom fields required by the Jira project.
	Fields map[string]interface{} `mapstructure:"fields"`
}

func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel:       log.LevelInfo,
			LogFormat:      log.FormatText,
			WorkerCount:    3,
			QueryRateLimit: 2,
			QueryRetries:   3,
		},
	}
}

// Validate checks the structural constraints declared on the config
// tags plus the cross-field rules validator cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigValidation, "invalid configuration")
	}
	if c.GCP == nil && c.Azure == nil {
		return apperrors.New(apperrors.CodeConfigValidation,
			"at least one provider section (gcp, azure) is required")
	}
	if (c.ChangeProcessor.TicketRegex == "") != (c.ChangeProcessor.TicketSysURL == "") {
		return apperrors.New(apperrors.CodeConfigValidation,
			"ticket_regex and ticket_sys_url must be set together")
	}
	return nil
}

// LoadTokenMap reads the organization to token map from file, or from
// the file named by TERRAFORM_READ_TOKENS when file is empty.
func LoadTokenMap(file string) (map[string]string, error) {
	if file == "" {
		file = os.Getenv(EnvTerraformTokens)
	}
	if file == "" {
		return nil, apperrors.New(apperrors.CodeConfigValidation,
			"no token file specified in configuration file and no env var set with file location")
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigReadError,
			"issue opening token file %q", file)
	}
	var tokens map[string]string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &tokens); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigParseError,
			"issue parsing token file %q", file)
	}
	return tokens, nil
}
