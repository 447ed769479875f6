package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Git = GitConfig{
		RemoteURL:      "https://git.example.com/snapshots.git",
		LocalDirectory: "/var/lib/cloudimized/repo",
	}
	cfg.GCP = &GCPConfig{
		Projects: []string{"p1"},
		Queries:  []QueryConfig{{Resource: "networks"}},
	}
	cfg.ChangeProcessor = ChangeProcessorConfig{
		ScanInterval:        30,
		ServiceAccountRegex: `svc-.*@.*\.iam\.gserviceaccount\.com`,
	}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRequiresGit(t *testing.T) {
	cfg := validConfig()
	cfg.Git = GitConfig{}
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresProviderSection(t *testing.T) {
	cfg := validConfig()
	cfg.GCP = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))
}

func TestValidateRequiresQueries(t *testing.T) {
	cfg := validConfig()
	cfg.GCP.Queries = nil
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresScanInterval(t *testing.T) {
	cfg := validConfig()
	cfg.ChangeProcessor.ScanInterval = 0
	require.Error(t, cfg.Validate())
}

func TestValidateTicketSettingsTogether(t *testing.T) {
	cfg := validConfig()
	cfg.ChangeProcessor.TicketRegex = `TEST-[0-9]+`
	require.Error(t, cfg.Validate())

	cfg.ChangeProcessor.TicketSysURL = "https://tickets.example.com/browse"
	require.NoError(t, cfg.Validate())
}

func TestValidateWorkerCount(t *testing.T) {
	cfg := validConfig()
	cfg.Settings.WorkerCount = 0
	require.Error(t, cfg.Validate())
}

func TestLoadTokenMap(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"my-org": "token-1", "other-org": "token-2"}`), 0o600))

	tokens, err := LoadTokenMap(file)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"my-org": "token-1", "other-org": "token-2"}, tokens)
}

func TestLoadTokenMapEnvFallback(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"my-org": "token-1"}`), 0o600))
	t.Setenv(EnvTerraformTokens, file)

	tokens, err := LoadTokenMap("")
	require.NoError(t, err)
	assert.Equal(t, "token-1", tokens["my-org"])
}

func TestLoadTokenMapMissing(t *testing.T) {
	t.Setenv(EnvTerraformTokens, "")

	_, err := LoadTokenMap("")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))

	_, err = LoadTokenMap("/nonexistent/tokens.json")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigReadError))
}

func TestLoadTokenMapMalformed(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(file, []byte(`{not json`), 0o600))

	_, err := LoadTokenMap(file)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigParseError))
}
