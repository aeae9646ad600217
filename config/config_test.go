package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
storage:
  driver: memory
authorization:
  policy_file: policy.csv
exports:
  artifact_store: memory
  download_base_url: https://careflow.example
scheduler:
  embedded: true
  poll_interval_seconds: 15
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.True(t, cfg.Scheduler.Embedded)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.PollInterval())

	// defaults fill what the file leaves out
	assert.Equal(t, 72, cfg.Exports.DefaultExpiresHours)
	assert.Equal(t, "UTC", cfg.Policy.Defaults.Timezone)
	assert.True(t, cfg.Authentication.SessionCheck)
	assert.Equal(t, int64(4), cfg.Scheduler.MaxConcurrent)
}

func TestReadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CAREFLOW_SERVER_PORT", "7070")
	t.Setenv("CAREFLOW_EXPORTS_DEFAULT_EXPIRES_HOURS", "12")

	cfg, err := ReadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Exports.DefaultExpiresHours)
}

func TestReadConfig_MissingFile(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Driver: "sqlite"},
		Exports: ExportsConfig{DefaultExpiresHours: 500, ArtifactStore: "gcs"},
		Policy:  PolicyConfig{Source: "http", Defaults: PolicyDefaults{Timezone: "Mars/Olympus"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"storage.driver", "exports.default_expires_hours", "exports.artifact_store",
		"policy.base_url", "policy.defaults.timezone",
	} {
		assert.Contains(t, err.Error(), want)
	}

	assert.NoError(t, (&Config{}).Validate())
}
