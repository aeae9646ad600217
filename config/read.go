package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/careflow_backend/pkg/constants"
)

// ReadConfig loads config.yaml from configPath, layers CAREFLOW_* env vars
// on top (CAREFLOW_DATABASE_HOST overrides database.host) and validates the
// result. A missing file is tolerated when the environment carries enough to
// boot, as in container deployments.
func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || !envConfigured() {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func envConfigured() bool {
	return os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") != "" ||
		os.Getenv(constants.EnvPrefix+"_STORAGE_DRIVER") == "memory"
}

func setDefaults(v *viper.Viper) {
	for key, val := range map[string]any{
		"server.port":            8080,
		"server.timeout_seconds": 30,
		"server.environment":     "development",

		"storage.driver":                "postgres",
		"database.migrations.safe_mode": true,

		"authentication.session_check":         true,
		"authentication.paseto.leeway_seconds": 30,
		"authorization.casbin_model_path":      "config/rbac_model.conf",
		"authorization.policy_sync_enabled":    true,
		"authorization.health_check_enabled":   true,
		"codes.token_byte_length":              32,

		"scheduler.poll_interval_seconds":     60,
		"scheduler.execution_timeout_seconds": 30,
		"scheduler.max_concurrent":            4,
		"scheduler.lock_ttl_seconds":          30,

		"exports.default_expires_hours": 72,
		"exports.artifact_store":        "s3",
		"exports.artifact_prefix":       "exports",

		"policy.source":                           "static",
		"policy.timeout_seconds":                  5,
		"policy.cache_ttl_seconds":                300,
		"policy.defaults.report_turnaround_hours": 48,
		"policy.defaults.followup_days":           3,
		"policy.defaults.reassessment_days":       90,
		"policy.defaults.warning_window_hours":    24,
		"policy.defaults.timezone":                "UTC",
	} {
		v.SetDefault(key, val)
	}
}
