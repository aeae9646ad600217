package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	oneOf := func(key, got string, allowed ...string) {
		if got == "" {
			return
		}
		for _, a := range allowed {
			if got == a {
				return
			}
		}
		fail("%s must be one of %v, got %q", key, allowed, got)
	}

	if c.Scheduler.PollIntervalSeconds < 0 {
		fail("scheduler.poll_interval_seconds must be positive")
	}
	if c.Scheduler.ExecutionTimeoutSeconds < 0 {
		fail("scheduler.execution_timeout_seconds must be positive")
	}
	if h := c.Exports.DefaultExpiresHours; h != 0 && (h < 1 || h > 168) {
		fail("exports.default_expires_hours must be between 1 and 168, got %d", h)
	}

	oneOf("storage.driver", c.Storage.Driver, "postgres", "memory")
	oneOf("exports.artifact_store", c.Exports.ArtifactStore, "s3", "memory")
	oneOf("policy.source", c.Policy.Source, "static", "http")
	oneOf("authentication.paseto.mode", c.Authentication.Paseto.Mode, "local", "public")

	if c.Policy.Source == "http" && c.Policy.BaseURL == "" {
		fail("policy.base_url is required when policy.source is http")
	}
	if tz := c.Policy.Defaults.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			fail("policy.defaults.timezone: %w", err)
		}
	}
	if c.Storage.Driver == "memory" && c.Authorization.PolicyFile == "" {
		fail("authorization.policy_file is required with storage.driver memory")
	}

	return errors.Join(errs...)
}
