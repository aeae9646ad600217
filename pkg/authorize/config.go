package authorize

import "github.com/Alijeyrad/careflow_backend/config"

type Config struct {
	CasbinModelPath string
	// PolicyFile switches policy storage from Postgres to a CSV file.
	PolicyFile string

	EnableAudit      bool
	SuperadminBypass bool
	// PolicySyncEnabled reloads policy on Postgres NOTIFY from other replicas.
	PolicySyncEnabled bool
	// HealthCheckEnabled makes readiness fail after a failed policy reload.
	HealthCheckEnabled bool
}

func DefaultConfig() Config {
	return Config{
		CasbinModelPath:    "config/rbac_model.conf",
		EnableAudit:        true,
		SuperadminBypass:   true,
		HealthCheckEnabled: true,
	}
}

func FromCentralConfig(c config.AuthorizationConfig) Config {
	return Config{
		CasbinModelPath:    c.CasbinModelPath,
		PolicyFile:         c.PolicyFile,
		EnableAudit:        c.EnableAudit,
		SuperadminBypass:   c.SuperadminBypass,
		PolicySyncEnabled:  c.PolicySyncEnabled,
		HealthCheckEnabled: c.HealthCheckEnabled,
	}
}
