package config

import "time"

type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	CasbinDatabase DatabaseConfig       `mapstructure:"casbin_database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Server         ServerConfig         `mapstructure:"server"`
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	Authorization  AuthorizationConfig  `mapstructure:"authorization"`
	Codes          CodesConfig          `mapstructure:"codes"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	S3             S3Config             `mapstructure:"s3"`
	Nats           NatsConfig           `mapstructure:"nats"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Exports        ExportsConfig        `mapstructure:"exports"`
	Policy         PolicyConfig         `mapstructure:"policy"`
}

type NatsConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type DatabaseConfig struct {
	Host       string                  `mapstructure:"host"`
	Port       int                     `mapstructure:"port"`
	User       string                  `mapstructure:"user"`
	Password   string                  `mapstructure:"password"`
	DBName     string                  `mapstructure:"dbname"`
	SSLMode    string                  `mapstructure:"sslmode"`
	Pool       DatabasePoolConfig      `mapstructure:"pool"`
	Migrations DatabaseMigrationConfig `mapstructure:"migrations"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type DatabaseMigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
	SafeMode    bool `mapstructure:"safe_mode"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	TimeoutSeconds int        `mapstructure:"timeout_seconds"`
	Environment    string     `mapstructure:"environment"`
	Databases      []string   `mapstructure:"databases"`
	CORS           CORSConfig `mapstructure:"cors"`
	RateLimit      RateLimit  `mapstructure:"rate_limit"`
}

type RateLimit struct {
	Max               int `mapstructure:"max"`
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAgeSeconds    int      `mapstructure:"max_age_seconds"`
}

type AuthenticationConfig struct {
	Paseto PasetoConfig `mapstructure:"paseto"`
	// SessionCheck requires a live "session:<sid>" key in Redis for every access token.
	SessionCheck bool `mapstructure:"session_check"`
}

type PasetoConfig struct {
	Mode             string `mapstructure:"mode"`
	LocalKeyHex      string `mapstructure:"local_key_hex"`
	SecretKeyHex     string `mapstructure:"secret_key_hex"`
	PublicKeyHex     string `mapstructure:"public_key_hex"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
	LeewaySeconds    int    `mapstructure:"leeway_seconds"`
}

type AuthorizationConfig struct {
	CasbinModelPath    string `mapstructure:"casbin_model_path"`
	PolicyFile         string `mapstructure:"policy_file"`
	EnableAudit        bool   `mapstructure:"enable_audit"`
	SuperadminBypass   bool   `mapstructure:"superadmin_bypass"`
	PolicySyncEnabled  bool   `mapstructure:"policy_sync_enabled"`
	HealthCheckEnabled bool   `mapstructure:"health_check_enabled"`
}

type CodesConfig struct {
	TokenByteLength int `mapstructure:"token_byte_length"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`        // e.g. "logs/app.log"
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after N MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"` // e.g. "http://localhost:3100"
	TenantID string `mapstructure:"tenant_id"`
	Username string `mapstructure:"username"` // for Grafana Cloud basic auth
	Password string `mapstructure:"password"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
}

// StorageConfig selects the persistence backend. "memory" is for local runs only.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type SchedulerConfig struct {
	Embedded                bool  `mapstructure:"embedded"`
	PollIntervalSeconds     int   `mapstructure:"poll_interval_seconds"`
	ExecutionTimeoutSeconds int   `mapstructure:"execution_timeout_seconds"`
	MaxConcurrent           int64 `mapstructure:"max_concurrent"`
	LeaderLock              bool  `mapstructure:"leader_lock"`
	LockTTLSeconds          int   `mapstructure:"lock_ttl_seconds"`
}

func (s SchedulerConfig) PollInterval() time.Duration {
	if s.PollIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

func (s SchedulerConfig) ExecutionTimeout() time.Duration {
	if s.ExecutionTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ExecutionTimeoutSeconds) * time.Second
}

func (s SchedulerConfig) LockTTL() time.Duration {
	if s.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.LockTTLSeconds) * time.Second
}

type ExportsConfig struct {
	DownloadBaseURL     string `mapstructure:"download_base_url"`
	DefaultExpiresHours int    `mapstructure:"default_expires_hours"`
	ArtifactStore       string `mapstructure:"artifact_store"` // s3, memory
	ArtifactPrefix      string `mapstructure:"artifact_prefix"`
	// EncryptionKey is a 32-byte hex string; artifacts are stored AES-256-GCM sealed when set.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type PolicyConfig struct {
	Source          string         `mapstructure:"source"` // static, http
	FilePath        string         `mapstructure:"file_path"`
	BaseURL         string         `mapstructure:"base_url"`
	TimeoutSeconds  int            `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int            `mapstructure:"cache_ttl_seconds"`
	Defaults        PolicyDefaults `mapstructure:"defaults"`
}

type PolicyDefaults struct {
	ReportTurnaroundHours int    `mapstructure:"report_turnaround_hours"`
	FollowupDays          int    `mapstructure:"followup_days"`
	ReassessmentDays      int    `mapstructure:"reassessment_days"`
	WarningWindowHours    int    `mapstructure:"warning_window_hours"`
	Timezone              string `mapstructure:"timezone"`
}
