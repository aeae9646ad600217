package constants

const (
	AppName = "careflow"

	ConfigName   = "config"
	ConfigFormat = "yaml"

	// EnvPrefix maps CAREFLOW_DATABASE_HOST onto database.host.
	EnvPrefix = "CAREFLOW"
)

// Redis key prefixes.
const (
	RedisSessionPrefix = "session:"
	RedisPolicyPrefix  = "policy:"
	RedisTriggerLock   = "careflow:trigger:leader"
)

// NATS subjects.
const (
	SubjectScoringCompleted = "careflow.scoring.completed.*"
)
