package codes

import "github.com/Alijeyrad/careflow_backend/config"

// Config holds settings for token generation
type Config struct {
	// TokenByteLength is the number of random bytes for download tokens
	TokenByteLength int
}

// DefaultConfig returns sensible defaults for code generation
func DefaultConfig() Config {
	return Config{TokenByteLength: DownloadTokenByteLength}
}

// ByteLength returns the configured length, never below the minimum.
func (c Config) ByteLength() int {
	if c.TokenByteLength < MinDownloadTokenByteLength {
		return DownloadTokenByteLength
	}
	return c.TokenByteLength
}

// FromCentralConfig converts central config.CodesConfig to package Config
func FromCentralConfig(c config.CodesConfig) Config {
	return Config{TokenByteLength: c.TokenByteLength}
}
