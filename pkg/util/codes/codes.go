package codes

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidLength = errors.New("invalid code length")
)

const (
	// DownloadTokenByteLength is the number of random bytes behind an export
	// download link (produces 43 URL-safe chars).
	DownloadTokenByteLength = 32

	// MinDownloadTokenByteLength keeps configured link secrets guessing-resistant.
	MinDownloadTokenByteLength = 16
)

// GenerateDownloadToken creates the opaque secret embedded in an export download URL.
func GenerateDownloadToken(cfg Config) (string, error) {
	return GenerateURLSafeToken(cfg.ByteLength())
}

// GenerateSecureToken creates a cryptographically secure hex token.
// byteLength specifies the number of random bytes (output will be 2x this length in hex).
func GenerateSecureToken(byteLength int) (string, error) {
	b, err := randomBytes(byteLength)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateURLSafeToken creates a URL-safe base64-encoded token.
// byteLength specifies the number of random bytes.
func GenerateURLSafeToken(byteLength int) (string, error) {
	b, err := randomBytes(byteLength)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomBytes(n int) ([]byte, error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
