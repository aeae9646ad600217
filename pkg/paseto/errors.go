package pasetotoken

import (
	"errors"
	"fmt"
)

// ErrConfig reports a manager built with settings or keys it cannot use.
type ErrConfig struct{ Msg string }

func (e ErrConfig) Error() string { return "bearer token manager: " + e.Msg }

// Reason names the check that turned a bearer token away.
type Reason string

const (
	// ReasonMalformed covers decryption, signature, issuer and audience.
	ReasonMalformed   Reason = "malformed"
	ReasonExpired     Reason = "expired"
	ReasonNotYetValid Reason = "not_yet_valid"
	// ReasonClaims means the token opened but lacks the careflow claims.
	ReasonClaims Reason = "claims"
)

type ErrInvalidToken struct {
	Reason Reason
	Err    error
}

func (e ErrInvalidToken) Error() string {
	return fmt.Sprintf("bearer token rejected (%s): %v", e.Reason, e.Err)
}

func (e ErrInvalidToken) Unwrap() error { return e.Err }

// ReasonOf returns the rejection reason carried by err, or "" when err is
// not an ErrInvalidToken.
func ReasonOf(err error) Reason {
	var invalid ErrInvalidToken
	if errors.As(err, &invalid) {
		return invalid.Reason
	}
	return ""
}
