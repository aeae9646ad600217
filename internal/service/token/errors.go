package token

import "errors"

var (
	ErrNotFound      = errors.New("export token not found")
	ErrExpired       = errors.New("export link has expired")
	ErrInvalidExpiry = errors.New("expires_in_hours must be between 1 and 168")
)
