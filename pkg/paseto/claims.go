package pasetotoken

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh tokens are minted by the identity service and are
	// never accepted here.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is what a verified token says about the caller.
type Claims struct {
	Type       TokenType
	UserID     uuid.UUID
	SessionID  *uuid.UUID
	FacilityID *uuid.UUID

	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Claims) GetUserID() uuid.UUID      { return c.UserID }
func (c *Claims) GetSessionID() *uuid.UUID  { return c.SessionID }
func (c *Claims) GetFacilityID() *uuid.UUID { return c.FacilityID }
func (c *Claims) GetTokenType() string      { return string(c.Type) }

func (c *Claims) IsExpired() bool { return c.ExpiredAt(time.Now()) }

func (c *Claims) ExpiredAt(now time.Time) bool { return !now.Before(c.ExpiresAt) }
