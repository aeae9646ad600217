package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/pkg/clock"
)

// custom claim keys
const (
	claimType     = "typ"
	claimUser     = "uid"
	claimSession  = "sid"
	claimFacility = "fid"
)

type Config struct {
	Mode Mode

	Issuer   string
	Audience string

	AccessTTL time.Duration
	// Leeway tolerates clock skew between the identity service and us.
	Leeway time.Duration

	Implicit []byte
	Clock    clock.Clock
}

// Manager verifies session tokens minted by the identity service. It can
// also mint them, which operator tooling and tests rely on.
type Manager struct {
	cfg  Config
	keys Keys
}

func New(cfg Config, keys Keys) (*Manager, error) {
	switch {
	case cfg.Mode != keys.Mode:
		return nil, ErrConfig{Msg: "cfg.Mode must match keys.Mode"}
	case cfg.Issuer == "":
		return nil, ErrConfig{Msg: "Issuer is required"}
	case cfg.Audience == "":
		return nil, ErrConfig{Msg: "Audience is required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

// IssueOptions describes one access token.
type IssueOptions struct {
	UserID    uuid.UUID
	SessionID *uuid.UUID
	// FacilityID is the caller's home facility, used when a request does
	// not name one.
	FacilityID *uuid.UUID
	TTL        time.Duration
}

func (m *Manager) IssueAccess(userID uuid.UUID, sessionID *uuid.UUID) (string, error) {
	return m.Issue(IssueOptions{UserID: userID, SessionID: sessionID})
}

func (m *Manager) Issue(opts IssueOptions) (string, error) {
	if opts.UserID == uuid.Nil {
		return "", ErrConfig{Msg: "user id is required"}
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = m.cfg.AccessTTL
	}
	now := m.cfg.Clock.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetSubject(opts.UserID.String())
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))

	tok.SetString(claimType, string(TokenTypeAccess))
	tok.SetString(claimUser, opts.UserID.String())
	if opts.SessionID != nil {
		tok.SetString(claimSession, opts.SessionID.String())
	}
	if opts.FacilityID != nil {
		tok.SetString(claimFacility, opts.FacilityID.String())
	}

	return m.seal(&tok)
}

func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	tok, err := m.open(tokenStr)
	if err != nil {
		return nil, err
	}
	if err := m.validAt(*tok); err != nil {
		return nil, err
	}
	claims, err := readClaims(tok)
	if err != nil {
		return nil, ErrInvalidToken{Reason: ReasonClaims, Err: err}
	}
	return claims, nil
}

func (m *Manager) parser() paseto.Parser {
	// NotExpired in the library reads the wall clock; Verify applies
	// validAt against the injected clock instead.
	return paseto.MakeParser([]paseto.Rule{
		paseto.IssuedBy(m.cfg.Issuer),
		paseto.ForAudience(m.cfg.Audience),
	})
}

func (m *Manager) validAt(tok paseto.Token) error {
	now := m.cfg.Clock.Now()
	exp, err := tok.GetExpiration()
	if err != nil {
		return ErrInvalidToken{Reason: ReasonClaims, Err: err}
	}
	if !now.Before(exp.Add(m.cfg.Leeway)) {
		return ErrInvalidToken{Reason: ReasonExpired, Err: fmt.Errorf("expired at %s", exp.Format(time.RFC3339))}
	}
	nbf, err := tok.GetNotBefore()
	if err != nil {
		return ErrInvalidToken{Reason: ReasonClaims, Err: err}
	}
	if now.Add(m.cfg.Leeway).Before(nbf) {
		return ErrInvalidToken{Reason: ReasonNotYetValid, Err: fmt.Errorf("not valid before %s", nbf.Format(time.RFC3339))}
	}
	return nil
}

func (m *Manager) seal(tok *paseto.Token) (string, error) {
	if !m.keys.CanIssue() {
		return "", ErrConfig{Msg: "verify-only keys cannot issue tokens"}
	}
	switch m.cfg.Mode {
	case ModeLocal:
		return tok.V4Encrypt(*m.keys.Symmetric, m.cfg.Implicit), nil
	case ModePublic:
		return tok.V4Sign(*m.keys.Secret, m.cfg.Implicit), nil
	}
	return "", ErrConfig{Msg: "unknown mode"}
}

func (m *Manager) open(tokenStr string) (*paseto.Token, error) {
	p := m.parser()

	var (
		tok *paseto.Token
		err error
	)
	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		tok, err = p.ParseV4Local(*m.keys.Symmetric, tokenStr, m.cfg.Implicit)
	case ModePublic:
		if m.keys.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		tok, err = p.ParseV4Public(*m.keys.Public, tokenStr, m.cfg.Implicit)
	default:
		return nil, ErrConfig{Msg: "unknown mode"}
	}
	if err != nil {
		return nil, ErrInvalidToken{Reason: ReasonMalformed, Err: err}
	}
	return tok, nil
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func readClaims(tok *paseto.Token) (*Claims, error) {
	out := &Claims{}
	var err error

	if out.TokenID, err = tok.GetJti(); err != nil {
		return nil, err
	}
	if out.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return nil, err
	}
	if out.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return nil, err
	}

	typ, err := tok.GetString(claimType)
	if err != nil {
		return nil, err
	}
	out.Type = TokenType(typ)

	uid, err := uuidClaim(tok, claimUser)
	if err != nil {
		return nil, err
	}
	if uid == nil {
		return nil, fmt.Errorf("missing %s claim", claimUser)
	}
	out.UserID = *uid

	if out.SessionID, err = uuidClaim(tok, claimSession); err != nil {
		return nil, err
	}
	if out.FacilityID, err = uuidClaim(tok, claimFacility); err != nil {
		return nil, err
	}
	return out, nil
}

// uuidClaim returns nil when the claim is absent and an error when it is
// present but malformed.
func uuidClaim(tok *paseto.Token, key string) (*uuid.UUID, error) {
	raw, err := tok.GetString(key)
	if err != nil {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", key, err)
	}
	return &id, nil
}
