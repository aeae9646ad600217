package pasetotoken

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/careflow_backend/config"
)

// CtxKeyClaims is the fiber Locals key AuthRequired stores claims under.
const CtxKeyClaims = "auth.claims"

func ClaimsFromFiber(c fiber.Ctx) (*Claims, bool) {
	cl, ok := c.Locals(CtxKeyClaims).(*Claims)
	return cl, ok && cl != nil
}

// NewPasetoManager builds a Manager from the authentication section. A
// public-mode deployment normally carries only the public key and can
// verify but not issue.
func NewPasetoManager(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto
	mode := Mode(p.Mode)

	keys, err := LoadKeys(KeyStrings{
		Mode:         mode,
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}

	return New(Config{
		Mode:      mode,
		Issuer:    p.Issuer,
		Audience:  p.Audience,
		AccessTTL: time.Duration(p.AccessTTLMinutes) * time.Minute,
		Leeway:    time.Duration(p.LeewaySeconds) * time.Second,
	}, keys)
}
