package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/careflow_backend/pkg/constants"
	pasetotoken "github.com/Alijeyrad/careflow_backend/pkg/paseto"
	"github.com/Alijeyrad/careflow_backend/pkg/reqctx"
)

// AuthRequired validates a Bearer PASETO access token and, when the token
// carries a session, checks that the session is still live in Redis.
// On success the claims are stored in Locals and on the request context.
func AuthRequired(mgr *pasetotoken.Manager, rdb *redis.Client) fiber.Handler {
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			slog.DebugContext(c.Context(), "auth: token rejected", "reason", pasetotoken.ReasonOf(err))
			return fiber.ErrUnauthorized
		}

		// refresh tokens never open protected routes
		if claims.Type != pasetotoken.TokenTypeAccess {
			return fiber.ErrUnauthorized
		}

		if claims.SessionID != nil && rdb != nil {
			key := constants.RedisSessionPrefix + claims.SessionID.String()
			if err := rdb.Get(c.Context(), key).Err(); err != nil {
				return fiber.ErrUnauthorized
			}
		}

		c.Locals(pasetotoken.CtxKeyClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}
