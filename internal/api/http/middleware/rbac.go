package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
)

// RequirePermission checks the authenticated user holds the permission in
// the facility set by FacilityContext, or in the sys domain when the route
// is not facility scoped.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx := c.Context()
		subject, err := authorize.SubjectFromContext(ctx)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		domain, err := authorize.DomainFromContext(ctx)
		if errors.Is(err, authorize.ErrNoFacilityInContext) {
			domain = authorize.DomainSys
		}

		switch err := auth.MustEnforce(ctx, subject, domain, resource, action); {
		case errors.Is(err, authorize.ErrForbidden):
			return fiber.ErrForbidden
		case err != nil:
			return err
		}
		return c.Next()
	}
}
