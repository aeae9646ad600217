package middleware

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	pasetotoken "github.com/Alijeyrad/careflow_backend/pkg/paseto"
	"github.com/Alijeyrad/careflow_backend/pkg/reqctx"
)

const (
	LocalsFacilityID = "facility_id"
	HeaderFacilityID = "X-Facility-ID"
)

// MembershipChecker answers whether a user belongs to a facility.
type MembershipChecker interface {
	IsMember(ctx context.Context, facilityID, userID uuid.UUID) (bool, error)
}

// FacilityContext resolves the facility a request acts on and checks the
// caller belongs to it. The facility comes from the facility_id query
// parameter, the X-Facility-ID header, a facility_id field in a JSON body,
// or the token's home facility, in that order. Must run after AuthRequired.
func FacilityContext(members MembershipChecker) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := pasetotoken.ClaimsFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		raw := c.Query("facility_id")
		if raw == "" {
			raw = c.Get(HeaderFacilityID)
		}
		if raw == "" {
			raw = facilityFromBody(c)
		}
		if raw == "" && claims.FacilityID != nil {
			raw = claims.FacilityID.String()
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusBadRequest, "facility_id is required")
		}

		facilityID, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid facility_id")
		}

		member, err := members.IsMember(c.Context(), facilityID, claims.UserID)
		if err != nil {
			return err
		}
		if !member {
			return fiber.ErrForbidden
		}

		c.Locals(LocalsFacilityID, facilityID.String())
		c.SetContext(reqctx.WithFacility(c.Context(), facilityID))
		return c.Next()
	}
}

func facilityFromBody(c fiber.Ctx) string {
	if len(c.Body()) == 0 {
		return ""
	}
	var probe struct {
		FacilityID string `json:"facility_id"`
	}
	if err := json.Unmarshal(c.Body(), &probe); err != nil {
		return ""
	}
	return probe.FacilityID
}
