package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/careflow_backend/internal/service/workflow"
	pasetotoken "github.com/Alijeyrad/careflow_backend/pkg/paseto"
)

func facilityIDFromLocals(c fiber.Ctx) (uuid.UUID, bool) {
	s, hasKey := c.Locals(middleware.LocalsFacilityID).(string)
	if !hasKey || s == "" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

func userIDFromLocals(c fiber.Ctx) (uuid.UUID, bool) {
	claims, hasClaims := pasetotoken.ClaimsFromFiber(c)
	if !hasClaims || claims.UserID == uuid.Nil {
		return uuid.UUID{}, false
	}
	return claims.UserID, true
}

// actorFromLocals is the caller and the facility it acts in, as set by
// AuthRequired and FacilityContext.
func actorFromLocals(c fiber.Ctx) (workflow.Actor, bool) {
	facilityID, valid := facilityIDFromLocals(c)
	if !valid {
		return workflow.Actor{}, false
	}
	userID, valid := userIDFromLocals(c)
	if !valid {
		return workflow.Actor{}, false
	}
	return workflow.Actor{UserID: userID, FacilityID: facilityID}, true
}

func idParam(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
