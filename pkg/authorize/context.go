package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/pkg/reqctx"
)

var (
	ErrNoSubjectInContext  = errors.New("no subject found in context")
	ErrNoFacilityInContext = errors.New("no facility found in context")
)

// SubjectFromContext returns the authenticated user as a casbin subject.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	userID, ok := reqctx.UserIDFromContext(ctx)
	if !ok || userID == uuid.Nil {
		return "", ErrNoSubjectInContext
	}
	return GroupSubject(userID.String()), nil
}

// DomainFromContext returns the facility domain resolved for this request.
func DomainFromContext(ctx context.Context) (Domain, error) {
	facilityID, ok := reqctx.FacilityFromContext(ctx)
	if !ok {
		return "", ErrNoFacilityInContext
	}
	return FacilityDomain(facilityID), nil
}
