package authorize

import (
	"context"

	"github.com/google/uuid"
)

// Directory answers facility membership questions from the role graph.
// A user is a member of a facility when it holds any role in the
// facility's domain; admin capability is manage on work items there.
type Directory struct {
	auth IAuthorization
}

func NewDirectory(auth IAuthorization) *Directory {
	return &Directory{auth: auth}
}

func (d *Directory) IsMember(ctx context.Context, facilityID, userID uuid.UUID) (bool, error) {
	if facilityID == uuid.Nil || userID == uuid.Nil {
		return false, nil
	}
	roles, err := d.auth.GetRolesForUserInDomain(ctx, GroupSubject(userID.String()), FacilityDomain(facilityID))
	if err != nil {
		return false, err
	}
	if len(roles) > 0 {
		return true, nil
	}
	// superadmins act as members everywhere
	return d.IsAdmin(ctx, facilityID, userID)
}

func (d *Directory) IsAdmin(ctx context.Context, facilityID, userID uuid.UUID) (bool, error) {
	if facilityID == uuid.Nil || userID == uuid.Nil {
		return false, nil
	}
	return d.auth.Enforce(ctx, GroupSubject(userID.String()), FacilityDomain(facilityID), ResourceWorkItem, ActionManage)
}
