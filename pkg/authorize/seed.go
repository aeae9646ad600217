package authorize

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultPolicies is the baseline permission set. Facility policies use the
// wildcard domain so a single row covers every facility:<uuid>.
func DefaultPolicies() []PermissionPolicy {
	return []PermissionPolicy{
		// Platform superadmin
		{RolePlatformSuperAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

		// Facility admin: everything inside its facility
		{RoleFacilityAdmin, WildcardDomain, WildcardResource, ActionManage, EffectAllow},

		// Clinician: works the queue, reads exports
		{RoleFacilityClinician, WildcardDomain, ResourceWorkItem, ActionList, EffectAllow},
		{RoleFacilityClinician, WildcardDomain, ResourceWorkItem, ActionAssign, EffectAllow},
		{RoleFacilityClinician, WildcardDomain, ResourceAssessment, ActionRead, EffectAllow},
		{RoleFacilityClinician, WildcardDomain, ResourceAssessment, ActionUpdate, EffectAllow},
		{RoleFacilityClinician, WildcardDomain, ResourceFallEvent, ActionUpdate, EffectAllow},
		{RoleFacilityClinician, WildcardDomain, ResourceExportLog, ActionList, EffectAllow},

		// Viewer: read-only
		{RoleFacilityViewer, WildcardDomain, ResourceWorkItem, ActionList, EffectAllow},
		{RoleFacilityViewer, WildcardDomain, ResourceAssessment, ActionRead, EffectAllow},
	}
}

// SeedDefaultPolicies sets up the baseline RBAC policies for the system.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	policies := DefaultPolicies()
	for _, p := range policies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(policies))
	return nil
}

// AssignFacilityRole grants a facility role to a user.
// Valid roles: RoleFacilityAdmin, RoleFacilityClinician, RoleFacilityViewer
func AssignFacilityRole(ctx context.Context, auth IAuthorization, userID, facilityID uuid.UUID, role Role) error {
	switch role {
	case RoleFacilityAdmin, RoleFacilityClinician, RoleFacilityViewer:
	default:
		return ErrInvalidArgs
	}

	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID.String()), role, FacilityDomain(facilityID))
	return err
}

// RemoveFacilityRole removes a facility role from a user.
func RemoveFacilityRole(ctx context.Context, auth IAuthorization, userID, facilityID uuid.UUID, role Role) error {
	_, err := auth.RemoveRoleForUserInDomain(ctx, GroupSubject(userID.String()), role, FacilityDomain(facilityID))
	return err
}

// GetFacilityRoles returns all roles a user has in a facility.
func GetFacilityRoles(ctx context.Context, auth IAuthorization, userID, facilityID uuid.UUID) ([]Role, error) {
	return auth.GetRolesForUserInDomain(ctx, GroupSubject(userID.String()), FacilityDomain(facilityID))
}

// AssignSuperAdmin grants the platform superadmin role. Operator use only.
func AssignSuperAdmin(ctx context.Context, auth IAuthorization, userID uuid.UUID) error {
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID.String()), RolePlatformSuperAdmin, DomainSys)
	return err
}
