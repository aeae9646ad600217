package authorize

import (
	"strings"

	"github.com/google/uuid"
)

type (
	Action       string
	Resource     string
	Role         string
	Domain       string
	PolicyEffect string

	// GroupSubject is g.sub: the user id a role is granted to.
	GroupSubject string
)

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	ActionManage  Action = "manage"  // implies every other action
	ActionExecute Action = "execute" // run a schedule now
	ActionAssign  Action = "assign"  // claim or unassign work items
	ActionRevoke  Action = "revoke"  // kill a download link

	WildcardAction Action = "*"
)

const (
	ResourceWorkItem   Resource = "work_item"
	ResourceAssessment Resource = "assessment"
	ResourceFallEvent  Resource = "fall_event"

	ResourceExportSchedule Resource = "export_schedule"
	ResourceExportToken    Resource = "export_token"
	ResourceExportLog      Resource = "export_log"

	WildcardResource Resource = "*"
)

// Platform roles live in DomainSys, facility roles in facility:<uuid>.
const (
	RolePlatformSuperAdmin Role = "role:platform:superadmin"

	RoleFacilityAdmin     Role = "role:facility:admin"
	RoleFacilityClinician Role = "role:facility:clinician"
	RoleFacilityViewer    Role = "role:facility:viewer"

	WildcardRole Role = "*"
)

const (
	DomainSys            Domain = "sys"
	DomainPrefixFacility Domain = "facility:"
	WildcardDomain       Domain = "*"
)

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

var (
	KnownActions = setOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList,
		ActionManage, ActionExecute, ActionAssign, ActionRevoke)
	KnownResources = setOf(ResourceWorkItem, ResourceAssessment, ResourceFallEvent,
		ResourceExportSchedule, ResourceExportToken, ResourceExportLog)
	KnownRoles = setOf(RolePlatformSuperAdmin, RoleFacilityAdmin, RoleFacilityClinician, RoleFacilityViewer)
)

func setOf[T comparable](vs ...T) map[T]struct{} {
	m := make(map[T]struct{}, len(vs))
	for _, v := range vs {
		m[v] = struct{}{}
	}
	return m
}

// PermissionPolicy is one p row: role, domain, resource, action, effect.
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}

func FacilityDomain(facilityID uuid.UUID) Domain {
	return DomainPrefixFacility + Domain(facilityID.String())
}

// ParseFacilityDomain extracts the facility id from a facility:<uuid> domain.
func ParseFacilityDomain(d Domain) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(string(d), string(DomainPrefixFacility))
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || len(raw) != 36 {
		return uuid.Nil, false
	}
	return id, true
}

// IsValidDomain accepts sys, the wildcard, and facility:<uuid>.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}
	_, ok := ParseFacilityDomain(d)
	return ok
}
