package authorize

import (
	"context"
	"path/filepath"
	"testing"

	casbin "github.com/casbin/casbin/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelPath = "../../config/rbac_model.conf"

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CasbinModelPath = modelPath
	cfg.PolicyFile = filepath.Join(t.TempDir(), "policy.csv")
	return cfg
}

func createTestEnforcer(t *testing.T) *casbin.DistributedEnforcer {
	t.Helper()
	e, _, err := NewEnforcer(testConfig(t), "")
	require.NoError(t, err)
	return e
}

func newSeededAuth(t *testing.T, cfg Config) IAuthorization {
	t.Helper()
	e, _, err := NewEnforcer(cfg, "")
	require.NoError(t, err)
	auth, err := NewAuthorization(e, cfg)
	require.NoError(t, err)
	require.NoError(t, SeedDefaultPolicies(context.Background(), auth))
	return auth
}

func TestNewAuthorization_NilEnforcer(t *testing.T) {
	_, err := NewAuthorization(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	auth := newSeededAuth(t, testConfig(t))

	facility := uuid.New()
	here, elsewhere := FacilityDomain(facility), FacilityDomain(uuid.New())
	clinician, admin := uuid.New(), uuid.New()
	require.NoError(t, AssignFacilityRole(ctx, auth, clinician, facility, RoleFacilityClinician))
	require.NoError(t, AssignFacilityRole(ctx, auth, admin, facility, RoleFacilityAdmin))

	allowed := []struct {
		user uuid.UUID
		dom  Domain
		res  Resource
		act  Action
		want bool
	}{
		{clinician, here, ResourceWorkItem, ActionList, true},
		{clinician, here, ResourceWorkItem, ActionAssign, true},
		{clinician, here, ResourceFallEvent, ActionUpdate, true},
		{clinician, here, ResourceWorkItem, ActionManage, false},
		{clinician, here, ResourceExportSchedule, ActionCreate, false},
		{clinician, elsewhere, ResourceWorkItem, ActionList, false},
		{admin, here, ResourceWorkItem, ActionManage, true},
		{admin, here, ResourceExportToken, ActionDelete, true},
		{admin, elsewhere, ResourceExportSchedule, ActionCreate, false},
	}
	for _, tc := range allowed {
		got, err := auth.Enforce(ctx, GroupSubject(tc.user.String()), tc.dom, tc.res, tc.act)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s on %s", tc.act, tc.res, tc.dom)
	}

	subject := GroupSubject(clinician.String())
	for name, call := range map[string]func() (bool, error){
		"empty subject":    func() (bool, error) { return auth.Enforce(ctx, "", here, ResourceWorkItem, ActionList) },
		"malformed domain": func() (bool, error) { return auth.Enforce(ctx, subject, Domain("invalid"), ResourceWorkItem, ActionList) },
		"unknown resource": func() (bool, error) { return auth.Enforce(ctx, subject, here, Resource("unknown"), ActionRead) },
		"unknown action":   func() (bool, error) { return auth.Enforce(ctx, subject, here, ResourceWorkItem, Action("unknown")) },
	} {
		_, err := call()
		assert.ErrorIs(t, err, ErrInvalidArgs, name)
	}
}

func TestMustEnforce(t *testing.T) {
	ctx := context.Background()
	auth := newSeededAuth(t, testConfig(t))

	facility, viewer := uuid.New(), uuid.New()
	require.NoError(t, AssignFacilityRole(ctx, auth, viewer, facility, RoleFacilityViewer))
	subject := GroupSubject(viewer.String())

	assert.NoError(t, auth.MustEnforce(ctx, subject, FacilityDomain(facility), ResourceAssessment, ActionRead))
	assert.ErrorIs(t, auth.MustEnforce(ctx, subject, FacilityDomain(facility), ResourceAssessment, ActionUpdate), ErrForbidden)
}

func TestSuperAdminBypass(t *testing.T) {
	ctx := context.Background()
	root := uuid.New()
	facility := FacilityDomain(uuid.New())

	for _, bypass := range []bool{true, false} {
		cfg := testConfig(t)
		cfg.SuperadminBypass = bypass
		auth := newSeededAuth(t, cfg)
		require.NoError(t, AssignSuperAdmin(ctx, auth, root))

		ok, err := auth.Enforce(ctx, GroupSubject(root.String()), facility, ResourceExportSchedule, ActionDelete)
		require.NoError(t, err)
		assert.Equal(t, bypass, ok, "bypass=%v", bypass)
	}
}

func TestFacilityRoles(t *testing.T) {
	ctx := context.Background()
	auth := newSeededAuth(t, testConfig(t))
	user, facility := uuid.New(), uuid.New()

	require.NoError(t, AssignFacilityRole(ctx, auth, user, facility, RoleFacilityClinician))
	roles, err := GetFacilityRoles(ctx, auth, user, facility)
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleFacilityClinician}, roles)

	require.NoError(t, RemoveFacilityRole(ctx, auth, user, facility, RoleFacilityClinician))
	roles, err = GetFacilityRoles(ctx, auth, user, facility)
	require.NoError(t, err)
	assert.Empty(t, roles)

	assert.ErrorIs(t, AssignFacilityRole(ctx, auth, user, facility, RolePlatformSuperAdmin), ErrInvalidArgs)
	_, err = auth.AddRoleForUserInDomain(ctx, GroupSubject(user.String()), Role("invalid-role"), FacilityDomain(facility))
	assert.Error(t, err)
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	auth, err := NewAuthorization(createTestEnforcer(t), DefaultConfig())
	require.NoError(t, err)

	added, err := auth.AddPermission(ctx, RoleFacilityViewer, WildcardDomain, ResourceExportLog, ActionList, EffectAllow)
	require.NoError(t, err)
	assert.True(t, added)

	removed, err := auth.RemovePermission(ctx, RoleFacilityViewer, WildcardDomain, ResourceExportLog, ActionList, EffectAllow)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = auth.AddPermission(ctx, RoleFacilityAdmin, WildcardDomain, ResourceWorkItem, ActionRead, PolicyEffect("invalid"))
	assert.Error(t, err)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	auth := newSeededAuth(t, testConfig(t))
	dir := NewDirectory(auth)

	facility := uuid.New()
	clinician, admin, stranger := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, AssignFacilityRole(ctx, auth, clinician, facility, RoleFacilityClinician))
	require.NoError(t, AssignFacilityRole(ctx, auth, admin, facility, RoleFacilityAdmin))

	for _, tc := range []struct {
		user          uuid.UUID
		member, admin bool
	}{
		{clinician, true, false},
		{admin, true, true},
		{stranger, false, false},
	} {
		member, err := dir.IsMember(ctx, facility, tc.user)
		require.NoError(t, err)
		isAdmin, err := dir.IsAdmin(ctx, facility, tc.user)
		require.NoError(t, err)
		assert.Equal(t, tc.member, member)
		assert.Equal(t, tc.admin, isAdmin)
	}
}
