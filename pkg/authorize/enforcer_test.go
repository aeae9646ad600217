package authorize

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnforcer_PolicyFile(t *testing.T) {
	cfg := testConfig(t)

	e, cleanup, err := NewEnforcer(cfg, "")
	require.NoError(t, err)
	defer cleanup(context.Background())

	auth, err := NewAuthorization(e, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	user, facility := uuid.New(), uuid.New()
	require.NoError(t, SeedDefaultPolicies(ctx, auth))
	require.NoError(t, AssignFacilityRole(ctx, auth, user, facility, RoleFacilityClinician))
	require.NoError(t, PersistPolicy(auth, cfg))

	// a second enforcer over the same file sees the saved grants
	e2, _, err := NewEnforcer(cfg, "")
	require.NoError(t, err)
	auth2, err := NewAuthorization(e2, cfg)
	require.NoError(t, err)

	ok, err := auth2.Enforce(ctx, GroupSubject(user.String()), FacilityDomain(facility), ResourceWorkItem, ActionAssign)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, IsPolicyHealthy())
}

func TestIsPolicyHealthy(t *testing.T) {
	t.Cleanup(func() {
		policyStale.Store(false)
		policyHealthCheck.Store(false)
	})

	policyHealthCheck.Store(true)
	policyStale.Store(true)
	assert.False(t, IsPolicyHealthy())

	policyHealthCheck.Store(false)
	assert.True(t, IsPolicyHealthy())
}
