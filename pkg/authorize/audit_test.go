package authorize

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditedAuthorization(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inner, err := NewAuthorization(createTestEnforcer(t), DefaultConfig())
	require.NoError(t, err)
	auth := NewAuditedAuthorization(inner, logger)

	ctx := context.Background()
	require.NoError(t, SeedDefaultPolicies(ctx, auth))
	buf.Reset()

	user := uuid.New()
	facility := uuid.New()
	require.NoError(t, AssignFacilityRole(ctx, auth, user, facility, RoleFacilityViewer))
	assert.Contains(t, buf.String(), `"operation":"add_role"`)
	buf.Reset()

	// allowed decisions stay below info
	ok, err := auth.Enforce(ctx, GroupSubject(user.String()), FacilityDomain(facility), ResourceWorkItem, ActionList)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, buf.String())

	ok, err = auth.Enforce(ctx, GroupSubject(user.String()), FacilityDomain(facility), ResourceExportSchedule, ActionCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, strings.Count(buf.String(), `"level":"WARN"`))

	err = auth.MustEnforce(ctx, GroupSubject(user.String()), FacilityDomain(facility), ResourceExportSchedule, ActionCreate)
	assert.ErrorIs(t, err, ErrForbidden)
}
