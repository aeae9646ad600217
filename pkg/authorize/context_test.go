package authorize

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/careflow_backend/pkg/reqctx"
)

type stubClaims struct{ user uuid.UUID }

func (s stubClaims) GetUserID() uuid.UUID     { return s.user }
func (s stubClaims) GetSessionID() *uuid.UUID { return nil }
func (s stubClaims) GetTokenType() string     { return "access" }
func (s stubClaims) IsExpired() bool          { return false }

func TestSubjectFromContext(t *testing.T) {
	user := uuid.New()
	subject, err := SubjectFromContext(reqctx.WithClaims(context.Background(), stubClaims{user}))
	require.NoError(t, err)
	assert.Equal(t, GroupSubject(user.String()), subject)

	_, err = SubjectFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoSubjectInContext)

	_, err = SubjectFromContext(reqctx.WithClaims(context.Background(), stubClaims{uuid.Nil}))
	assert.ErrorIs(t, err, ErrNoSubjectInContext)
}

func TestDomainFromContext(t *testing.T) {
	facility := uuid.New()
	d, err := DomainFromContext(reqctx.WithFacility(context.Background(), facility))
	require.NoError(t, err)
	assert.Equal(t, FacilityDomain(facility), d)

	_, err = DomainFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoFacilityInContext)
}
