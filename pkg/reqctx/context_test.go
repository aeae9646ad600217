package reqctx

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeClaims struct{ id uuid.UUID }

func (f fakeClaims) GetUserID() uuid.UUID { return f.id }
func (f fakeClaims) GetSessionID() *uuid.UUID { return nil }
func (f fakeClaims) GetTokenType() string { return "access" }
func (f fakeClaims) IsExpired() bool { return false }

func TestLogAttrs(t *testing.T) {
	uid := uuid.New()
	fid := uuid.New()

	ctx := WithRequestMeta(context.Background(), &RequestMeta{RequestID: "rid-1", RequestedAt: time.Now()})
	ctx = WithClaims(ctx, fakeClaims{id: uid})
	ctx = WithFacility(ctx, fid)

	assert.Equal(t, []any{
		"request_id", "rid-1",
		"user_id", uid.String(),
		"facility_id", fid.String(),
	}, LogAttrs(ctx))
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestIDFromContext(ctx))
	_, ok := FacilityFromContext(ctx)
	assert.False(t, ok)
	assert.False(t, IsAuthenticated(ctx))
	assert.Nil(t, LogAttrs(ctx))
}
