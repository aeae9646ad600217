package pasetotoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/careflow_backend/pkg/clock"
)

const testSymmetricHex = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"

func newLocalManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	keys, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: testSymmetricHex})
	require.NoError(t, err)
	m, err := New(Config{Mode: ModeLocal, Issuer: "careflow", Audience: "careflow-api", AccessTTL: ttl}, keys)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newLocalManager(t, time.Minute)
	uid := uuid.New()
	sid := uuid.New()

	tok, err := m.IssueAccess(uid, &sid)
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	require.NotNil(t, claims.SessionID)
	assert.Equal(t, sid, *claims.SessionID)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.False(t, claims.IsExpired())
}

func TestVerify_WrongAudience(t *testing.T) {
	m := newLocalManager(t, time.Minute)
	tok, err := m.IssueAccess(uuid.New(), nil)
	require.NoError(t, err)

	keys, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: testSymmetricHex})
	require.NoError(t, err)
	other, err := New(Config{Mode: ModeLocal, Issuer: "careflow", Audience: "someone-else"}, keys)
	require.NoError(t, err)

	_, err = other.Verify(tok)
	var invalid ErrInvalidToken
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonMalformed, invalid.Reason)
}

func TestVerify_Garbage(t *testing.T) {
	m := newLocalManager(t, time.Minute)
	_, err := m.Verify("v4.local.not-a-token")
	assert.Error(t, err)
}

func TestNew_ModeMismatch(t *testing.T) {
	keys, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: testSymmetricHex})
	require.NoError(t, err)
	_, err = New(Config{Mode: ModePublic, Issuer: "i", Audience: "a"}, keys)
	assert.Error(t, err)
}

func TestVerify_UsesInjectedClock(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	keys, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: testSymmetricHex})
	require.NoError(t, err)
	m, err := New(Config{
		Mode: ModeLocal, Issuer: "careflow", Audience: "careflow-api",
		AccessTTL: time.Hour, Leeway: 10 * time.Second, Clock: clk,
	}, keys)
	require.NoError(t, err)

	tok, err := m.IssueAccess(uuid.New(), nil)
	require.NoError(t, err)

	clk.Advance(time.Hour + 5*time.Second)
	_, err = m.Verify(tok)
	require.NoError(t, err, "within leeway")

	clk.Advance(10 * time.Second)
	_, err = m.Verify(tok)
	var invalid ErrInvalidToken
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonExpired, invalid.Reason)
}

func TestVerify_RejectionReasons(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	keys, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: testSymmetricHex})
	require.NoError(t, err)
	m, err := New(Config{Mode: ModeLocal, Issuer: "careflow", Audience: "careflow-api", AccessTTL: time.Hour, Clock: clk}, keys)
	require.NoError(t, err)

	tok, err := m.IssueAccess(uuid.New(), nil)
	require.NoError(t, err)

	_, err = m.Verify("v4.local.not-a-token")
	assert.Equal(t, ReasonMalformed, ReasonOf(err))

	clk.Set(clk.Now().Add(-time.Minute))
	_, err = m.Verify(tok)
	assert.Equal(t, ReasonNotYetValid, ReasonOf(err))

	clk.Set(clk.Now().Add(2 * time.Hour))
	_, err = m.Verify(tok)
	assert.Equal(t, ReasonExpired, ReasonOf(err))
	assert.ErrorContains(t, err, "bearer token rejected (expired)")

	assert.Equal(t, Reason(""), ReasonOf(assert.AnError))
}

func TestIssue_FacilityClaim(t *testing.T) {
	m := newLocalManager(t, time.Minute)
	fid := uuid.New()

	tok, err := m.Issue(IssueOptions{UserID: uuid.New(), FacilityID: &fid})
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	require.NotNil(t, claims.FacilityID)
	assert.Equal(t, fid, *claims.FacilityID)
	assert.Nil(t, claims.SessionID)
}

func TestIssue_RequiresUser(t *testing.T) {
	m := newLocalManager(t, time.Minute)
	_, err := m.Issue(IssueOptions{})
	assert.Error(t, err)
}

func TestPublicMode_VerifyOnly(t *testing.T) {
	signer := NewPublicKeys()
	full, err := New(Config{Mode: ModePublic, Issuer: "idp", Audience: "careflow-api"}, signer)
	require.NoError(t, err)
	tok, err := full.IssueAccess(uuid.New(), nil)
	require.NoError(t, err)

	verifyOnly, err := New(Config{Mode: ModePublic, Issuer: "idp", Audience: "careflow-api"},
		Keys{Mode: ModePublic, Public: signer.Public})
	require.NoError(t, err)

	_, err = verifyOnly.Verify(tok)
	require.NoError(t, err)

	_, err = verifyOnly.IssueAccess(uuid.New(), nil)
	assert.Error(t, err)
}
