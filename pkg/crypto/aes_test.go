package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(testKeyHex)
	require.NoError(t, err)
	require.True(t, s.Enabled())

	plain := []byte("resident_id,unit\n1,A\n")
	sealed, err := s.Seal("exports/f/a.xlsx", plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed)

	opened, err := s.Open("exports/f/a.xlsx", sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)

	// moved to another key, the blob no longer authenticates
	_, err = s.Open("exports/f/b.xlsx", sealed)
	assert.Error(t, err)
}

func TestOpenRejectsTampering(t *testing.T) {
	key, err := KeyFromHex(testKeyHex)
	require.NoError(t, err)

	sealed, err := Seal(key, []byte("payload"), nil)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff
	_, err = Open(key, sealed, nil)
	assert.Error(t, err)

	_, err = Open(key, []byte{1, 2}, nil)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestSealerWithoutKeyPassesThrough(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	out, err := s.Seal("k", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)

	var nilSealer *Sealer
	out, err = nilSealer.Open("k", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), out)
}

func TestKeyFromHex(t *testing.T) {
	_, err := KeyFromHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = KeyFromHex(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	assert.Equal(t, Hash("secret"), Hash("secret"))
	assert.NotEqual(t, Hash("secret"), Hash("secret2"))
	assert.Len(t, Hash("x"), 64)
}
