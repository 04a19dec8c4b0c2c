package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHash_NonDeterministic_VerifyOK(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("secret")
	require.NoError(t, err)
	b, err := h.Hash("secret")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, h.Verify("secret", a))
	require.True(t, h.Verify("secret", b))
	require.False(t, h.Verify("wrong", a))
}

func TestVerify_MalformedDigest_ReturnsFalse(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)

	require.False(t, h.Verify("secret", ""))
	require.False(t, h.Verify("secret", "not-a-bcrypt-hash"))
	require.False(t, h.Verify("secret", "$2a$04$short"))
}

func TestHash_TooLong(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxLength+1))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTooLong)

	_, err = h.Hash(strings.Repeat("a", MaxLength))
	require.NoError(t, err)
}

func TestNewHasher_CostClamped(t *testing.T) {
	t.Parallel()

	require.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost())
	require.Equal(t, bcrypt.MinCost, NewHasher(1).Cost())
	require.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
	require.Equal(t, 6, NewHasher(6).Cost())

	var nilHasher *Hasher
	require.Equal(t, bcrypt.DefaultCost, nilHasher.Cost())
}

func TestHash_EmbedsCost(t *testing.T) {
	t.Parallel()

	h := NewHasher(5)
	d, err := h.Hash("secret")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(d))
	require.NoError(t, err)
	require.Equal(t, 5, cost)
}
