package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/contacts-auth/internal/models"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func newUser(email string) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuJ1cF0kE2p7t9Y7KzHt1mGv7U2dJ6sG",
		Status:       models.StatusUnconfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	u := newUser("mem@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)
}

func TestTimeLayout_SortsLexically(t *testing.T) {
	a := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(time.Nanosecond)
	c := a.Add(10 * time.Hour)

	require.Less(t, formatTime(a), formatTime(b))
	require.Less(t, formatTime(b), formatTime(c))
	require.Len(t, formatTime(a), len(timeLayout))

	parsed, err := parseTime(formatTime(b))
	require.NoError(t, err)
	require.True(t, parsed.Equal(b))
}
