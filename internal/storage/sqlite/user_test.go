package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/storage"
)

func TestSaveUser_AndGet(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	u := newUser("alice@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	byEmail, err := s.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, u.PasswordHash, byEmail.PasswordHash)
	require.Equal(t, models.StatusUnconfirmed, byEmail.Status)
	require.Nil(t, byEmail.ConfirmedAt)
	require.True(t, u.CreatedAt.Equal(byEmail.CreatedAt))

	byID, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
}

func TestSaveUser_DuplicateEmailCaseInsensitive(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, newUser("bob@example.com")))

	err := s.SaveUser(ctx, newUser("BOB@example.com"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := s.UserByEmail(ctx, "Bob@Example.com")
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", got.Email)
}

func TestSaveUser_ConcurrentSameEmail(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		dups    int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.SaveUser(ctx, newUser("race@example.com"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, storage.ErrAlreadyExists):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, success)
	require.Equal(t, n-1, dups)
}

func TestUser_NotFound(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	_, err := s.UserByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetConfirmed_OnlyOnce(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	u := newUser("carol@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	at := time.Now().UTC().Truncate(time.Microsecond)

	changed, err := s.SetConfirmed(ctx, u.ID, at)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.SetConfirmed(ctx, u.ID, at.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, changed)

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	require.True(t, at.Equal(*got.ConfirmedAt))

	_, err = s.SetConfirmed(ctx, uuid.New(), at)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetConfirmed_Concurrent(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	u := newUser("dave@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	const n = 6
	results := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := s.SetConfirmed(ctx, u.ID, time.Now())
			if err != nil {
				t.Errorf("set confirmed: %v", err)
				return
			}
			results <- changed
		}()
	}
	wg.Wait()
	close(results)

	var changedCount int
	for changed := range results {
		if changed {
			changedCount++
		}
	}
	require.Equal(t, 1, changedCount, fmt.Sprintf("expected exactly one transition out of %d", n))
}
