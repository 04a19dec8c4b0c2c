package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/contacts-auth/internal/mail"
	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/internal/tokens"
)

func confirmToken(t *testing.T, svc *Service, u *models.User) string {
	t.Helper()

	iss, err := svc.tokens.IssueConfirmation(u.ID.String(), u.Email, svc.cfg.ConfirmTokenTTL)
	require.NoError(t, err)

	return iss.Token
}

func TestConfirmEmail_OK(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "new@example.com", Status: models.StatusUnconfirmed}

	e.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(u, nil)
	e.st.EXPECT().SetConfirmed(gomock.Any(), u.ID, gomock.Any()).Return(true, nil)

	res, err := e.svc.ConfirmEmail(context.Background(), confirmToken(t, e.svc, u))
	require.NoError(t, err)
	require.False(t, res.AlreadyConfirmed)
	require.Equal(t, 1, e.obs.count("confirm/ok"))
}

func TestConfirmEmail_AlreadyConfirmed(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "old@example.com", Status: models.StatusConfirmed}

	e.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(u, nil)

	res, err := e.svc.ConfirmEmail(context.Background(), confirmToken(t, e.svc, u))
	require.NoError(t, err)
	require.True(t, res.AlreadyConfirmed)
}

// TestConfirmEmail_LostRace - другой запрос подтвердил аккаунт между чтением и записью.
func TestConfirmEmail_LostRace(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "race@example.com", Status: models.StatusUnconfirmed}

	e.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(u, nil)
	e.st.EXPECT().SetConfirmed(gomock.Any(), u.ID, gomock.Any()).Return(false, nil)

	res, err := e.svc.ConfirmEmail(context.Background(), confirmToken(t, e.svc, u))
	require.NoError(t, err)
	require.True(t, res.AlreadyConfirmed)
}

func TestConfirmEmail_Expired(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "slow@example.com"}
	tok := confirmToken(t, e.svc, u)

	e.clk.Advance(e.svc.cfg.ConfirmTokenTTL + time.Second)

	_, err := e.svc.ConfirmEmail(context.Background(), tok)
	require.ErrorIs(t, err, ErrExpiredToken)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestConfirmEmail_InvalidTokens(t *testing.T) {
	e := newUnit(t)
	userID := uuid.New()

	access, err := e.svc.tokens.Issue(userID.String(), tokens.TypeAccess, e.svc.cfg.AccessTokenTTL)
	require.NoError(t, err)

	for _, tok := range []string{access.Token, "garbage", ""} {
		_, err := e.svc.ConfirmEmail(context.Background(), tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestConfirmEmail_UnknownUserOrMismatch(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "a@example.com", Status: models.StatusUnconfirmed}
	tok := confirmToken(t, e.svc, u)

	e.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(nil, storage.ErrNotFound)
	_, err := e.svc.ConfirmEmail(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrNotFound)

	changed := &models.User{ID: u.ID, Email: "b@example.com", Status: models.StatusUnconfirmed}
	e.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(changed, nil)
	_, err = e.svc.ConfirmEmail(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestConfirmEmail_StorageError(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "a@example.com", Status: models.StatusUnconfirmed}
	dbErr := errors.New("db down")

	e.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(u, nil)
	e.st.EXPECT().SetConfirmed(gomock.Any(), u.ID, gomock.Any()).Return(false, dbErr)

	_, err := e.svc.ConfirmEmail(context.Background(), confirmToken(t, e.svc, u))
	require.ErrorIs(t, err, dbErr)
}

func TestRequestConfirmation_SendsOneMail(t *testing.T) {
	e := newUnit(t)
	u := &models.User{ID: uuid.New(), Email: "a@example.com"}

	var got mail.Message
	e.sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg mail.Message) error {
		got = msg
		return nil
	}).Times(1)

	tok, err := e.svc.RequestConfirmation(context.Background(), u)
	require.NoError(t, err)
	e.svc.Wait()

	require.Equal(t, mail.ConfirmationLink("http://localhost:8080/auth", tok), got.Link)

	claims, err := e.svc.tokens.Verify(tok, tokens.TypeConfirm)
	require.NoError(t, err)
	require.Equal(t, u.Email, claims.Email)
	require.Equal(t, u.ID.String(), claims.Subject)
}

func TestResendConfirmation(t *testing.T) {
	e := newUnit(t)
	ctx := context.Background()

	t.Run("unknown_email_is_neutral", func(t *testing.T) {
		e.st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)

		already, err := e.svc.ResendConfirmation(ctx, "Ghost@example.com")
		require.NoError(t, err)
		require.False(t, already)
	})

	t.Run("confirmed_user_gets_no_mail", func(t *testing.T) {
		u := &models.User{ID: uuid.New(), Email: "old@example.com", Status: models.StatusConfirmed}
		e.st.EXPECT().UserByEmail(gomock.Any(), u.Email).Return(u, nil)

		already, err := e.svc.ResendConfirmation(ctx, u.Email)
		require.NoError(t, err)
		require.True(t, already)
	})

	t.Run("unconfirmed_user_gets_mail", func(t *testing.T) {
		u := &models.User{ID: uuid.New(), Email: "new@example.com", Status: models.StatusUnconfirmed}
		e.st.EXPECT().UserByEmail(gomock.Any(), u.Email).Return(u, nil)
		e.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

		already, err := e.svc.ResendConfirmation(ctx, u.Email)
		require.NoError(t, err)
		require.False(t, already)
		e.svc.Wait()
	})

	t.Run("invalid_email", func(t *testing.T) {
		_, err := e.svc.ResendConfirmation(ctx, "nope")
		require.ErrorIs(t, err, ErrInvalidEmail)
	})
}
