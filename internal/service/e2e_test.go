package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/contacts-auth/internal/mail"
	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/storage/sqlite"
)

// Сквозные тесты на настоящем хранилище (SQLite во временном каталоге).

type e2eEnv struct {
	svc    *Service
	st     *sqlite.Storage
	sender *capSender
	clk    *clock
}

func newE2E(t *testing.T, mutate ...func(*Service)) *e2eEnv {
	t.Helper()

	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)

	sender := &capSender{}
	clk := newClock()

	svc, err := New(st, testCfg(), sender,
		WithClock(clk.Now),
		WithMail("http://localhost:8080/auth", time.Second),
	)
	require.NoError(t, err)
	for _, m := range mutate {
		m(svc)
	}
	t.Cleanup(svc.Wait)

	return &e2eEnv{svc: svc, st: st, sender: sender, clk: clk}
}

// lastToken достаёт токен из последней ссылки подтверждения.
func (e *e2eEnv) lastToken(t *testing.T) string {
	t.Helper()

	e.svc.Wait()
	msgs := e.sender.sent()
	require.NotEmpty(t, msgs)

	link := msgs[len(msgs)-1].Link
	idx := strings.LastIndex(link, "/confirm/")
	require.GreaterOrEqual(t, idx, 0)

	return link[idx+len("/confirm/"):]
}

// TestE2E_FullFlow: signup -> login (не подтверждён) -> confirm -> login ->
// authenticate -> refresh -> старый refresh отклонён.
func TestE2E_FullFlow(t *testing.T) {
	e := newE2E(t, func(s *Service) { s.cfg.MinPasswordLen = 1 })
	ctx := context.Background()

	user, err := e.svc.Signup(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	require.Equal(t, models.StatusUnconfirmed, user.Status)

	_, err = e.svc.Login(ctx, "a@x.com", "p1")
	require.ErrorIs(t, err, ErrAccountNotConfirmed)

	res, err := e.svc.ConfirmEmail(ctx, e.lastToken(t))
	require.NoError(t, err)
	require.False(t, res.AlreadyConfirmed)

	pair, err := e.svc.Login(ctx, "A@X.com", "p1")
	require.NoError(t, err)

	me, err := e.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)
	require.True(t, me.Confirmed())

	next, err := e.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = e.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Повторное предъявление старого токена отозвало и новый.
	_, err = e.svc.Refresh(ctx, next.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Access-токен остаётся действительным до истечения срока.
	_, err = e.svc.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)
}

func TestE2E_ConfirmTwiceIsIdempotent(t *testing.T) {
	e := newE2E(t)
	ctx := context.Background()

	_, err := e.svc.Signup(ctx, "b@x.com", "Secr3t-pass")
	require.NoError(t, err)
	tok := e.lastToken(t)

	res, err := e.svc.ConfirmEmail(ctx, tok)
	require.NoError(t, err)
	require.False(t, res.AlreadyConfirmed)

	res, err = e.svc.ConfirmEmail(ctx, tok)
	require.NoError(t, err)
	require.True(t, res.AlreadyConfirmed)

	e.svc.Wait()
	require.Len(t, e.sender.sent(), 1, "no extra mail on second redemption")
}

func TestE2E_ConcurrentSignupSameEmail(t *testing.T) {
	e := newE2E(t)
	ctx := context.Background()

	const n = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := e.svc.Signup(ctx, "dup@x.com", "Secr3t-pass")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrEmailTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, success)
	require.Equal(t, n-1, taken)
}

func TestE2E_ConcurrentRefreshOnlyOnce(t *testing.T) {
	e := newE2E(t)
	ctx := context.Background()
	pair := e.confirmedLogin(t, "c@x.com", "Secr3t-pass")

	const n = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		invalid int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := e.svc.Refresh(ctx, pair.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrInvalidToken):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, success)
	require.Equal(t, n-1, invalid)
}

func TestE2E_Logout(t *testing.T) {
	e := newE2E(t)
	ctx := context.Background()
	pair := e.confirmedLogin(t, "d@x.com", "Secr3t-pass")

	e.svc.Logout(ctx, pair.RefreshToken)
	e.svc.Logout(ctx, pair.RefreshToken)
	e.svc.Logout(ctx, "not-a-token")

	_, err := e.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// TestE2E_ExpiredConfirmationThenResend - истёкший токен возвращает аккаунт
// в unconfirmed; новый токен из повторной отправки подтверждает его.
func TestE2E_ExpiredConfirmationThenResend(t *testing.T) {
	e := newE2E(t)
	ctx := context.Background()

	_, err := e.svc.Signup(ctx, "e@x.com", "Secr3t-pass")
	require.NoError(t, err)
	stale := e.lastToken(t)

	e.clk.Advance(e.svc.cfg.ConfirmTokenTTL + time.Second)

	_, err = e.svc.ConfirmEmail(ctx, stale)
	require.ErrorIs(t, err, ErrExpiredToken)

	already, err := e.svc.ResendConfirmation(ctx, "e@x.com")
	require.NoError(t, err)
	require.False(t, already)

	res, err := e.svc.ConfirmEmail(ctx, e.lastToken(t))
	require.NoError(t, err)
	require.False(t, res.AlreadyConfirmed)

	already, err = e.svc.ResendConfirmation(ctx, "e@x.com")
	require.NoError(t, err)
	require.True(t, already)
	require.Len(t, e.sender.sent(), 2)
}

// TestE2E_MailFailureKeepsSignup - ошибка доставки не откатывает регистрацию.
func TestE2E_MailFailureKeepsSignup(t *testing.T) {
	e := newE2E(t)
	e.sender.err = errors.New("smtp down")

	u, err := e.svc.Signup(context.Background(), "f@x.com", "Secr3t-pass")
	require.NoError(t, err)
	e.svc.Wait()

	got, err := e.st.UserByEmail(context.Background(), "f@x.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func (e *e2eEnv) confirmedLogin(t *testing.T, email, pw string) *models.TokenPair {
	t.Helper()
	ctx := context.Background()

	_, err := e.svc.Signup(ctx, email, pw)
	require.NoError(t, err)

	_, err = e.svc.ConfirmEmail(ctx, e.lastToken(t))
	require.NoError(t, err)

	pair, err := e.svc.Login(ctx, email, pw)
	require.NoError(t, err)

	return pair
}

var _ mail.Sender = (*capSender)(nil)
