package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/txxdx/devcamper-api/internal/logging"
	"github.com/txxdx/devcamper-api/internal/model"
	"github.com/txxdx/devcamper-api/internal/repository"
	"github.com/txxdx/devcamper-api/internal/utils"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []PasswordReset
	err  error
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, r PasswordReset) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, r)
	return nil
}

func (n *recordingNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	url := n.sent[len(n.sent)-1].ResetURL
	return url[strings.LastIndex(url, "/")+1:]
}

type fixture struct {
	svc      *AuthService
	users    *repository.MemoryUserRepo
	tokens   *utils.TokenIssuer
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := repository.NewMemoryUserRepo()
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	n := &recordingNotifier{}
	svc := NewAuthService(users, tokens, n, logging.Discard(), Options{BcryptCost: bcrypt.MinCost})
	return fixture{svc: svc, users: users, tokens: tokens, notifier: n}
}

func (f fixture) register(t *testing.T, email, password string) model.PublicUser {
	t.Helper()
	u, _, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func TestRegister_IssuesTokenForNewUser(t *testing.T) {
	f := newFixture(t)

	u, tok, err := f.svc.Register(context.Background(), RegisterInput{Name: " Ann ", Email: "Ann@Example.com", Password: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)

	id, err := f.tokens.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	stored, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "123456", stored.PasswordHash)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "123456"))
}

func TestRegister_Validation(t *testing.T) {
	cases := map[string]RegisterInput{
		"missing name":   {Email: "a@b.io", Password: "123456"},
		"long name":      {Name: strings.Repeat("x", 51), Email: "a@b.io", Password: "123456"},
		"bad email":      {Name: "A", Email: "not-an-email", Password: "123456"},
		"short password": {Name: "A", Email: "a@b.io", Password: "12345"},
		"admin role":     {Name: "A", Email: "a@b.io", Password: "123456", Role: "admin"},
		"unknown role":   {Name: "A", Email: "a@b.io", Password: "123456", Role: "root"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, _, err := f.svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_PublisherRoleAccepted(t *testing.T) {
	f := newFixture(t)
	u, _, err := f.svc.Register(context.Background(), RegisterInput{Name: "P", Email: "p@b.io", Password: "123456", Role: "Publisher"})
	require.NoError(t, err)
	assert.Equal(t, model.RolePublisher, u.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.io", "123456")

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Name: "B", Email: "A@B.io", Password: "654321"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIdentical(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.io", "123456")

	_, _, errWrong := f.svc.Login(context.Background(), "a@b.io", "wrong-pw")
	_, _, errUnknown := f.svc.Login(context.Background(), "nobody@b.io", "123456")

	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Login(context.Background(), "", "123456")
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = f.svc.Login(context.Background(), "a@b.io", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPasswordChangeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "a@b.io", "123456")

	_, _, err := f.svc.Login(ctx, "a@b.io", "123456")
	require.NoError(t, err)

	_, tok, err := f.svc.UpdatePassword(ctx, u.ID, "123456", "abcdef")
	require.NoError(t, err)
	id, err := f.tokens.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, _, err = f.svc.Login(ctx, "a@b.io", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "a@b.io", "abcdef")
	assert.NoError(t, err)
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@b.io", "123456")

	_, _, err := f.svc.UpdatePassword(context.Background(), u.ID, "nope!!", "abcdef")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.UpdatePassword(context.Background(), u.ID, "123456", "abc")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = f.svc.Login(context.Background(), "a@b.io", "123456")
	assert.NoError(t, err)
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@b.io", "123456")
	f.register(t, "taken@b.io", "123456")

	u, err := f.svc.UpdateDetails(ctx, a.ID, UpdateDetailsInput{Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "a@b.io", u.Email)

	_, err = f.svc.UpdateDetails(ctx, a.ID, UpdateDetailsInput{Email: "Taken@b.io"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = f.svc.UpdateDetails(ctx, a.ID, UpdateDetailsInput{Email: "broken"})
	assert.ErrorIs(t, err, ErrValidation)

	u, err = f.svc.UpdateDetails(ctx, a.ID, UpdateDetailsInput{})
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)

	_, err = f.svc.UpdateDetails(ctx, "missing", UpdateDetailsInput{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMeAndResolveUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@b.io", "123456")

	me, err := f.svc.GetMe(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, me)

	_, err = f.svc.GetMe(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.ResolveUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ForgotPassword(context.Background(), "nobody@b.io", "http://x/reset")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sent)
}

func TestResetPassword_SingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@b.io", "123456")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.io", "http://localhost/api/v1/auth/resetpassword/"))
	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, a.ID, sent.UserID)
	assert.True(t, strings.HasPrefix(sent.ResetURL, "http://localhost/api/v1/auth/resetpassword/"))
	raw := f.notifier.lastToken(t)
	assert.Len(t, raw, 40)

	stored, err := f.users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, utils.HashResetToken(raw), stored.ResetPasswordTokenHash)
	assert.NotEqual(t, raw, stored.ResetPasswordTokenHash)

	u, tok, err := f.svc.ResetPassword(ctx, raw, "newpass")
	require.NoError(t, err)
	assert.Equal(t, a.ID, u.ID)
	assert.NotEmpty(t, tok.Token)

	_, _, err = f.svc.ResetPassword(ctx, raw, "another")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, _, err = f.svc.Login(ctx, "a@b.io", "newpass")
	assert.NoError(t, err)
}

func TestResetPassword_Expired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@b.io", "123456")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.io", "http://x/reset"))
	raw := f.notifier.lastToken(t)

	f.svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, _, err := f.svc.ResetPassword(ctx, raw, "newpass")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, _, err = f.svc.Login(ctx, "a@b.io", "123456")
	assert.NoError(t, err)
}

func TestResetPassword_UnknownOrEmptyToken(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.ResetPassword(context.Background(), "deadbeef", "newpass")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, _, err = f.svc.ResetPassword(context.Background(), "  ", "newpass")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPassword_ConcurrentConsumersOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@b.io", "123456")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.io", "http://x/reset"))
	raw := f.notifier.lastToken(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.svc.ResetPassword(ctx, raw, "newpass"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestForgotPassword_DispatchFailureWithdrawsToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@b.io", "123456")
	f.notifier.err = errors.New("smtp down")

	// Same outcome as an unknown email.
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.io", "http://x/reset"))

	stored, err := f.users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordTokenHash)
	assert.Nil(t, stored.ResetPasswordExpire)
}

type stalledNotifier struct {
	hadDeadline chan bool
}

func (n *stalledNotifier) SendPasswordReset(ctx context.Context, _ PasswordReset) error {
	_, ok := ctx.Deadline()
	n.hadDeadline <- ok
	<-ctx.Done()
	return ctx.Err()
}

func TestForgotPassword_StalledDispatchIsBounded(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepo()
	n := &stalledNotifier{hadDeadline: make(chan bool, 1)}
	svc := NewAuthService(users, utils.NewTokenIssuer("test-secret", time.Hour), n, logging.Discard(),
		Options{BcryptCost: bcrypt.MinCost, DispatchTimeout: 50 * time.Millisecond})
	a, _, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.io", Password: "123456"})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, svc.ForgotPassword(ctx, "a@b.io", "http://x/reset"))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, <-n.hadDeadline)

	stored, err := users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordTokenHash)
	assert.Nil(t, stored.ResetPasswordExpire)
}

func TestNewAuthService_PanicsOnNilDependency(t *testing.T) {
	assert.Panics(t, func() {
		NewAuthService(nil, utils.NewTokenIssuer("s", time.Hour), &recordingNotifier{}, logging.Discard(), Options{})
	})
}
