// Package service holds the credential lifecycle of the API: registration,
// login, profile changes and password resets.  It is transport agnostic;
// the echo handlers in internal/handler adapt it to HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/txxdx/devcamper-api/internal/logging"
	"github.com/txxdx/devcamper-api/internal/model"
	"github.com/txxdx/devcamper-api/internal/repository"
	"github.com/txxdx/devcamper-api/internal/utils"
)

const (
	defaultStoreTimeout    = 5 * time.Second
	defaultDispatchTimeout = 5 * time.Second
)

// Options carries the tunables of AuthService that come from config.
type Options struct {
	BcryptCost      int
	ResetTokenTTL   time.Duration
	StoreTimeout    time.Duration
	DispatchTimeout time.Duration // bounds a single ResetNotifier call
}

// AuthService implements register, login, get-me, update-details,
// update-password, forgot-password and reset-password.  Logout has no
// server-side effect and lives entirely in the handler.
type AuthService struct {
	users    repository.UserStore
	tokens   *utils.TokenIssuer
	notifier ResetNotifier
	log      logging.Logger
	opts     Options
	now      func() time.Time
}

func NewAuthService(users repository.UserStore, tokens *utils.TokenIssuer, notifier ResetNotifier, log logging.Logger, opts Options) *AuthService {
	if users == nil || tokens == nil || notifier == nil || log == nil {
		panic("nil dependency passed to NewAuthService")
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = 10 * time.Minute
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	// Prebuild the throwaway hash used for unknown-email logins.
	utils.BurnPasswordCheck("", opts.BcryptCost)
	return &AuthService{users: users, tokens: tokens, notifier: notifier, log: log, opts: opts, now: time.Now}
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateDetailsInput lists the mutable profile fields.  Empty values keep
// the current value.
type UpdateDetailsInput struct {
	Name  string
	Email string
}

// Register creates the user and signs them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.PublicUser, utils.SessionToken, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if err := validateName(name); err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}
	if err := validateEmail(email); err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}
	role, err := normalizeRole(in.Role)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}

	hash, err := utils.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	u, err := s.users.Create(ctx, model.User{Name: name, Email: email, PasswordHash: hash, Role: role})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.PublicUser{}, utils.SessionToken{}, ErrDuplicateEmail
		}
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("create user: %w", err)
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u.Public(), tok, nil
}

// Login checks the credentials.  An unknown email and a wrong password both
// yield ErrInvalidCredentials after a bcrypt comparison of similar cost.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.PublicUser, utils.SessionToken, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("%w: please provide an email and password", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPasswordCheck(password, s.opts.BcryptCost)
			return model.PublicUser{}, utils.SessionToken{}, ErrInvalidCredentials
		}
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.PublicUser{}, utils.SessionToken{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("issue token: %w", err)
	}
	return u.Public(), tok, nil
}

// GetMe returns the public view of the authenticated user.
func (s *AuthService) GetMe(ctx context.Context, userID string) (model.PublicUser, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateDetails changes name and/or email.
func (s *AuthService) UpdateDetails(ctx context.Context, userID string, in UpdateDetailsInput) (model.PublicUser, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}

	name, email := u.Name, u.Email
	if v := strings.TrimSpace(in.Name); v != "" {
		if err := validateName(v); err != nil {
			return model.PublicUser{}, err
		}
		name = v
	}
	if v := normalizeEmail(in.Email); v != "" {
		if err := validateEmail(v); err != nil {
			return model.PublicUser{}, err
		}
		email = v
	}
	if name == u.Name && email == u.Email {
		return u.Public(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	updated, err := s.users.UpdateDetails(ctx, u.ID, name, email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return model.PublicUser{}, ErrDuplicateEmail
		case errors.Is(err, repository.ErrNotFound):
			return model.PublicUser{}, ErrNotFound
		}
		return model.PublicUser{}, fmt.Errorf("update user: %w", err)
	}
	return updated.Public(), nil
}

// UpdatePassword replaces the password after checking the current one and
// returns a fresh session token.  Tokens issued earlier stay valid until
// they expire.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, next string) (model.PublicUser, utils.SessionToken, error) {
	if current == "" {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("%w: please provide the current password", ErrValidation)
	}
	if err := validatePassword(next); err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return model.PublicUser{}, utils.SessionToken{}, ErrInvalidCredentials
	}

	hash, err := utils.HashPassword(next, s.opts.BcryptCost)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("hash password: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, utils.SessionToken{}, ErrNotFound
		}
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("update password: %w", err)
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info(ctx, "password updated", "user_id", u.ID)
	return u.Public(), tok, nil
}

// ForgotPassword stores a reset token for email and dispatches a link built
// from resetURLBase.  Unknown emails and failed dispatches both return nil,
// so the caller cannot tell whether an address is registered; a failed
// dispatch withdraws the stored token and is only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	u, err := s.users.GetByEmail(lookupCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug(ctx, "password reset for unknown email ignored")
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	reset, err := utils.NewResetToken(s.opts.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.users.SetResetToken(lookupCtx, u.ID, reset.Hash, reset.Exp); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	sendCtx, cancelSend := context.WithTimeout(ctx, s.opts.DispatchTimeout)
	defer cancelSend()
	err = s.notifier.SendPasswordReset(sendCtx, PasswordReset{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		ResetURL:  strings.TrimRight(resetURLBase, "/") + "/" + reset.Raw,
		ExpiresAt: reset.Exp,
	})
	if err != nil {
		s.log.Error(ctx, "password reset dispatch failed", "user_id", u.ID, "err", err)
		clearCtx, cancelClear := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
		defer cancelClear()
		if cerr := s.users.ClearResetToken(clearCtx, u.ID); cerr != nil {
			s.log.Error(ctx, "withdraw reset token failed", "user_id", u.ID, "err", cerr)
		}
		return nil
	}
	s.log.Info(ctx, "password reset dispatched", "user_id", u.ID)
	return nil
}

// ResetPassword consumes a raw reset token.  Unknown, expired and already
// used tokens all yield ErrInvalidOrExpiredToken.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, password string) (model.PublicUser, utils.SessionToken, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return model.PublicUser{}, utils.SessionToken{}, ErrInvalidOrExpiredToken
	}
	if err := validatePassword(password); err != nil {
		return model.PublicUser{}, utils.SessionToken{}, err
	}
	hash, err := utils.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	u, err := s.users.ConsumeResetToken(ctx, utils.HashResetToken(rawToken), hash, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, utils.SessionToken{}, ErrInvalidOrExpiredToken
		}
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("consume reset token: %w", err)
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.PublicUser{}, utils.SessionToken{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info(ctx, "password reset completed", "user_id", u.ID)
	return u.Public(), tok, nil
}

// ResolveUser loads the user a verified session token points at.  The
// access guard uses it; a missing user is reported as ErrUnauthorized.
func (s *AuthService) ResolveUser(ctx context.Context, userID string) (model.User, error) {
	u, err := s.load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return model.User{}, ErrUnauthorized
	}
	return u, err
}

func (s *AuthService) load(ctx context.Context, userID string) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
