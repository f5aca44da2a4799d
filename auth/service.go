// Package auth implements the credential and session management core:
// registration, login verification, and the session token lifecycle.
//
// Error policy: registration surfaces real errors so callers can tell
// "already exists" from an infrastructure failure. All login and session
// read paths are fail-closed — any miss or store error resolves to a plain
// denial and is never propagated through an auth decision.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmcleod/gatehouse/storage"
)

// ErrInvalidInput is returned when a required argument is empty. It is
// checked synchronously and never reaches storage.
var ErrInvalidInput = errors.New("invalid input")

// ErrAlreadyExists is returned when registering an email that already has
// a user.
var ErrAlreadyExists = errors.New("email already registered")

// Service orchestrates registration, login verification, and the session
// lifecycle. It holds no mutable state of its own; all state lives in the
// injected UserStore.
type Service struct {
	store  storage.UserStore
	hasher PasswordHasher
	tokens SessionIDGenerator
}

// Option configures the Service.
type Option func(*Service)

// WithPasswordHasher overrides the default bcrypt hasher.
func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithSessionIDGenerator overrides the default UUID token generator.
func WithSessionIDGenerator(g SessionIDGenerator) Option {
	return func(s *Service) { s.tokens = g }
}

// New creates a Service backed by the given user store.
func New(store storage.UserStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		hasher: NewBcryptHasher(0),
		tokens: UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new user with the given email and password.
//
// It returns ErrInvalidInput for empty arguments, ErrAlreadyExists when the
// email is taken, and a wrapped store error for any infrastructure failure.
// A lookup failure other than storage.ErrNotFound must not be treated as
// absence: proceeding to insert on an ambiguous error would mask a real
// failure behind a bogus success.
func (s *Service) Register(ctx context.Context, email, password string) (*storage.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	_, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, email)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.InsertUser(ctx, email, hash)
	if err != nil {
		// The store enforces email uniqueness atomically, so a concurrent
		// registration that won the race surfaces here.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, email)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return user, nil
}

// ValidLogin reports whether the email and password identify a registered
// user. Every failure path, including store errors, returns false.
func (s *Service) ValidLogin(ctx context.Context, email, password string) bool {
	if email == "" || password == "" {
		return false
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return false
	}
	return s.hasher.Verify(password, user.HashedPassword)
}

// CreateSession issues a new session token for the user with the given
// email and persists it on the user record, invalidating any prior token.
// A user holds at most one live session. Returns ("", false) on any
// failure.
func (s *Service) CreateSession(ctx context.Context, email string) (string, bool) {
	if email == "" {
		return "", false
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", false
	}
	token := s.tokens.Generate()
	upd := (&storage.UserUpdate{}).SetSessionID(token)
	if err := s.store.UpdateUser(ctx, user.ID, *upd); err != nil {
		return "", false
	}
	return token, true
}

// UserFromCredentials resolves the user identified by an email and
// password pair, verifying the password against the stored hash. Returns
// (nil, false) on any miss, mismatch, or store error.
func (s *Service) UserFromCredentials(ctx context.Context, email, password string) (*storage.User, bool) {
	if email == "" || password == "" {
		return nil, false
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, false
	}
	if !s.hasher.Verify(password, user.HashedPassword) {
		return nil, false
	}
	return user, true
}

// UserFromSessionID resolves the user holding the given live session
// token. Returns (nil, false) on any miss or store error.
func (s *Service) UserFromSessionID(ctx context.Context, token string) (*storage.User, bool) {
	if token == "" {
		return nil, false
	}
	user, err := s.store.FindUserBySessionID(ctx, token)
	if err != nil {
		return nil, false
	}
	return user, true
}

// DestroySession clears the session token for the given user id. Clearing
// an already-clear session is a no-op, not an error. The caller is expected
// to have resolved the user id from a live session beforehand.
func (s *Service) DestroySession(ctx context.Context, userID string) error {
	upd := (&storage.UserUpdate{}).SetSessionID("")
	return s.store.UpdateUser(ctx, userID, *upd)
}

// ResetPasswordToken issues a password reset token for the user with the
// given email and persists it. Returns storage.ErrNotFound for an unknown
// email.
func (s *Service) ResetPasswordToken(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrInvalidInput
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token := s.tokens.Generate()
	upd := (&storage.UserUpdate{}).SetResetToken(token)
	if err := s.store.UpdateUser(ctx, user.ID, *upd); err != nil {
		return "", err
	}
	return token, nil
}

// UpdatePassword sets a new password for the user holding the given reset
// token. The reset token is consumed and any live session is invalidated,
// so a credential change logs the user out everywhere.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return ErrInvalidInput
	}
	user, err := s.store.FindUserByResetToken(ctx, resetToken)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	upd := storage.UserUpdate{HashedPassword: hash}
	upd.SetResetToken("")
	upd.SetSessionID("")
	return s.store.UpdateUser(ctx, user.ID, upd)
}
