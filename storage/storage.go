// Package storage provides the persistence abstraction for user records.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches the given filter.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when inserting a user whose email is
// already registered.
var ErrAlreadyExists = errors.New("email already registered")

// User is one registered principal. ID and Email are immutable after
// creation. HashedPassword is an opaque blob produced by the password
// hasher; the plaintext is never stored.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword []byte    `json:"hashed_password"`
	SessionID      string    `json:"session_id,omitempty"`
	ResetToken     string    `json:"reset_token,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserUpdate describes a partial update to a user record. Nil fields are
// left untouched; a pointer to the empty string clears the field.
type UserUpdate struct {
	HashedPassword []byte
	SessionID      *string
	ResetToken     *string
}

// SetSessionID marks the session id for update.
func (u *UserUpdate) SetSessionID(id string) *UserUpdate {
	u.SessionID = &id
	return u
}

// SetResetToken marks the reset token for update.
func (u *UserUpdate) SetResetToken(token string) *UserUpdate {
	u.ResetToken = &token
	return u
}

// UserStore defines the persistence interface for user records.
//
// Each method is individually atomic with respect to concurrent callers.
// InsertUser assigns the user ID and enforces email uniqueness in the same
// atomic step, so callers never need a separate check-then-insert sequence
// to be race free. Lookup misses are always ErrNotFound; any other error is
// an infrastructure failure and must not be confused with absence.
type UserStore interface {
	InsertUser(ctx context.Context, email string, hashedPassword []byte) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserBySessionID(ctx context.Context, token string) (*User, error)
	FindUserByResetToken(ctx context.Context, token string) (*User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) error
}
