// Package storagetest provides a conformance suite run against every
// storage.UserStore implementation.
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/storage"
)

// TestUserStore runs the common conformance suite against the store
// produced by newStore.
func TestUserStore(t *testing.T, newStore func(t *testing.T) storage.UserStore) {
	t.Helper()

	t.Run("InsertAndFind", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		u, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)
		assert.Equal(t, "a@b.com", u.Email)
		assert.Equal(t, []byte("hash-1"), u.HashedPassword)
		assert.False(t, u.CreatedAt.IsZero())

		byEmail, err := s.FindUserByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		byID, err := s.FindUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", byID.Email)
	})

	t.Run("InsertDuplicateEmail", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		_, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)

		_, err = s.InsertUser(ctx, "a@b.com", []byte("hash-2"))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		kept, err := s.FindUserByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, []byte("hash-1"), kept.HashedPassword)
	})

	t.Run("EmailsAreCaseSensitive", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		_, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)

		_, err = s.FindUserByEmail(ctx, "A@B.com")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("FindMissing", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		_, err := s.FindUserByEmail(ctx, "nobody@b.com")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindUserByID(ctx, "no-such-id")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindUserBySessionID(ctx, "no-such-token")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindUserByResetToken(ctx, "no-such-token")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("EmptyIndexKeysNeverMatch", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		// Users without a session must not be reachable via an empty token.
		_, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)

		_, err = s.FindUserBySessionID(ctx, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindUserByResetToken(ctx, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateSessionID", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		u, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)

		upd := (&storage.UserUpdate{}).SetSessionID("tok-1")
		require.NoError(t, s.UpdateUser(ctx, u.ID, *upd))

		got, err := s.FindUserBySessionID(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		// Overwriting retires the old index entry.
		upd = (&storage.UserUpdate{}).SetSessionID("tok-2")
		require.NoError(t, s.UpdateUser(ctx, u.ID, *upd))

		_, err = s.FindUserBySessionID(ctx, "tok-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		got, err = s.FindUserBySessionID(ctx, "tok-2")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		// Clearing removes the mapping entirely.
		upd = (&storage.UserUpdate{}).SetSessionID("")
		require.NoError(t, s.UpdateUser(ctx, u.ID, *upd))
		_, err = s.FindUserBySessionID(ctx, "tok-2")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateResetTokenAndPassword", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		u, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)

		upd := (&storage.UserUpdate{}).SetResetToken("reset-1")
		require.NoError(t, s.UpdateUser(ctx, u.ID, *upd))

		got, err := s.FindUserByResetToken(ctx, "reset-1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		upd = (&storage.UserUpdate{}).SetResetToken("")
		upd.HashedPassword = []byte("hash-2")
		require.NoError(t, s.UpdateUser(ctx, u.ID, *upd))

		_, err = s.FindUserByResetToken(ctx, "reset-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		got, err = s.FindUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte("hash-2"), got.HashedPassword)
		assert.Empty(t, got.ResetToken)
	})

	t.Run("PartialUpdateLeavesOtherFields", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		u, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)

		upd := (&storage.UserUpdate{}).SetSessionID("tok-1")
		require.NoError(t, s.UpdateUser(ctx, u.ID, *upd))

		// Updating the hash alone must not disturb the session.
		require.NoError(t, s.UpdateUser(ctx, u.ID, storage.UserUpdate{HashedPassword: []byte("hash-2")}))

		got, err := s.FindUserBySessionID(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, []byte("hash-2"), got.HashedPassword)
	})

	t.Run("UpdateMissingUser", func(t *testing.T) {
		s := newStore(t)

		upd := (&storage.UserUpdate{}).SetSessionID("tok-1")
		err := s.UpdateUser(t.Context(), "no-such-id", *upd)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SessionTokenMapsToOneUser", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		u1, err := s.InsertUser(ctx, "a@b.com", []byte("hash-1"))
		require.NoError(t, err)
		u2, err := s.InsertUser(ctx, "c@d.com", []byte("hash-2"))
		require.NoError(t, err)

		require.NoError(t, s.UpdateUser(ctx, u1.ID, *(&storage.UserUpdate{}).SetSessionID("tok-a")))
		require.NoError(t, s.UpdateUser(ctx, u2.ID, *(&storage.UserUpdate{}).SetSessionID("tok-b")))

		got, err := s.FindUserBySessionID(ctx, "tok-a")
		require.NoError(t, err)
		assert.Equal(t, u1.ID, got.ID)
		got, err = s.FindUserBySessionID(ctx, "tok-b")
		require.NoError(t, err)
		assert.Equal(t, u2.ID, got.ID)
	})
}
