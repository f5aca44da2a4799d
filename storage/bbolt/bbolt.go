// Package bbolt provides a BBolt-backed user store.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/gatehouse/storage"
)

var (
	bucketUsers      = []byte("users")
	bucketEmailIdx   = []byte("idx_email")
	bucketSessionIdx = []byte("idx_session")
	bucketResetIdx   = []byte("idx_reset")
)

// Store implements storage.UserStore backed by a BBolt database.
// Every method runs inside a single BBolt transaction, so the secondary
// indexes (email, session id, reset token) can never drift from the
// primary records.
type Store struct {
	db *bbolt.DB
}

var _ storage.UserStore = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketEmailIdx, bucketSessionIdx, bucketResetIdx} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("initializing user buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertUser(ctx context.Context, email string, hashedPassword []byte) (*storage.User, error) {
	u := &storage.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: append([]byte(nil), hashedPassword...),
		CreatedAt:      time.Now().UTC(),
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketEmailIdx)
		if emails.Get([]byte(email)) != nil {
			return storage.ErrAlreadyExists
		}
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsers).Put([]byte(u.ID), data); err != nil {
			return err
		}
		return emails.Put([]byte(email), []byte(u.ID))
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return s.findByIndex(bucketEmailIdx, email)
}

func (s *Store) FindUserBySessionID(ctx context.Context, token string) (*storage.User, error) {
	return s.findByIndex(bucketSessionIdx, token)
}

func (s *Store) FindUserByResetToken(ctx context.Context, token string) (*storage.User, error) {
	return s.findByIndex(bucketResetIdx, token)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*storage.User, error) {
	var u storage.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getUser(tx, id, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) findByIndex(bucket []byte, key string) (*storage.User, error) {
	if key == "" {
		return nil, storage.ErrNotFound
	}
	var u storage.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucket).Get([]byte(key))
		if id == nil {
			return storage.ErrNotFound
		}
		return getUser(tx, string(id), &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func getUser(tx *bbolt.Tx, id string, out *storage.User) error {
	data := tx.Bucket(bucketUsers).Get([]byte(id))
	if data == nil {
		return storage.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd storage.UserUpdate) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var u storage.User
		if err := getUser(tx, id, &u); err != nil {
			return err
		}
		if upd.HashedPassword != nil {
			u.HashedPassword = append([]byte(nil), upd.HashedPassword...)
		}
		if upd.SessionID != nil {
			if err := moveIndex(tx, bucketSessionIdx, u.SessionID, *upd.SessionID, id); err != nil {
				return err
			}
			u.SessionID = *upd.SessionID
		}
		if upd.ResetToken != nil {
			if err := moveIndex(tx, bucketResetIdx, u.ResetToken, *upd.ResetToken, id); err != nil {
				return err
			}
			u.ResetToken = *upd.ResetToken
		}
		data, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketUsers).Put([]byte(id), data)
	})
}

// moveIndex retires the old index entry and installs the next one. An
// empty next value only clears the old entry.
func moveIndex(tx *bbolt.Tx, bucket []byte, old, next, id string) error {
	b := tx.Bucket(bucket)
	if old != "" {
		if err := b.Delete([]byte(old)); err != nil {
			return err
		}
	}
	if next == "" {
		return nil
	}
	return b.Put([]byte(next), []byte(id))
}
