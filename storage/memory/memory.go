// Package memory provides a thread-safe in-memory implementation of storage.UserStore.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/gatehouse/storage"
)

// Store is a thread-safe in-memory implementation of storage.UserStore.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*storage.User
	byEmail   map[string]string // email -> id
	bySession map[string]string // session id -> id
	byReset   map[string]string // reset token -> id
}

var _ storage.UserStore = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{
		byID:      make(map[string]*storage.User),
		byEmail:   make(map[string]string),
		bySession: make(map[string]string),
		byReset:   make(map[string]string),
	}
}

func cloneUser(u *storage.User) *storage.User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.HashedPassword = append([]byte(nil), u.HashedPassword...)
	return &cp
}

func (s *Store) InsertUser(ctx context.Context, email string, hashedPassword []byte) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, storage.ErrAlreadyExists
	}
	u := &storage.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: append([]byte(nil), hashedPassword...),
		CreatedAt:      time.Now().UTC(),
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return cloneUser(u), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) FindUserBySessionID(ctx context.Context, token string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, storage.ErrNotFound
	}
	id, ok := s.bySession[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) FindUserByResetToken(ctx context.Context, token string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, storage.ErrNotFound
	}
	id, ok := s.byReset[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd storage.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	if upd.HashedPassword != nil {
		u.HashedPassword = append([]byte(nil), upd.HashedPassword...)
	}
	if upd.SessionID != nil {
		if u.SessionID != "" {
			delete(s.bySession, u.SessionID)
		}
		u.SessionID = *upd.SessionID
		if u.SessionID != "" {
			s.bySession[u.SessionID] = id
		}
	}
	if upd.ResetToken != nil {
		if u.ResetToken != "" {
			delete(s.byReset, u.ResetToken)
		}
		u.ResetToken = *upd.ResetToken
		if u.ResetToken != "" {
			s.byReset[u.ResetToken] = id
		}
	}
	return nil
}
