package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher abstracts one-way password hashing so the service core
// stays independent of the algorithm.
type PasswordHasher interface {
	// Hash derives a salted one-way hash from a plaintext password. The
	// returned blob embeds the salt and cost parameters.
	Hash(password string) ([]byte, error)
	// Verify reports whether password matches the stored hash. It returns
	// false for any malformed hash or mismatch; it never panics.
	Verify(password string, hash []byte) bool
}

// BcryptHasher implements PasswordHasher using bcrypt. Each Hash call
// generates a fresh random salt, so hashing the same password twice yields
// different blobs.
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher with the given cost factor. Costs
// outside bcrypt's supported range fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

func (h *BcryptHasher) Verify(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
