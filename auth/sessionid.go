package auth

import "github.com/google/uuid"

// SessionIDGenerator produces unguessable session and reset tokens.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random UUIDv4 tokens (122 bits of entropy).
// Collisions are statistically negligible and not defended against.
type UUIDGenerator struct{}

var _ SessionIDGenerator = UUIDGenerator{}

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
