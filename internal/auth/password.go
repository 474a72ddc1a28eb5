package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
)

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside
// bcrypt's supported range fall back to the library default.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash returns the bcrypt hash of a plain text password.
func (h Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", apperr.Internal(err, "failed to hash password")
	}
	return string(hashed), nil
}

// Verify compares a plain text password against a stored hash. A wrong
// password returns (false, nil); a malformed stored hash returns an
// internal error so callers can tell corrupt data from a bad password.
func (h Hasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, apperr.Internal(err, "malformed password hash")
}
