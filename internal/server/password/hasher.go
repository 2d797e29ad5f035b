// Package password provides one-way password hashing and verification.
//
// Hashes are produced with bcrypt: each call embeds a fresh random salt, so
// hashing the same plaintext twice yields different digests, and comparison
// is constant-time.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned by Verify when the plaintext does not match the
// stored hash, or when the stored hash is malformed. Callers must not
// distinguish the two cases.
var ErrMismatch = errors.New("password mismatch")

// Hasher hashes and verifies passwords. Implementations must never store or
// log the plaintext.
type Hasher interface {
	// Hash returns a salted, irreversible digest of the plaintext.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches the stored digest.
	// Returns nil on match, ErrMismatch otherwise.
	Verify(plaintext, hash string) error
}

// BcryptHasher implements Hasher using bcrypt with a configurable cost
// (work factor).
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt-based hasher. Costs outside the valid
// bcrypt range fall back to the library default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	// bcrypt silently truncates beyond 72 bytes; reject instead.
	if len(plaintext) > 72 {
		return "", errors.New("password: maximum length is 72 bytes")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) error {
	// A corrupted stored hash yields the same result as a mismatch.
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return ErrMismatch
	}
	return nil
}
