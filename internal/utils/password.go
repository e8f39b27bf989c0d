package utils

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// bcryptMaxInput is the most bcrypt will read from a password.
const bcryptMaxInput = 72

// ErrPasswordMismatch is returned by Hasher.Compare when the password does
// not match the stored hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// Hasher wraps bcrypt with a fixed cost and a bound on how many hash or
// compare operations may run at once.  bcrypt is CPU bound, so the bound
// keeps a burst of logins from starving other requests.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher using cost and allowing maxConcurrent
// operations in parallel.
func NewHasher(cost, maxConcurrent int) *Hasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword(bcryptInput(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

// Compare checks plain against hash in constant time.  A mismatch yields
// bcryptMaxInput is the most bcrypt will read from a password.
const bcryptMaxInput = 72

// ErrPasswordMismatch; any other error means the hash itself is unusable.
func (h *Hasher) Compare(ctx context.Context, hash, plain string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("bcrypt compare: %w", err)
	}
}

// Burn performs a compare against a throwaway hash so that a lookup miss
// costs the same as a wrong password.  The result is always discarded.
func (h *Hasher) Burn(ctx context.Context, plain string) {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("chat-auth-dummy-password"), h.cost)
		if err == nil {
			h.dummy = string(b)
		}
	})
	if h.dummy == "" {
		return
	}
	_ = h.Compare(ctx, h.dummy, plain)
}

// bcryptInput returns the bytes handed to bcrypt.  Passwords longer than
// bcrypt accepts are replaced by their base64 SHA-256 digest, so every byte
// still counts.
func bcryptInput(plain string) []byte {
	if len(plain) <= bcryptMaxInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
