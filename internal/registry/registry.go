package registry

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

// TokenBytes is the amount of random bytes a token is made of.
const TokenBytes = 32

// maxGenerateAttempts bounds the collision loop. Hitting it means the generator is broken.
const maxGenerateAttempts = 16

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrTokenGenerator = errors.New("token generator failed")
)

// Generator returns a new opaque token.
type Generator func() (string, error)

// Registry maps opaque tokens to the stream they grant access to.
// Entries are only added by Register and are not removed when they expire:
// expiry is enforced by whoever redeems the token.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]core.TokenEntry

	generate Generator
	now      func() time.Time
}

type Option func(*Registry)

// WithGenerator replaces the random token generator.
func WithGenerator(gen Generator) Option {
	return func(r *Registry) {
		r.generate = gen
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[string]core.TokenEntry),
		generate: RandomToken,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a new entry and returns its token.
// The destination must not be empty and expiresAt must lie strictly in the future.
func (r *Registry) Register(destination string, expiresAt time.Time) (string, error) {
	if destination == "" {
		return "", fmt.Errorf("%w: destination must not be empty", ErrInvalidInput)
	}
	now := r.now()
	if !expiresAt.After(now) {
		return "", fmt.Errorf("%w: expiry %s is not in the future", ErrInvalidInput, expiresAt.Format(time.RFC3339))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxGenerateAttempts {
		token, err := r.generate()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrTokenGenerator, err)
		}
		if token == "" {
			continue
		}
		if _, exists := r.entries[token]; exists {
			continue
		}
		r.entries[token] = core.TokenEntry{
			Destination: destination,
			ExpiresAt:   expiresAt,
			IssuedAt:    now,
		}
		return token, nil
	}
	return "", fmt.Errorf("%w: no unique token after %d attempts", ErrTokenGenerator, maxGenerateAttempts)
}

// Resolve looks up a token. It does not check the expiry.
func (r *Registry) Resolve(token string) (core.TokenEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[token]
	return entry, ok
}

// Snapshot returns a copy of all entries, expired ones included.
func (r *Registry) Snapshot() map[string]core.TokenEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cpy := make(map[string]core.TokenEntry, len(r.entries))
	for token, entry := range r.entries {
		cpy[token] = entry
	}
	return cpy
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Purge removes all entries that are expired at now and returns how many were removed.
// The registry never calls this on its own.
func (r *Registry) Purge(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int
	for token, entry := range r.entries {
		if entry.Expired(now) {
			delete(r.entries, token)
			deleted++
		}
	}
	return deleted
}

// RandomToken returns TokenBytes bytes from crypto/rand, hex encoded.
func RandomToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
