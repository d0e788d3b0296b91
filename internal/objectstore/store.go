// Package objectstore provides content-addressed binary blob storage with
// ephemeral signed-URL resolution.
package objectstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SignedURLScheme prefixes every signed URL issued by the store
const SignedURLScheme = "local-signed://"

// DefaultSignedURLTTL is used when CreateSignedURL is called with a non-positive ttl
const DefaultSignedURLTTL = 5 * time.Minute

// ErrNotFound is returned when no blob exists under a storage key
var ErrNotFound = errors.New("object not found")

// Backend persists blobs under storage keys. Writes for an existing key are never issued by Store.
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// PutResult describes a stored blob
type PutResult struct {
	StorageKey string `json:"storage_key"`
	Bytes      int64  `json:"bytes"`
	SHA256     string `json:"sha256"`
	// Created is false when identical bytes were already present
	Created bool `json:"created"`
}

type signedEntry struct {
	key       string
	expiresAt time.Time
}

// Store is a content-addressed blob store over a Backend
type Store struct {
	backend Backend
	now     func() time.Time

	mu     sync.Mutex
	tokens map[string]signedEntry
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for signed URL expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over the given backend
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		tokens:  make(map[string]signedEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StorageKey derives the content address for a hex digest and extension
func StorageKey(sha string, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s.%s", sha[:2], sha, ext)
}

// HashBytes returns the lowercase hex SHA-256 of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put stores data under its content address. Writing identical bytes twice is a no-op.
func (s *Store) Put(ctx context.Context, data []byte, ext string) (*PutResult, error) {
	sha := HashBytes(data)
	key := StorageKey(sha, ext)
	result := &PutResult{
		StorageKey: key,
		Bytes:      int64(len(data)),
		SHA256:     sha,
	}

	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	if exists {
		writesTotal.WithLabelValues("dedup").Inc()
		return result, nil
	}

	if err := s.backend.Write(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to write object %s: %w", key, err)
	}
	writesTotal.WithLabelValues("created").Inc()
	result.Created = true
	return result, nil
}

// Get returns the bytes stored under key, or ErrNotFound
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// CreateSignedURL issues an opaque, expiring URL for key
func (s *Store) CreateSignedURL(key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate signed url token: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = signedEntry{key: key, expiresAt: s.now().Add(ttl)}
	return SignedURLScheme + token, nil
}

// ResolveSignedURL returns the blob behind a signed URL while it is unexpired.
// Tokens are one-shot: a successful read evicts the token, and so does an
// expired lookup. Unknown or expired tokens resolve to nil with no error.
func (s *Store) ResolveSignedURL(ctx context.Context, signedURL string) ([]byte, error) {
	token, ok := strings.CutPrefix(signedURL, SignedURLScheme)
	if !ok || token == "" {
		signedResolutions.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	s.mu.Lock()
	entry, found := s.tokens[token]
	if found {
		delete(s.tokens, token)
	}
	s.mu.Unlock()

	if !found {
		signedResolutions.WithLabelValues("unknown").Inc()
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		signedResolutions.WithLabelValues("expired").Inc()
		return nil, nil
	}

	data, err := s.Get(ctx, entry.key)
	if err != nil {
		return nil, err
	}
	signedResolutions.WithLabelValues("resolved").Inc()
	return data, nil
}

// RevokeSignedURL drops an unresolved token. Unknown URLs are ignored.
func (s *Store) RevokeSignedURL(signedURL string) {
	token, ok := strings.CutPrefix(signedURL, SignedURLScheme)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// PendingSignedURLs reports how many tokens are currently held
func (s *Store) PendingSignedURLs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
