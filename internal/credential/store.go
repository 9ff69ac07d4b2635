// Package credential persists opaque authentication material for the
// gateway session. The blob format is understood only by the transport
// implementation; this package treats it as bytes keyed by session ID.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msggate/msggate/internal/storage"
)

// collection is the storage namespace credential records live under.
const collection = "credentials"

// Backend is the key-value store a Store persists to. *storage.Storage is
// the file-based implementation; remote record stores can satisfy the same
// contract. Get must return storage.ErrNotFound (possibly wrapped) for a
// missing record.
type Backend interface {
	Get(ctx context.Context, path []string, v any) error
	Put(ctx context.Context, path []string, v any) error
	Delete(ctx context.Context, path []string) error
}

// Record is the persisted shape of a credential blob.
type Record struct {
	SessionID string `json:"session_id"`
	Blob      []byte `json:"blob"`
	UpdatedAt int64  `json:"updated_at"`
}

// Store persists and retrieves credential blobs.
type Store struct {
	backend Backend
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load retrieves the credential blob for a session. A missing record is not
// an error: it returns (nil, nil) and the caller starts a fresh session.
func (s *Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var rec Record
	err := s.backend.Get(ctx, []string{collection, sessionID}, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load credentials for %q: %w", sessionID, err)
	}
	return rec.Blob, nil
}

// Save persists a credential blob, replacing any previous one. Safe to call
// repeatedly with overlapping content; the last write wins.
func (s *Store) Save(ctx context.Context, sessionID string, blob []byte) error {
	rec := Record{
		SessionID: sessionID,
		Blob:      blob,
		UpdatedAt: time.Now().UnixMilli(),
	}
	if err := s.backend.Put(ctx, []string{collection, sessionID}, rec); err != nil {
		return fmt.Errorf("save credentials for %q: %w", sessionID, err)
	}
	return nil
}

// Delete removes the credential record for a session. Deleting a missing
// record is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.backend.Delete(ctx, []string{collection, sessionID}); err != nil {
		return fmt.Errorf("delete credentials for %q: %w", sessionID, err)
	}
	return nil
}
