// Package memory provides an in-process key store for single-node runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

type keyID struct {
	purpose string
	id      int64
}

// KeyRepository is a KeyRepository kept in process memory.
type KeyRepository struct {
	mu   sync.RWMutex
	docs map[keyID]*models.KeyDocument
	// order keeps insertion order so FindAll is deterministic.
	order []keyID
}

var (
	_ repository.KeyRepository = (*KeyRepository)(nil)
	_ repository.HealthChecker = (*KeyRepository)(nil)
)

// NewKeyRepository creates an empty store.
func NewKeyRepository() *KeyRepository {
	return &KeyRepository{docs: make(map[keyID]*models.KeyDocument)}
}

// FindAll returns copies of every key of purpose in insertion order.
func (r *KeyRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "find keys")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.KeyDocument, 0, len(r.order))
	for _, id := range r.order {
		if id.purpose == purpose {
			out = append(out, r.docs[id].Clone())
		}
	}
	return out, nil
}

// Insert stores a copy of doc. An existing (purpose, key id) is a duplicate_key error.
func (r *KeyRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	if doc == nil {
		return errors.InvalidArgument("key document is nil")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "insert key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := keyID{purpose: doc.Purpose, id: doc.KeyID}
	if _, exists := r.docs[id]; exists {
		return errors.DuplicateKey("key already exists").
			WithMetadata("purpose", doc.Purpose).
			WithMetadata("key_id", doc.KeyID)
	}
	r.docs[id] = doc.Clone()
	r.order = append(r.order, id)
	return nil
}

// Ping always succeeds.
func (r *KeyRepository) Ping(ctx context.Context) error { return nil }

// Len returns the number of stored keys across purposes.
func (r *KeyRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
