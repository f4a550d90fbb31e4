package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// storedKey is the JSON value kept per hash field.
type storedKey struct {
	Key           []byte `json:"key"`
	ExpiresAtSecs uint32 `json:"expires_at_secs"`
	ExpiresAtInc  uint32 `json:"expires_at_inc"`
}

// KeyRepository stores the keys of a purpose as one Redis hash,
// "<prefix>:keys:<purpose>", with the decimal key id as field.
type KeyRepository struct {
	conn *RedisConnection
}

var (
	_ repository.KeyRepository = (*KeyRepository)(nil)
	_ repository.HealthChecker = (*KeyRepository)(nil)
)

// NewKeyRepository creates a Redis key store on conn.
func NewKeyRepository(conn *RedisConnection) *KeyRepository {
	return &KeyRepository{conn: conn}
}

func (r *KeyRepository) hashKey(purpose string) string {
	return fmt.Sprintf("%s:keys:%s", r.conn.KeyPrefix(), purpose)
}

// FindAll reads the purpose hash and returns its keys ordered by id.
func (r *KeyRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	fields, err := r.conn.Client().HGetAll(ctx, r.hashKey(purpose)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "find keys")
	}

	docs := make([]*models.KeyDocument, 0, len(fields))
	for field, raw := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "corrupt key id "+field)
		}
		var sk storedKey
		if err := json.Unmarshal([]byte(raw), &sk); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "corrupt key "+field)
		}
		docs = append(docs, models.NewKeyDocument(id, purpose, sk.Key, models.NewLogicalTime(sk.ExpiresAtSecs, sk.ExpiresAtInc)))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].KeyID < docs[j].KeyID })
	return docs, nil
}

// Insert writes doc with HSETNX so an existing id is never overwritten.
func (r *KeyRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	if doc == nil {
		return errors.InvalidArgument("key document is nil")
	}
	raw, err := json.Marshal(storedKey{
		Key:           doc.Key,
		ExpiresAtSecs: doc.ExpiresAt.Secs,
		ExpiresAtInc:  doc.ExpiresAt.Inc,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode key")
	}

	created, err := r.conn.Client().HSetNX(ctx, r.hashKey(doc.Purpose), strconv.FormatInt(doc.KeyID, 10), raw).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "insert key")
	}
	if !created {
		return errors.DuplicateKey("key already exists").
			WithMetadata("purpose", doc.Purpose).
			WithMetadata("key_id", doc.KeyID)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *KeyRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}
