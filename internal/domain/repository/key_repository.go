package repository

import (
	"context"

	"github.com/turtacn/clusterkeys/internal/domain/models"
)

// KeyRepository defines the interface for durable cluster key persistence.
// KeyRepository 定义了集群密钥持久化的接口。
type KeyRepository interface {
	// FindAll returns every key stored for purpose, in any order. Expired keys are
	// returned too. A store failure is reported as a store_unavailable error.
	// FindAll 返回为指定用途存储的所有密钥（顺序不限），包括已过期的密钥。
	FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error)

	// Insert durably stores a new key. An existing (purpose, key id) pair yields a
	// duplicate_key error and leaves the stored key unchanged.
	// Insert 持久化存储新密钥。已存在的 (purpose, key id) 返回 duplicate_key 错误。
	Insert(ctx context.Context, doc *models.KeyDocument) error
}

// HealthChecker is implemented by stores that can report connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
