package service

import (
	"context"

	"github.com/turtacn/clusterkeys/internal/domain/models"
)

//go:generate mockery --name KeyMaterialSource --output mocks --outpkg mocks
// KeyMaterialSource produces fresh secret material for newly generated keys.
// KeyMaterialSource 为新生成的密钥提供新的秘密材料。
type KeyMaterialSource interface {
	// GenerateSecret returns new random key material.
	// GenerateSecret 返回新的随机密钥材料。
	GenerateSecret(ctx context.Context) ([]byte, error)
}

// ClusterClock supplies the current cluster time.
// ClusterClock 提供当前的集群时间。
type ClusterClock interface {
	// Now returns the current cluster time.
	// Now 返回当前集群时间。
	Now() models.LogicalTime
}

// ClusterTimeObserver is implemented by clocks that learn cluster time from
// the times carried by traffic.
type ClusterTimeObserver interface {
	// Advance records t as observed and returns the resulting cluster time.
	Advance(t models.LogicalTime) models.LogicalTime
}

// GenerationPolicy exposes the test and operator switches that alter key
// management behavior at runtime. All methods must be safe for concurrent use.
// GenerationPolicy 公开在运行时改变密钥管理行为的开关。
type GenerationPolicy interface {
	// IsGenerationSuppressed reports whether key generation is disabled entirely.
	// IsGenerationSuppressed 报告是否完全禁用了密钥生成。
	IsGenerationSuppressed() bool

	// IsWriteBlocked reports whether inserts into the key store must fail.
	// IsWriteBlocked 报告对密钥存储的插入是否必须失败。
	IsWriteBlocked() bool

	// IsReadBlocked reports whether reads from the key store must fail.
	// IsReadBlocked 报告从密钥存储读取是否必须失败。
	IsReadBlocked() bool
}

//go:generate mockery --name KeyEventPublisher --output mocks --outpkg mocks
// KeyEventPublisher delivers key lifecycle events to the audit trail.
// KeyEventPublisher 将密钥生命周期事件发送到审计跟踪。
type KeyEventPublisher interface {
	Publish(ctx context.Context, event *models.KeyEvent) error
}

// NoopKeyEventPublisher discards every event.
type NoopKeyEventPublisher struct{}

// Publish implements KeyEventPublisher.
func (NoopKeyEventPublisher) Publish(context.Context, *models.KeyEvent) error { return nil }
