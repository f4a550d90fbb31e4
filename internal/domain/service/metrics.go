// Package service defines the interfaces for domain services.
package service

import (
	"time"

	"github.com/turtacn/clusterkeys/internal/domain/models"
)

// Metrics defines the interface for collecting key management metrics.
// This abstraction allows the application layer to remain independent of the specific monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集密钥管理指标的接口。
// 这种抽象使应用层能够独立于具体的监控实现（例如 Prometheus）。
type Metrics interface {
	// RecordRefresh records the outcome and latency of one cache refresh.
	// RecordRefresh 记录一次缓存刷新的结果和延迟。
	RecordRefresh(purpose string, success bool, duration time.Duration)

	// RecordGeneration records the outcome of a generation attempt ("created", "skipped", "suppressed", "failed").
	// RecordGeneration 记录一次密钥生成尝试的结果。
	RecordGeneration(purpose, outcome string)

	// RecordLookup records a validation or signing lookup and whether it found a key.
	// RecordLookup 记录一次验证或签名查找以及是否找到密钥。
	RecordLookup(purpose, kind string, found bool)

	// UpdateCacheState updates the gauges describing the current snapshot.
	// UpdateCacheState 更新描述当前快照的仪表盘。
	UpdateCacheState(purpose string, keyCount int, latestExpiry models.LogicalTime, hasSeenKeys bool)

	// RecordNextRefresh records the delay chosen before the next cycle.
	// RecordNextRefresh 记录下一周期之前选择的延迟。
	RecordNextRefresh(purpose string, delay time.Duration)

	// RecordStoreCall records the latency and error status of a store round trip.
	// RecordStoreCall 记录存储往返的延迟和错误状态。
	RecordStoreCall(backend, operation string, duration time.Duration, err error)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordRefresh(string, bool, time.Duration)              {}
func (NoopMetrics) RecordGeneration(string, string)                        {}
func (NoopMetrics) RecordLookup(string, string, bool)                      {}
func (NoopMetrics) UpdateCacheState(string, int, models.LogicalTime, bool) {}
func (NoopMetrics) RecordNextRefresh(string, time.Duration)                {}
func (NoopMetrics) RecordStoreCall(string, string, time.Duration, error)   {}
