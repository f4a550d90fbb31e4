// Package constants defines system-wide constants for the cluster key manager.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Key Purpose Constants
// ================================================================================

// KeyPurpose names the family of keys a manager maintains.
type KeyPurpose string

const (
	// PurposeHMAC is the purpose of keys used to sign and validate cluster time.
	PurposeHMAC KeyPurpose = "HMAC"
)

// DefaultKeyPurpose is the purpose managed when none is configured
const DefaultKeyPurpose = PurposeHMAC

// ================================================================================
// Key Refresh Timing Constants
// ================================================================================

const (
	// RefreshIntervalIfErrored is the retry delay after a failed refresh or
	// when every cached key has already expired.
	RefreshIntervalIfErrored = 200 * time.Millisecond

	// MaxRefreshWaitTime caps the delay between two refresh cycles.
	MaxRefreshWaitTime = 20 * 24 * time.Hour

	// DefaultRotationInterval is the validity window of a generated key (90 days)
	DefaultRotationInterval = 90 * 24 * time.Hour

	// MinRotationInterval is the smallest usable rotation interval; cluster
	// time has second granularity.
	MinRotationInterval = time.Second

	// DefaultValidationWaitTimeout bounds a validation lookup that arrives
	// before the first refresh when the caller gave no deadline.
	DefaultValidationWaitTimeout = 30 * time.Second

	// DefaultStoreTimeout bounds a single store round trip
	DefaultStoreTimeout = 10 * time.Second
)

// DefaultKeyMaterialLength is the number of random bytes in generated key material (HMAC-SHA1 sized)
const DefaultKeyMaterialLength = 20

// ================================================================================
// Refresher State Constants
// ================================================================================

// RefresherState describes the lifecycle of the background refresher
type RefresherState string

const (
	// RefresherStopped means no background loop is running
	RefresherStopped RefresherState = "stopped"

	// RefresherStarting means the initial synchronous cycle is executing
	RefresherStarting RefresherState = "starting"

	// RefresherRunning means the background loop is active
	RefresherRunning RefresherState = "running"

	// RefresherStopping means a stop was requested and the loop is draining
	RefresherStopping RefresherState = "stopping"
)

// ================================================================================
// Store Backend Constants
// ================================================================================

// StoreBackend selects the durable key store implementation
type StoreBackend string

const (
	// StoreBackendPostgres stores keys in PostgreSQL via gorm
	StoreBackendPostgres StoreBackend = "postgres"

	// StoreBackendSQLite stores keys in a local SQLite file (single node / dev)
	StoreBackendSQLite StoreBackend = "sqlite"

	// StoreBackendRedis stores keys in a Redis hash per purpose
	StoreBackendRedis StoreBackend = "redis"

	// StoreBackendMemory keeps keys in process memory (tests, demos)
	StoreBackendMemory StoreBackend = "memory"
)

// KeySourceKind selects where fresh key material comes from
type KeySourceKind string

const (
	// KeySourceRandom reads key material from crypto/rand
	KeySourceRandom KeySourceKind = "random"

	// KeySourceVault reads key material from Vault's random generator
	KeySourceVault KeySourceKind = "vault"
)

// ================================================================================
// Audit Event Constants
// ================================================================================

// KeyEventType classifies audit events emitted by the generator
type KeyEventType string

const (
	// KeyEventGenerated is emitted after a new key was durably inserted
	KeyEventGenerated KeyEventType = "key.generated"

	// KeyEventGenerationFailed is emitted when a needed key could not be created
	KeyEventGenerationFailed KeyEventType = "key.generation_failed"
)

// DefaultAuditTopic is the Kafka topic for key lifecycle events
const DefaultAuditTopic = "cluster-key-events"

// ================================================================================
// Service Configuration Constants
// ================================================================================

const (
	// DefaultServicePort is the default HTTP admin port
	DefaultServicePort = 8080

	// DefaultGRPCPort is the default gRPC health port
	DefaultGRPCPort = 50051

	// DefaultHealthCheckPath is the liveness endpoint path
	DefaultHealthCheckPath = "/healthz"

	// DefaultReadinessCheckPath is the readiness endpoint path
	DefaultReadinessCheckPath = "/readyz"

	// DefaultRequestTimeout is the default request timeout (5 seconds)
	DefaultRequestTimeout = 5 * time.Second

	// DefaultShutdownTimeout is the graceful shutdown timeout (30 seconds)
	DefaultShutdownTimeout = 30 * time.Second
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"

	// LogLevelFatal indicates critical errors that cause service termination
	LogLevelFatal LogLevel = "fatal"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID is the key for distributed trace ID in context
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeySpanID is the key for trace span ID in context
	ContextKeySpanID ContextKey = "span_id"

	// ContextKeyPurpose is the key for the key purpose being served
	ContextKeyPurpose ContextKey = "key_purpose"

	// ContextKeyNodeID is the key for the local node identifier
	ContextKeyNodeID ContextKey = "node_id"
)

//Personal.AI order the ending
