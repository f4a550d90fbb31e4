package config

import (
	"fmt"
	"time"

	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnablePprof     bool          `mapstructure:"enable_pprof"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StoreConfig selects the key store and key material source.
type StoreConfig struct {
	Backend    constants.StoreBackend  `mapstructure:"backend"`
	KeySource  constants.KeySourceKind `mapstructure:"key_source"`
	SQLitePath string                  `mapstructure:"sqlite_path"`
	Timeout    time.Duration           `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConns          int    `mapstructure:"max_conns"`
	MinConns          int    `mapstructure:"min_conns"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime"`   // in seconds
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time"`  // in seconds
	HealthCheckPeriod int    `mapstructure:"health_check_period"` // in seconds
	ConnTimeout       int    `mapstructure:"conn_timeout"`        // in seconds
	AutoMigrate       bool   `mapstructure:"auto_migrate"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Mode         string        `mapstructure:"mode"` // standalone, cluster, sentinel
	Addresses    []string      `mapstructure:"addresses"`
	MasterName   string        `mapstructure:"master_name"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type VaultConfig struct {
	Address     string        `mapstructure:"address"`
	Token       string        `mapstructure:"token"`
	RandomBytes int           `mapstructure:"random_bytes"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	SigningSecret string        `mapstructure:"signing_secret"` // HMAC key for event signatures, optional
}

// KeysConfig holds the key manager settings. GenerationEnabled and
// GenerationSuppressed are re-read when the config file changes.
type KeysConfig struct {
	Purpose               string        `mapstructure:"purpose"`
	RotationInterval      time.Duration `mapstructure:"rotation_interval"`
	ValidationWaitTimeout time.Duration `mapstructure:"validation_wait_timeout"`
	GenerationEnabled     bool          `mapstructure:"generation_enabled"`
	GenerationSuppressed  bool          `mapstructure:"generation_suppressed"`
	NodeID                string        `mapstructure:"node_id"`
	// UseWallClock keeps cluster time at or above the wall clock. Off, cluster
	// time only moves with the times of successfully validated lookups.
	UseWallClock bool `mapstructure:"use_wall_clock"`
}

// AdminConfig protects the mutating admin endpoints. An empty secret disables them.
type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or zap
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case constants.StoreBackendPostgres, constants.StoreBackendSQLite,
		constants.StoreBackendRedis, constants.StoreBackendMemory:
	default:
		return errors.InvalidArgument("unsupported store backend").WithMetadata("backend", string(c.Store.Backend))
	}

	switch c.Store.KeySource {
	case constants.KeySourceRandom:
	case constants.KeySourceVault:
		if c.Vault.Address == "" {
			return errors.InvalidArgument("vault.address is required for the vault key source")
		}
	default:
		return errors.InvalidArgument("unsupported key source").WithMetadata("key_source", string(c.Store.KeySource))
	}

	if c.Store.Backend == constants.StoreBackendRedis && len(c.Redis.Addresses) == 0 {
		return errors.InvalidArgument("redis.addresses is required for the redis backend")
	}
	if c.Keys.Purpose == "" {
		return errors.InvalidArgument("keys.purpose is required")
	}
	if c.Keys.RotationInterval < constants.MinRotationInterval {
		return errors.InvalidArgument("keys.rotation_interval must be at least 1s")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.InvalidArgument("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

//Personal.AI order the ending
