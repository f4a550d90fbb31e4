package config

import (
	"context"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g. CLUSTERKEYS_KEYS_PURPOSE.
const EnvPrefix = "CLUSTERKEYS"

// Loader reads the configuration and can watch its file for changes.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
	mu  sync.Mutex
}

// NewLoader creates a loader. An empty path searches ./config.yaml and
// /etc/clusterkeys/config.yaml.
func NewLoader(path string, log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/clusterkeys/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log.WithComponent("config")}
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string, log logger.Logger) (*Config, error) {
	return NewLoader(path, log).Load()
}

// Load reads the config file (a missing file is fine when no explicit path
// was given), applies the environment and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.CodeInvalidArgument, "failed to read config")
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidArgument, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls onChange with the new configuration each time the config file
// changes. Invalid updates are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			l.log.Warn(context.Background(), "ignoring invalid config update", logger.String("file", e.Name), logger.Err(err))
			return
		}
		l.log.Info(context.Background(), "config file changed", logger.String("file", e.Name), logger.String("op", e.Op.String()))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", constants.DefaultServicePort)
	v.SetDefault("server.grpc_port", constants.DefaultGRPCPort)
	v.SetDefault("server.read_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("server.write_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)
	v.SetDefault("server.enable_pprof", false)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("store.backend", string(constants.StoreBackendMemory))
	v.SetDefault("store.key_source", string(constants.KeySourceRandom))
	v.SetDefault("store.sqlite_path", "clusterkeys.db")
	v.SetDefault("store.timeout", constants.DefaultStoreTimeout)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "clusterkeys")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "clusterkeys")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 3600)
	v.SetDefault("database.max_conn_idle_time", 600)
	v.SetDefault("database.health_check_period", 30)
	v.SetDefault("database.conn_timeout", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.master_name", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)
	v.SetDefault("redis.dial_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("redis.key_prefix", "clusterkeys")

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.random_bytes", constants.DefaultKeyMaterialLength)
	v.SetDefault("vault.timeout", constants.DefaultRequestTimeout)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", constants.DefaultAuditTopic)
	v.SetDefault("kafka.batch_timeout", "100ms")
	v.SetDefault("kafka.signing_secret", "")

	v.SetDefault("keys.purpose", string(constants.DefaultKeyPurpose))
	v.SetDefault("keys.rotation_interval", constants.DefaultRotationInterval)
	v.SetDefault("keys.validation_wait_timeout", constants.DefaultValidationWaitTimeout)
	v.SetDefault("keys.generation_enabled", false)
	v.SetDefault("keys.generation_suppressed", false)
	v.SetDefault("keys.node_id", "")
	v.SetDefault("keys.use_wall_clock", true)

	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.issuer", "clusterkeys")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "clusterkeys")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

//Personal.AI order the ending
