// Package postgres provides the SQL key store for the cluster key manager.
// It implements connection pooling, health checks, and lifecycle management using the pgx driver,
// with gorm layered on top of the pool for the repository.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// DBConnection manages PostgreSQL database connection pool lifecycle.
// It provides thread-safe connection pool with automatic health monitoring.
type DBConnection struct {
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	gormDB *gorm.DB
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection creates a new PostgreSQL connection manager instance.
// It initializes connection pool with configuration parameters and performs initial health check.
//
// Parameters:
//   - ctx: Context for connection timeout control
//   - cfg: Database configuration including host, port, credentials, and pool settings
//   - log: Logger instance for connection lifecycle events
//
// Returns:
//   - *DBConnection: Initialized connection manager
//   - error: Connection establishment error if any
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("database config is nil")
	}
	log = log.WithComponent("postgres")

	log.Info(ctx, "Initializing PostgreSQL connection pool",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
		logger.Int("max_conns", cfg.MaxConns),
		logger.Int("min_conns", cfg.MinConns),
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		log.Error(ctx, "Failed to parse database connection string", err)
		return nil, errors.Wrap(err, errors.CodeInvalidArgument, "invalid database config")
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	poolConfig.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTime) * time.Second
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod) * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnTimeout)*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		log.Error(ctx, "Failed to create database connection pool", err)
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to connect to postgres")
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize gorm")
	}

	dbConn := &DBConnection{
		pool:   pool,
		sqlDB:  sqlDB,
		gormDB: gormDB,
		config: cfg,
		logger: log,
	}

	if err := dbConn.Ping(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}

	log.Info(ctx, "PostgreSQL connection pool initialized successfully",
		logger.Any("total_conns", pool.Stat().TotalConns()),
		logger.Any("idle_conns", pool.Stat().IdleConns()),
	)

	return dbConn, nil
}

// Pool returns the underlying pgxpool.Pool.
func (db *DBConnection) Pool() *pgxpool.Pool {
	return db.pool
}

// DB returns the gorm handle sharing the pool.
func (db *DBConnection) DB() *gorm.DB {
	return db.gormDB
}

// Ping verifies database connectivity and responsiveness.
//
// Parameters:
//   - ctx: Context for timeout control (recommended: 5-10 seconds)
//
// Returns:
//   - error: store_unavailable if database is unreachable or unresponsive
func (db *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()
	if err := db.pool.Ping(pingCtx); err != nil {
		db.logger.Error(ctx, "Database ping failed", err)
		return errors.Wrap(err, errors.CodeStoreUnavailable, "postgres ping failed")
	}

	latency := time.Since(startTime)
	if latency > 100*time.Millisecond {
		db.logger.Warn(ctx, "High database latency detected",
			logger.Int64("latency_ms", latency.Milliseconds()),
			logger.Int("threshold_ms", 100),
		)
	}

	return nil
}

// HealthCheck performs comprehensive health check including connection stats.
func (db *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	stats := db.pool.Stat()
	healthInfo := map[string]interface{}{
		"status":               "healthy",
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
		"max_connections":      stats.MaxConns(),
	}
	if stats.IdleConns() == 0 && stats.TotalConns() >= stats.MaxConns() {
		healthInfo["warning"] = "connection_pool_near_limit"
	}
	return healthInfo, nil
}

// Close gracefully shuts down the connection pool.
func (db *DBConnection) Close() {
	db.logger.Info(context.Background(), "Closing PostgreSQL connection pool")
	if db.sqlDB != nil {
		_ = db.sqlDB.Close()
	}
	db.pool.Close()
}

// OpenSQLite opens a gorm handle on a SQLite file, or an in-memory database
// for ":memory:". It backs the single-node sqlite store and unit tests.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to open sqlite")
	}
	if path == ":memory:" {
		// Every new connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to access sqlite pool")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

//Personal.AI order the ending
