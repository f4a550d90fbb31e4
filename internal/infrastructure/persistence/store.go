package persistence

import (
	"context"
	"time"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence/memory"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence/redis"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// ================================================================================
// Store
// ================================================================================

// Store is an opened key store together with the health checks of the
// connections behind it.
type Store struct {
	// Repository is the decorated repository handed to the key manager
	Repository repository.KeyRepository

	// Checkers are the connection pings reported by /readyz
	Checkers map[string]repository.HealthChecker

	closers []func()
	log     logger.Logger
}

// OpenStore opens the backend selected by cfg.Store.Backend and wraps it with
// the timeout, metrics and coalescing decorators.
//
// Parameters:
//   - ctx: Bounds connection establishment
//   - cfg: Full application config; only store, database and redis are read
//   - metrics: Sink for store call observations, may be nil
//   - log: Logger instance
//
// Returns:
//   - *Store: Opened store, callers must Close it
//   - error: invalid_argument for an unknown backend, store_unavailable when the backend is unreachable
func OpenStore(ctx context.Context, cfg *config.Config, metrics service.Metrics, log logger.Logger) (*Store, error) {
	s := &Store{
		Checkers: make(map[string]repository.HealthChecker),
		log:      log.WithComponent("store"),
	}

	var base repository.KeyRepository
	switch cfg.Store.Backend {
	case constants.StoreBackendPostgres:
		conn, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, conn.Close)
		repo := postgres.NewKeyRepository(conn.DB())
		if cfg.Database.AutoMigrate {
			if err := repo.AutoMigrate(ctx); err != nil {
				s.Close()
				return nil, err
			}
		}
		s.Checkers["postgres"] = conn
		base = repo

	case constants.StoreBackendSQLite:
		db, err := postgres.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, func() { _ = sqlDB.Close() })
		}
		repo := postgres.NewKeyRepository(db)
		if err := repo.AutoMigrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Checkers["sqlite"] = repo
		base = repo

	case constants.StoreBackendRedis:
		conn, err := redis.NewRedisConnection(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Checkers["redis"] = conn
		base = redis.NewKeyRepository(conn)

	case constants.StoreBackendMemory:
		base = memory.NewKeyRepository()

	default:
		return nil, errors.InvalidArgument("unsupported store backend").WithMetadata("backend", string(cfg.Store.Backend))
	}

	timeout := cfg.Store.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultStoreTimeout
	}
	repo := NewTimeoutRepository(base, timeout)
	s.Repository = NewCoalescingRepository(NewInstrumentedRepository(repo, string(cfg.Store.Backend), metrics), timeout)

	s.log.Info(ctx, "Key store opened",
		logger.String("backend", string(cfg.Store.Backend)),
		logger.Duration("timeout", timeout),
	)
	return s, nil
}

// Close releases every connection opened by OpenStore, in reverse order.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// ================================================================================
// Timeout decorator
// ================================================================================

// TimeoutRepository bounds every store round trip.
type TimeoutRepository struct {
	next    repository.KeyRepository
	timeout time.Duration
}

var _ repository.KeyRepository = (*TimeoutRepository)(nil)

// NewTimeoutRepository wraps next so no single call runs longer than timeout.
func NewTimeoutRepository(next repository.KeyRepository, timeout time.Duration) *TimeoutRepository {
	return &TimeoutRepository{next: next, timeout: timeout}
}

func (r *TimeoutRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.FindAll(ctx, purpose)
}

func (r *TimeoutRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.Insert(ctx, doc)
}

func (r *TimeoutRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return ping(ctx, r.next)
}

//Personal.AI order the ending
