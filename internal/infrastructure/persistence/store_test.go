package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/infrastructure/monitoring"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence/memory"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Backend: constants.StoreBackendMemory}}
		s, err := OpenStore(ctx, cfg, nil, logger.NewNoopLogger())
		require.NoError(t, err)
		defer s.Close()

		doc := models.NewKeyDocument(1, "HMAC", []byte("secret"), models.NewLogicalTime(100, 0))
		require.NoError(t, s.Repository.Insert(ctx, doc))
		docs, err := s.Repository.FindAll(ctx, "HMAC")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, int64(1), docs[0].KeyID)
		assert.Empty(t, s.Checkers)
	})

	t.Run("sqlite backend records store metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := monitoring.NewMetrics(reg)
		cfg := &config.Config{Store: config.StoreConfig{
			Backend:    constants.StoreBackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "keys.db"),
			Timeout:    time.Second,
		}}
		s, err := OpenStore(ctx, cfg, metrics, logger.NewNoopLogger())
		require.NoError(t, err)
		defer s.Close()

		require.Contains(t, s.Checkers, "sqlite")
		require.NoError(t, s.Checkers["sqlite"].Ping(ctx))

		doc := models.NewKeyDocument(7, "HMAC", []byte("secret"), models.NewLogicalTime(100, 0))
		require.NoError(t, s.Repository.Insert(ctx, doc))
		err = s.Repository.Insert(ctx, doc.Clone())
		assert.True(t, errors.IsDuplicateKey(err))

		_, err = s.Repository.FindAll(ctx, "HMAC")
		require.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreCallErrors.WithLabelValues("sqlite", "insert")))
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Backend: "etcd"}}
		_, err := OpenStore(ctx, cfg, nil, logger.NewNoopLogger())
		assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
	})
}

type slowRepository struct {
	*memory.KeyRepository
}

func (r *slowRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	<-ctx.Done()
	return nil, errors.Wrap(ctx.Err(), errors.CodeStoreUnavailable, "find timed out")
}

func TestTimeoutRepository_BoundsCalls(t *testing.T) {
	repo := NewTimeoutRepository(&slowRepository{KeyRepository: memory.NewKeyRepository()}, 20*time.Millisecond)

	start := time.Now()
	_, err := repo.FindAll(context.Background(), "HMAC")
	assert.True(t, errors.IsStoreUnavailable(err))
	assert.Less(t, time.Since(start), time.Second)
}
