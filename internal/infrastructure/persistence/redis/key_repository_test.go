package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

func setupRepository(t *testing.T) (*KeyRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	conn, err := NewRedisConnection(context.Background(), config.RedisConfig{
		Addresses: []string{mr.Addr()},
		KeyPrefix: "test",
	}, logger.NewNoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewKeyRepository(conn), mr
}

func TestKeyRepository_InsertAndFindAll(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupRepository(t)

	require.NoError(t, repo.Insert(ctx, models.NewKeyDocument(10, "HMAC", []byte("ten"), models.NewLogicalTime(1000, 3))))
	require.NoError(t, repo.Insert(ctx, models.NewKeyDocument(2, "HMAC", []byte("two"), models.NewLogicalTime(200, 0))))

	assert.True(t, mr.Exists("test:keys:HMAC"))

	docs, err := repo.FindAll(ctx, "HMAC")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(2), docs[0].KeyID)
	assert.Equal(t, int64(10), docs[1].KeyID)
	assert.Equal(t, []byte("ten"), docs[1].Key)
	assert.Equal(t, models.NewLogicalTime(1000, 3), docs[1].ExpiresAt)
	assert.Equal(t, "HMAC", docs[1].Purpose)

	t.Run("other purpose is isolated", func(t *testing.T) {
		docs, err := repo.FindAll(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("duplicate id keeps the original", func(t *testing.T) {
		err := repo.Insert(ctx, models.NewKeyDocument(2, "HMAC", []byte("clobber"), models.NewLogicalTime(9, 0)))
		assert.True(t, errors.IsDuplicateKey(err))

		docs, err := repo.FindAll(ctx, "HMAC")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), docs[0].Key)
	})
}

func TestKeyRepository_CorruptValue(t *testing.T) {
	repo, mr := setupRepository(t)
	mr.HSet("test:keys:HMAC", "1", "not-json")

	_, err := repo.FindAll(context.Background(), "HMAC")
	assert.True(t, errors.IsStoreUnavailable(err))
}

func TestKeyRepository_ServerDown(t *testing.T) {
	repo, mr := setupRepository(t)
	mr.Close()

	_, err := repo.FindAll(context.Background(), "HMAC")
	assert.True(t, errors.IsStoreUnavailable(err))

	err = repo.Insert(context.Background(), models.NewKeyDocument(1, "HMAC", []byte("k"), models.NewLogicalTime(1, 0)))
	assert.True(t, errors.IsStoreUnavailable(err))

	assert.True(t, errors.IsStoreUnavailable(repo.Ping(context.Background())))
}

func TestNewRedisConnection(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewRedisConnection(context.Background(), config.RedisConfig{Mode: "bogus"}, logger.NewNoopLogger())
		assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
	})

	t.Run("sentinel without master", func(t *testing.T) {
		_, err := NewRedisConnection(context.Background(), config.RedisConfig{Mode: "sentinel"}, logger.NewNoopLogger())
		assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
	})

	t.Run("from client", func(t *testing.T) {
		mr := miniredis.RunT(t)
		conn := NewRedisConnectionFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), logger.NewNoopLogger())
		defer conn.Close()
		assert.Equal(t, "clusterkeys", conn.KeyPrefix())

		health, err := conn.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, true, health["connected"])
	})
}
