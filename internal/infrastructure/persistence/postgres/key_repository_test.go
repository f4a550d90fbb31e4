package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

func newSQLiteRepository(t *testing.T) *KeyRepository {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := NewKeyRepository(db)
	require.NoError(t, repo.AutoMigrate(context.Background()))
	return repo
}

func TestKeyRepository_InsertAndFindAll(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	t.Run("empty purpose returns no keys", func(t *testing.T) {
		docs, err := repo.FindAll(ctx, "HMAC")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("round trips material and expiry", func(t *testing.T) {
		require.NoError(t, repo.Insert(ctx, models.NewKeyDocument(2, "HMAC", []byte("two"), models.NewLogicalTime(200, 7))))
		require.NoError(t, repo.Insert(ctx, models.NewKeyDocument(1, "HMAC", []byte("one"), models.NewLogicalTime(100, 0))))
		require.NoError(t, repo.Insert(ctx, models.NewKeyDocument(1, "other", []byte("x"), models.NewLogicalTime(50, 0))))

		docs, err := repo.FindAll(ctx, "HMAC")
		require.NoError(t, err)
		require.Len(t, docs, 2)

		assert.Equal(t, int64(1), docs[0].KeyID)
		assert.Equal(t, []byte("one"), docs[0].Key)
		assert.Equal(t, models.NewLogicalTime(100, 0), docs[0].ExpiresAt)

		assert.Equal(t, int64(2), docs[1].KeyID)
		assert.Equal(t, "HMAC", docs[1].Purpose)
		assert.Equal(t, models.NewLogicalTime(200, 7), docs[1].ExpiresAt)
	})

	t.Run("duplicate id is rejected and stored key unchanged", func(t *testing.T) {
		err := repo.Insert(ctx, models.NewKeyDocument(1, "HMAC", []byte("clobber"), models.NewLogicalTime(999, 0)))
		require.Error(t, err)
		assert.True(t, errors.IsDuplicateKey(err))

		docs, err := repo.FindAll(ctx, "HMAC")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, []byte("one"), docs[0].Key)
	})

	t.Run("nil document", func(t *testing.T) {
		err := repo.Insert(ctx, nil)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
	})
}

func TestKeyRepository_Ping(t *testing.T) {
	repo := newSQLiteRepository(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestKeyRepository_ClosedStoreIsUnavailable(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	repo := NewKeyRepository(db)
	require.NoError(t, repo.AutoMigrate(context.Background()))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.FindAll(context.Background(), "HMAC")
	assert.True(t, errors.IsStoreUnavailable(err))

	err = repo.Insert(context.Background(), models.NewKeyDocument(1, "HMAC", []byte("k"), models.NewLogicalTime(1, 0)))
	assert.True(t, errors.IsStoreUnavailable(err))
}
