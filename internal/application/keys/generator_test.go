package keys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/service/mocks"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence/memory"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/tests/fakes"
)

func newTestGenerator(repo *memory.KeyRepository, source *mocks.MockKeyMaterialSource, switches *Switches, publisher *fakes.FakeEventPublisher) (*Cache, *Generator) {
	guarded := NewGuardedRepository(repo, switches)
	cache := NewCache(testPurpose, guarded, nil, nil)
	gen := NewGenerator(cache, guarded, source, switches, publisher, time.Second, "node-a", nil, nil)
	return cache, gen
}

func TestGenerator_MaybeGenerateKeys(t *testing.T) {
	ctx := context.Background()
	now := models.NewLogicalTime(100, 0)

	t.Run("creates first key at now plus interval", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		source := &mocks.MockKeyMaterialSource{}
		source.On("GenerateSecret", mock.Anything).Return([]byte("fresh"), nil).Once()
		publisher := fakes.NewFakeEventPublisher(4)
		cache, gen := newTestGenerator(repo, source, NewSwitches(), publisher)

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)

		doc, err := gen.MaybeGenerateKeys(ctx, now)
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, int64(1), doc.KeyID)
		assert.Equal(t, models.NewLogicalTime(101, 0), doc.ExpiresAt)
		assert.Equal(t, []byte("fresh"), doc.Key)
		assert.Equal(t, 1, repo.Len())

		event, err := publisher.DrainOne(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, constants.KeyEventGenerated, event.EventType)
		assert.Equal(t, int64(1), event.KeyID)
		assert.Equal(t, "node-a", event.NodeID)

		// The horizon is covered once the cache sees the new key.
		_, err = cache.Refresh(ctx)
		require.NoError(t, err)
		doc, err = gen.MaybeGenerateKeys(ctx, now)
		require.NoError(t, err)
		assert.Nil(t, doc)
		source.AssertExpectations(t)
	})

	t.Run("new id follows the largest cached id", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		insertKey(t, repo, 4, 90)
		insertKey(t, repo, 9, 95)
		source := &mocks.MockKeyMaterialSource{}
		source.On("GenerateSecret", mock.Anything).Return([]byte("fresh"), nil).Once()
		cache, gen := newTestGenerator(repo, source, NewSwitches(), fakes.NewFakeEventPublisher(4))

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)
		doc, err := gen.MaybeGenerateKeys(ctx, now)
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, int64(10), doc.KeyID)
	})

	t.Run("increment of now is kept in the expiry", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		source := &mocks.MockKeyMaterialSource{}
		source.On("GenerateSecret", mock.Anything).Return([]byte("fresh"), nil).Once()
		cache, gen := newTestGenerator(repo, source, NewSwitches(), fakes.NewFakeEventPublisher(4))

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)
		doc, err := gen.MaybeGenerateKeys(ctx, models.NewLogicalTime(100, 42))
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, models.NewLogicalTime(101, 42), doc.ExpiresAt)

		// A later increment in the same second is past the new key's expiry.
		_, err = cache.Refresh(ctx)
		require.NoError(t, err)
		assert.True(t, cache.LatestExpiry().Before(ExpiryHorizon(models.NewLogicalTime(100, 43), time.Second)))
		assert.False(t, cache.LatestExpiry().Before(ExpiryHorizon(models.NewLogicalTime(100, 42), time.Second)))
	})

	t.Run("kill switch skips generation without error", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		source := &mocks.MockKeyMaterialSource{}
		switches := NewSwitches()
		restore := switches.Override(SwitchDisableKeyGeneration)
		defer restore()
		cache, gen := newTestGenerator(repo, source, switches, fakes.NewFakeEventPublisher(4))

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)
		doc, err := gen.MaybeGenerateKeys(ctx, now)
		require.NoError(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, 0, repo.Len())
		source.AssertNotCalled(t, "GenerateSecret", mock.Anything)
	})

	t.Run("blocked write reports store unavailable", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		source := &mocks.MockKeyMaterialSource{}
		source.On("GenerateSecret", mock.Anything).Return([]byte("fresh"), nil)
		switches := NewSwitches()
		restore := switches.Override(SwitchFailStoreWrites)
		defer restore()
		publisher := fakes.NewFakeEventPublisher(4)
		cache, gen := newTestGenerator(repo, source, switches, publisher)

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)
		doc, err := gen.MaybeGenerateKeys(ctx, now)
		require.Error(t, err)
		assert.Nil(t, doc)
		assert.True(t, errors.IsStoreUnavailable(err))

		event, err := publisher.DrainOne(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, constants.KeyEventGenerationFailed, event.EventType)
		assert.Equal(t, "failure", event.Result)
	})

	t.Run("conflicting insert keeps duplicate code", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		source := &mocks.MockKeyMaterialSource{}
		source.On("GenerateSecret", mock.Anything).Return([]byte("fresh"), nil)
		cache, gen := newTestGenerator(repo, source, NewSwitches(), fakes.NewFakeEventPublisher(4))

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)
		// Another node wins the race for id 1 after our refresh.
		insertKey(t, repo, 1, 101)

		_, err = gen.MaybeGenerateKeys(ctx, now)
		require.Error(t, err)
		assert.True(t, errors.IsDuplicateKey(err))
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("key material failure", func(t *testing.T) {
		repo := memory.NewKeyRepository()
		source := &mocks.MockKeyMaterialSource{}
		source.On("GenerateSecret", mock.Anything).Return(nil, assert.AnError)
		cache, gen := newTestGenerator(repo, source, NewSwitches(), fakes.NewFakeEventPublisher(4))

		_, err := cache.Refresh(ctx)
		require.NoError(t, err)
		_, err = gen.MaybeGenerateKeys(ctx, now)
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 0, repo.Len())
	})
}

func TestSwitches_Override(t *testing.T) {
	switches := NewSwitches()
	assert.False(t, switches.IsGenerationSuppressed())

	outer := switches.Override(SwitchDisableKeyGeneration)
	inner := switches.Override(SwitchDisableKeyGeneration)
	assert.True(t, switches.IsGenerationSuppressed())

	inner()
	inner()
	assert.True(t, switches.IsGenerationSuppressed(), "outer override still active")

	outer()
	assert.False(t, switches.IsGenerationSuppressed())

	require.NoError(t, switches.Set(SwitchFailStoreReads, true))
	restore := switches.Override(SwitchFailStoreReads)
	restore()
	assert.True(t, switches.IsReadBlocked(), "pinned value survives restore")
	assert.Equal(t, map[string]bool{
		string(SwitchDisableKeyGeneration): false,
		string(SwitchFailStoreReads):       true,
		string(SwitchFailStoreWrites):      false,
	}, switches.Snapshot())

	assert.Error(t, switches.Set("unknown", true))
	switches.Override("unknown")()
}

func TestVectorClock(t *testing.T) {
	clock := NewVectorClock()
	assert.True(t, clock.Now().IsZero())

	clock.Advance(models.NewLogicalTime(100, 0))
	clock.Advance(models.NewLogicalTime(50, 0))
	assert.Equal(t, models.NewLogicalTime(100, 0), clock.Now())

	wall := time.Unix(200, 0)
	withWall := NewVectorClock(WithWallClock(func() time.Time { return wall }))
	assert.Equal(t, models.NewLogicalTime(200, 0), withWall.Now())
	withWall.Advance(models.NewLogicalTime(300, 2))
	assert.Equal(t, models.NewLogicalTime(300, 2), withWall.Now())
	wall = time.Unix(100, 0)
	assert.Equal(t, models.NewLogicalTime(300, 2), withWall.Now(), "never goes backwards")
}
