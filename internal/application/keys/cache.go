package keys

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// snapshot is an immutable view of every key loaded by one refresh.
type snapshot struct {
	byID map[int64]*models.KeyDocument
	// byExpiry is sorted by ExpiresAt, then KeyID.
	byExpiry     []*models.KeyDocument
	latestExpiry models.LogicalTime
	maxKeyID     int64
}

var emptySnapshot = &snapshot{byID: map[int64]*models.KeyDocument{}}

func newSnapshot(docs []*models.KeyDocument) *snapshot {
	s := &snapshot{byID: make(map[int64]*models.KeyDocument, len(docs))}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		s.byID[doc.KeyID] = doc.Clone()
	}
	s.byExpiry = make([]*models.KeyDocument, 0, len(s.byID))
	for _, doc := range s.byID {
		s.byExpiry = append(s.byExpiry, doc)
		s.latestExpiry = models.MaxLogicalTime(s.latestExpiry, doc.ExpiresAt)
		if doc.KeyID > s.maxKeyID {
			s.maxKeyID = doc.KeyID
		}
	}
	sort.Slice(s.byExpiry, func(i, j int) bool {
		if c := s.byExpiry[i].ExpiresAt.Compare(s.byExpiry[j].ExpiresAt); c != 0 {
			return c < 0
		}
		return s.byExpiry[i].KeyID < s.byExpiry[j].KeyID
	})
	return s
}

// Cache holds the keys of one purpose in memory. Lookups read an immutable
// snapshot and never block; Refresh replaces the snapshot in one pointer swap.
// Refresh itself is expected to be called by a single writer at a time.
type Cache struct {
	purpose string
	repo    repository.KeyRepository
	log     logger.Logger
	perf    *logger.PerformanceLogger
	metrics service.Metrics

	current atomic.Pointer[snapshot]

	// mu guards the sticky flags and the first-refresh channel.
	mu           sync.Mutex
	hasSeenKeys  bool
	refreshed    bool
	firstRefresh chan struct{}
}

// NewCache creates an empty cache for purpose backed by repo.
func NewCache(purpose string, repo repository.KeyRepository, log logger.Logger, metrics service.Metrics) *Cache {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	c := &Cache{
		purpose:      purpose,
		repo:         repo,
		log:          log.WithComponent("KeyCache"),
		perf:         logger.NewPerformanceLogger(log, 2*time.Second),
		metrics:      metrics,
		firstRefresh: make(chan struct{}),
	}
	c.current.Store(emptySnapshot)
	return c
}

// Refresh reloads every key of the purpose and atomically replaces the
// snapshot. It returns the latest expiry among the loaded keys. On a store
// failure the previous snapshot is kept and the error is returned.
func (c *Cache) Refresh(ctx context.Context) (models.LogicalTime, error) {
	done := c.perf.StartOperation(ctx, "keys.find_all")
	docs, err := c.repo.FindAll(ctx, c.purpose)
	done(logger.String("purpose", c.purpose), logger.Bool("ok", err == nil))
	if err != nil {
		return models.LogicalTime{}, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to load keys")
	}

	next := newSnapshot(docs)
	c.current.Store(next)

	c.mu.Lock()
	if len(next.byID) > 0 {
		c.hasSeenKeys = true
	}
	if !c.refreshed {
		c.refreshed = true
		close(c.firstRefresh)
	}
	seen := c.hasSeenKeys
	c.mu.Unlock()

	c.metrics.UpdateCacheState(c.purpose, len(next.byID), next.latestExpiry, seen)
	c.log.Debug(ctx, "key cache refreshed",
		logger.Int("keys", len(next.byID)),
		logger.String("latest_expiry", next.latestExpiry.String()),
	)
	return next.latestExpiry, nil
}

// FindForValidation returns the key with exactly keyID. The at time is not
// used to filter: an expired key still validates what it signed.
func (c *Cache) FindForValidation(keyID int64, at models.LogicalTime) (*models.KeyDocument, error) {
	doc, ok := c.current.Load().byID[keyID]
	if !ok {
		return nil, errors.KeyNotFound("no key with the requested id").
			WithMetadata("key_id", keyID).
			WithMetadata("purpose", c.purpose)
	}
	return doc.Clone(), nil
}

// FindForSigning returns the key expiring soonest among those still valid
// strictly after at.
func (c *Cache) FindForSigning(at models.LogicalTime) (*models.KeyDocument, error) {
	keys := c.current.Load().byExpiry
	i := sort.Search(len(keys), func(i int) bool { return keys[i].ExpiresAt.After(at) })
	if i == len(keys) {
		return nil, errors.KeyNotFound("no valid key for signing").
			WithMetadata("at", at.String()).
			WithMetadata("purpose", c.purpose)
	}
	return keys[i].Clone(), nil
}

// HasSeenKeys reports whether any refresh ever loaded at least one key.
func (c *Cache) HasSeenKeys() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasSeenKeys
}

// HasRefreshed reports whether any refresh has succeeded, even an empty one.
func (c *Cache) HasRefreshed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshed
}

// WaitForFirstRefresh blocks until a refresh has succeeded or ctx is done.
// A context that ends first yields a deadline_exceeded error.
func (c *Cache) WaitForFirstRefresh(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshed {
		c.mu.Unlock()
		return nil
	}
	ch := c.firstRefresh
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errors.DeadlineExceeded("timed out waiting for the first key refresh").WithCause(ctx.Err())
	}
}

// LatestExpiry returns the largest ExpiresAt in the current snapshot.
func (c *Cache) LatestExpiry() models.LogicalTime {
	return c.current.Load().latestExpiry
}

// MaxKeyID returns the largest key id in the current snapshot, 0 when empty.
func (c *Cache) MaxKeyID() int64 {
	return c.current.Load().maxKeyID
}

// Keys returns a material-free listing of the snapshot ordered by expiry.
func (c *Cache) Keys() []models.KeyInfo {
	snap := c.current.Load()
	out := make([]models.KeyInfo, 0, len(snap.byExpiry))
	for _, doc := range snap.byExpiry {
		out = append(out, doc.Info())
	}
	return out
}

// Purpose returns the purpose served by the cache.
func (c *Cache) Purpose() string { return c.purpose }
