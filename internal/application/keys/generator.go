package keys

import (
	"context"
	"time"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// Generation outcomes reported to metrics.
const (
	outcomeCreated    = "created"
	outcomeSkipped    = "skipped"
	outcomeSuppressed = "suppressed"
	outcomeFailed     = "failed"
)

// Generator creates a new key when the cached keys do not cover the next
// rotation interval.
type Generator struct {
	purpose   string
	interval  time.Duration
	nodeID    string
	cache     *Cache
	repo      repository.KeyRepository
	source    service.KeyMaterialSource
	policy    service.GenerationPolicy
	publisher service.KeyEventPublisher
	metrics   service.Metrics
	log       logger.Logger
}

// NewGenerator wires a generator. The cache must be backed by the same store as repo.
func NewGenerator(
	cache *Cache,
	repo repository.KeyRepository,
	source service.KeyMaterialSource,
	policy service.GenerationPolicy,
	publisher service.KeyEventPublisher,
	interval time.Duration,
	nodeID string,
	metrics service.Metrics,
	log logger.Logger,
) *Generator {
	if publisher == nil {
		publisher = service.NoopKeyEventPublisher{}
	}
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Generator{
		purpose:   cache.Purpose(),
		interval:  interval,
		nodeID:    nodeID,
		cache:     cache,
		repo:      repo,
		source:    source,
		policy:    policy,
		publisher: publisher,
		metrics:   metrics,
		log:       log.WithComponent("KeyGenerator"),
	}
}

// ExpiryHorizon is the expiry a key generated at now receives: now moved
// forward by whole seconds of interval, increment unchanged.
func ExpiryHorizon(now models.LogicalTime, interval time.Duration) models.LogicalTime {
	return now.Add(interval)
}

// MaybeGenerateKeys inserts one new key if the latest cached expiry is before
// now plus the rotation interval. It returns the inserted key, or nil when no
// key was needed or generation is suppressed.
//
// Parameters:
//   - ctx: bounds the key-material and store calls.
//   - now: the current cluster time.
//
// Returns:
//   - the created key, nil when nothing was created.
//   - a store_unavailable or duplicate_key error when the insert failed. The
//     caller should retry on its next cycle.
func (g *Generator) MaybeGenerateKeys(ctx context.Context, now models.LogicalTime) (*models.KeyDocument, error) {
	if g.policy != nil && g.policy.IsGenerationSuppressed() {
		g.metrics.RecordGeneration(g.purpose, outcomeSuppressed)
		g.log.Debug(ctx, "key generation suppressed")
		return nil, nil
	}

	horizon := ExpiryHorizon(now, g.interval)
	if !g.cache.LatestExpiry().Before(horizon) {
		g.metrics.RecordGeneration(g.purpose, outcomeSkipped)
		return nil, nil
	}

	secret, err := g.source.GenerateSecret(ctx)
	if err != nil {
		return nil, g.fail(ctx, errors.Wrap(err, errors.CodeInternal, "failed to generate key material"), horizon)
	}

	doc := models.NewKeyDocument(g.cache.MaxKeyID()+1, g.purpose, secret, horizon)
	if err := g.repo.Insert(ctx, doc); err != nil {
		if !errors.IsDuplicateKey(err) {
			err = errors.Wrap(err, errors.CodeStoreUnavailable, "failed to insert key")
		}
		return nil, g.fail(ctx, err, horizon)
	}

	g.metrics.RecordGeneration(g.purpose, outcomeCreated)
	g.log.Info(ctx, "generated new cluster key",
		logger.Int64("key_id", doc.KeyID),
		logger.String("expires_at", doc.ExpiresAt.String()),
	)
	g.publish(ctx, models.NewKeyEvent(constants.KeyEventGenerated, g.purpose, "success", "").
		WithKey(doc.KeyID, doc.ExpiresAt))
	return doc, nil
}

func (g *Generator) fail(ctx context.Context, err error, horizon models.LogicalTime) error {
	g.metrics.RecordGeneration(g.purpose, outcomeFailed)
	g.log.Warn(ctx, "key generation failed, will retry next cycle",
		logger.Err(err),
		logger.String("horizon", horizon.String()),
	)
	g.publish(ctx, models.NewKeyEvent(constants.KeyEventGenerationFailed, g.purpose, "failure", err.Error()).
		WithKey(g.cache.MaxKeyID()+1, horizon))
	return err
}

func (g *Generator) publish(ctx context.Context, event *models.KeyEvent) {
	event.WithNode(g.nodeID)
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.log.Error(ctx, "failed to publish key event", err, logger.String("event_type", string(event.EventType)))
	}
}
