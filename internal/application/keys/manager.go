// Package keys maintains the cluster time signing keys of one purpose: an
// in-memory cache refreshed from a shared store, a generator that creates keys
// ahead of expiry, and the background refresher that drives both.
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

// Lookup kinds reported to metrics.
const (
	lookupValidation = "validation"
	lookupSigning    = "signing"
)

// ManagerConfig holds the settings fixed at construction.
type ManagerConfig struct {
	// Purpose of the managed keys.
	Purpose string
	// RotationInterval is how far ahead keys are generated and bounds the refresh cadence.
	RotationInterval time.Duration
	// ValidationWaitTimeout bounds GetKeyForValidation when the caller's context has no deadline.
	ValidationWaitTimeout time.Duration
	// NodeID is recorded on audit events.
	NodeID string
}

// Validate checks the configuration and fills defaults.
func (c *ManagerConfig) Validate() error {
	if c.Purpose == "" {
		return errors.InvalidArgument("purpose is required")
	}
	if c.RotationInterval < constants.MinRotationInterval {
		return errors.InvalidArgument("rotation interval must be at least one second").
			WithMetadata("rotation_interval", c.RotationInterval.String())
	}
	if c.ValidationWaitTimeout <= 0 {
		c.ValidationWaitTimeout = constants.DefaultValidationWaitTimeout
	}
	return nil
}

type managerOptions struct {
	log       logger.Logger
	metrics   service.Metrics
	policy    service.GenerationPolicy
	publisher service.KeyEventPublisher
}

// Option customizes a Manager.
type Option func(*managerOptions)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *managerOptions) { o.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m service.Metrics) Option {
	return func(o *managerOptions) { o.metrics = m }
}

// WithPolicy sets the generation policy. The default is a fresh Switches.
func WithPolicy(p service.GenerationPolicy) Option {
	return func(o *managerOptions) { o.policy = p }
}

// WithEventPublisher sets where key lifecycle events are sent.
func WithEventPublisher(p service.KeyEventPublisher) Option {
	return func(o *managerOptions) { o.publisher = p }
}

// Manager is the public surface of the package.
// Manager 是集群密钥管理的公共入口。
type Manager struct {
	cfg       ManagerConfig
	cache     *Cache
	generator *Generator
	refresher *Refresher
	observer  service.ClusterTimeObserver
	policy    service.GenerationPolicy
	metrics   service.Metrics
	log       logger.Logger
}

// NewManager wires the cache, generator and refresher around repo.
// The policy's read and write switches are applied to every store call.
func NewManager(
	cfg ManagerConfig,
	repo repository.KeyRepository,
	source service.KeyMaterialSource,
	clock service.ClusterClock,
	opts ...Option,
) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if repo == nil || source == nil || clock == nil {
		return nil, errors.InvalidArgument("repository, key source and clock are required")
	}

	o := &managerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.NewNoopLogger()
	}
	if o.metrics == nil {
		o.metrics = service.NoopMetrics{}
	}
	if o.policy == nil {
		o.policy = NewSwitches()
	}
	log := o.log.WithFields(logger.String("purpose", cfg.Purpose))

	guarded := NewGuardedRepository(repo, o.policy)
	cache := NewCache(cfg.Purpose, guarded, log, o.metrics)
	generator := NewGenerator(cache, guarded, source, o.policy, o.publisher, cfg.RotationInterval, cfg.NodeID, o.metrics, log)
	refresher := NewRefresher(cache, generator, clock, cfg.RotationInterval, o.metrics, log)
	observer, _ := clock.(service.ClusterTimeObserver)

	return &Manager{
		cfg:       cfg,
		cache:     cache,
		generator: generator,
		refresher: refresher,
		observer:  observer,
		policy:    o.policy,
		metrics:   o.metrics,
		log:       log.WithComponent("KeyManager"),
	}, nil
}

// StartMonitoring starts the refresher; one cycle has completed on return.
func (m *Manager) StartMonitoring(ctx context.Context) error {
	return m.refresher.Start(ctx)
}

// StopMonitoring stops the refresher and waits for its loop to exit.
func (m *Manager) StopMonitoring() {
	m.refresher.Stop()
}

// RefreshNow runs one cycle synchronously. The refresher must be running.
func (m *Manager) RefreshNow(ctx context.Context) error {
	return m.refresher.RefreshNow(ctx)
}

// EnableKeyGenerator allows or forbids this node to generate keys, starting
// with the next cycle.
func (m *Manager) EnableKeyGenerator(enable bool) {
	m.refresher.EnableKeyGenerator(enable)
	m.log.Info(context.Background(), "key generator toggled", logger.Bool("enabled", enable))
}

// GetKeyForValidation returns the key with keyID. Until the first successful
// refresh it waits until the context deadline, or the configured validation
// wait timeout when ctx has none, and fails with deadline_exceeded if no
// refresh happens by then. Cancelling ctx does not end the wait early.
// After that it never waits: an absent id fails with key_not_found.
//
// When the clock observes traffic, at is recorded as observed cluster time
// if the returned key was still valid at at, that is, it could have signed it.
func (m *Manager) GetKeyForValidation(ctx context.Context, keyID int64, at models.LogicalTime) (*models.KeyDocument, error) {
	if !m.cache.HasRefreshed() {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(m.cfg.ValidationWaitTimeout)
		}
		waitCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
		defer cancel()
		if err := m.cache.WaitForFirstRefresh(waitCtx); err != nil {
			m.log.Warn(ctx, "validation lookup gave up waiting for first refresh", logger.Int64("key_id", keyID))
			return nil, err
		}
	}

	doc, err := m.cache.FindForValidation(keyID, at)
	m.metrics.RecordLookup(m.cfg.Purpose, lookupValidation, err == nil)
	if err == nil && m.observer != nil && doc.IsValidAt(at) {
		m.observer.Advance(at)
	}
	return doc, err
}

// GetKeyForSigning returns the current signing key at time at without blocking.
func (m *Manager) GetKeyForSigning(ctx context.Context, at models.LogicalTime) (*models.KeyDocument, error) {
	doc, err := m.cache.FindForSigning(at)
	m.metrics.RecordLookup(m.cfg.Purpose, lookupSigning, err == nil)
	return doc, err
}

// HasSeenKeys reports whether any refresh ever loaded a key.
func (m *Manager) HasSeenKeys() bool {
	return m.cache.HasSeenKeys()
}

// Status is a point-in-time summary for health and admin endpoints.
type Status struct {
	Purpose          string             `json:"purpose"`
	State            string             `json:"state"`
	Refreshed        bool               `json:"refreshed"`
	HasSeenKeys      bool               `json:"has_seen_keys"`
	GeneratorEnabled bool               `json:"generator_enabled"`
	LatestExpiry     models.LogicalTime `json:"latest_expiry"`
	RotationInterval string             `json:"rotation_interval"`
	Keys             []models.KeyInfo   `json:"keys"`
	Switches         map[string]bool    `json:"switches,omitempty"`
}

// Status returns the current state of the manager.
func (m *Manager) Status() Status {
	st := Status{
		Purpose:          m.cfg.Purpose,
		State:            string(m.refresher.State()),
		Refreshed:        m.cache.HasRefreshed(),
		HasSeenKeys:      m.cache.HasSeenKeys(),
		GeneratorEnabled: m.refresher.GeneratorEnabled(),
		LatestExpiry:     m.cache.LatestExpiry(),
		RotationInterval: m.cfg.RotationInterval.String(),
		Keys:             m.cache.Keys(),
	}
	if sw, ok := m.policy.(*Switches); ok {
		st.Switches = sw.Snapshot()
	}
	return st
}

// Ready reports whether lookups are served from a loaded snapshot.
func (m *Manager) Ready() bool {
	return m.cache.HasRefreshed()
}

// Policy returns the generation policy in use.
func (m *Manager) Policy() service.GenerationPolicy {
	return m.policy
}
