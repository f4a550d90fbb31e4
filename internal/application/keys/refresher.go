package keys

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

const tracerName = "github.com/turtacn/clusterkeys/internal/application/keys"

// Refresher runs the refresh cycle in the background: reload the cache,
// generate a key if allowed, then sleep for HowMuchSleepNeedFor.
type Refresher struct {
	cache     *Cache
	generator *Generator
	clock     service.ClusterClock
	interval  time.Duration
	metrics   service.Metrics
	log       logger.Logger
	tracer    trace.Tracer

	generatorEnabled atomic.Bool

	// cycleMu serializes whole cycles from the loop and RefreshNow.
	cycleMu sync.Mutex
	// cycleSeq counts cycles started, advanced under cycleMu.
	cycleSeq atomic.Uint64
	// refreshGroup lets concurrent RefreshNow callers share one cycle.
	refreshGroup singleflight.Group

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex

	stateMu      sync.RWMutex
	state        constants.RefresherState
	stopCh       chan struct{}
	doneCh       chan struct{}
	cancelLoop   context.CancelFunc
	rescheduleCh chan time.Duration
}

// NewRefresher creates a stopped refresher.
func NewRefresher(cache *Cache, generator *Generator, clock service.ClusterClock, interval time.Duration, metrics service.Metrics, log logger.Logger) *Refresher {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Refresher{
		cache:        cache,
		generator:    generator,
		clock:        clock,
		interval:     interval,
		metrics:      metrics,
		log:          log.WithComponent("KeyRefresher"),
		tracer:       otel.Tracer(tracerName),
		state:        constants.RefresherStopped,
		rescheduleCh: make(chan time.Duration, 1),
	}
}

// State returns the current lifecycle state.
func (r *Refresher) State() constants.RefresherState {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

func (r *Refresher) setState(s constants.RefresherState) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// EnableKeyGenerator flips the local generation flag. The flag is read once at
// the start of each cycle.
func (r *Refresher) EnableKeyGenerator(enable bool) {
	r.generatorEnabled.Store(enable)
}

// GeneratorEnabled reports the local generation flag.
func (r *Refresher) GeneratorEnabled() bool {
	return r.generatorEnabled.Load()
}

// Start runs one cycle synchronously and then launches the background loop.
// A failed first cycle does not fail Start; the loop retries shortly after.
// Values carried by ctx are kept for the loop, its cancellation is not.
func (r *Refresher) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if state := r.State(); state != constants.RefresherStopped {
		return errors.IllegalState("refresher already started").WithMetadata("state", string(state))
	}
	r.setState(constants.RefresherStarting)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	first := r.runCycle(loopCtx)
	if first.err != nil {
		r.log.Warn(ctx, "initial key refresh failed", logger.Err(first.err))
	}
	delay := first.delay

	select {
	case <-r.rescheduleCh:
	default:
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.cancelLoop = cancel
	go r.loop(loopCtx, r.stopCh, r.doneCh, delay)

	r.setState(constants.RefresherRunning)
	r.log.Info(ctx, "key refresher started", logger.Duration("next_refresh", delay))
	return nil
}

// Stop signals the loop, waits for it to exit and returns to Stopped.
// Stopping a stopped refresher is a no-op.
func (r *Refresher) Stop() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.State() != constants.RefresherRunning {
		return
	}
	r.setState(constants.RefresherStopping)

	close(r.stopCh)
	r.cancelLoop()
	<-r.doneCh

	r.stopCh, r.doneCh, r.cancelLoop = nil, nil, nil
	r.setState(constants.RefresherStopped)
	r.log.Info(context.Background(), "key refresher stopped")
}

// RefreshNow runs one cycle immediately and reschedules the loop from its
// result. It fails with illegal_state unless the refresher is running, and
// returns the cache refresh error if the reload failed.
//
// Concurrent callers share a cycle, but only one that started after they
// called, so a flag flipped just before RefreshNow is always observed. The
// shared cycle does not inherit any caller's cancellation; a caller whose ctx
// ends stops waiting and gets deadline_exceeded while the cycle completes.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	if state := r.State(); state != constants.RefresherRunning {
		return errors.IllegalState("refresher is not running").WithMetadata("state", string(state))
	}

	after := r.cycleSeq.Load()
	for {
		ch := r.refreshGroup.DoChan("cycle", func() (interface{}, error) {
			res := r.runCycle(context.WithoutCancel(ctx))
			r.reschedule(res.delay)
			return res, res.err
		})
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CodeDeadlineExceeded, "refresh abandoned before the cycle finished")
		case out := <-ch:
			res := out.Val.(cycleResult)
			if res.seq > after {
				return res.err
			}
			// Joined a cycle that was already running when we arrived.
		}
	}
}

// reschedule replaces any pending wakeup with delay.
func (r *Refresher) reschedule(delay time.Duration) {
	select {
	case <-r.rescheduleCh:
	default:
	}
	select {
	case r.rescheduleCh <- delay:
	default:
	}
}

func (r *Refresher) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}, delay time.Duration) {
	defer close(doneCh)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case next := <-r.rescheduleCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(next)
		case <-timer.C:
			timer.Reset(r.runCycle(ctx).delay)
		}
	}
}

// cycleResult is the outcome of one runCycle.
type cycleResult struct {
	delay time.Duration
	seq   uint64
	err   error
}

// runCycle performs refresh, optional generation and wakeup computation while
// holding cycleMu. The result carries the delay before the next cycle, the
// cycle's sequence number and the refresh error, if any. A failed generation
// does not fail the cycle but shortens the delay so it is retried soon.
func (r *Refresher) runCycle(ctx context.Context) cycleResult {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	seq := r.cycleSeq.Add(1)
	enabled := r.generatorEnabled.Load()
	purpose := r.cache.Purpose()

	ctx, span := r.tracer.Start(ctx, "keys.refresh_cycle", trace.WithAttributes(
		attribute.String("keys.purpose", purpose),
		attribute.Bool("keys.generator_enabled", enabled),
	))
	defer span.End()

	start := time.Now()
	latest, err := r.cache.Refresh(ctx)
	r.metrics.RecordRefresh(purpose, err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		r.log.Warn(ctx, "key cache refresh failed", logger.Err(err))
		r.metrics.RecordNextRefresh(purpose, constants.RefreshIntervalIfErrored)
		return cycleResult{delay: constants.RefreshIntervalIfErrored, seq: seq, err: err}
	}

	delay := time.Duration(0)
	if enabled {
		created, genErr := r.generator.MaybeGenerateKeys(ctx, r.clock.Now())
		if genErr != nil {
			span.RecordError(genErr)
			delay = constants.RefreshIntervalIfErrored
		}
		if created != nil {
			span.SetAttributes(attribute.Int64("keys.created_key_id", created.KeyID))
			latest, err = r.cache.Refresh(ctx)
			if err != nil {
				r.log.Warn(ctx, "key cache refresh after generation failed", logger.Err(err))
				delay = constants.RefreshIntervalIfErrored
			}
		}
	}

	if delay == 0 {
		delay = HowMuchSleepNeedFor(r.clock.Now(), latest, r.interval)
	}
	span.SetAttributes(attribute.String("keys.next_refresh", delay.String()))
	r.metrics.RecordNextRefresh(purpose, delay)
	return cycleResult{delay: delay, seq: seq}
}
