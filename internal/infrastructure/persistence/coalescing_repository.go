// Package persistence holds store decorators shared by every key store backend.
package persistence

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/internal/infrastructure/monitoring"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// CoalescingRepository collapses concurrent FindAll calls for the same purpose
// into one store round trip. Inserts pass straight through.
//
// The shared read is detached from the caller that started it and bounded by
// timeout instead, so one caller giving up never fails the others.
type CoalescingRepository struct {
	next    repository.KeyRepository
	timeout time.Duration
	sf      singleflight.Group
}

var _ repository.KeyRepository = (*CoalescingRepository)(nil)

// NewCoalescingRepository wraps next. A timeout <= 0 means DefaultStoreTimeout.
func NewCoalescingRepository(next repository.KeyRepository, timeout time.Duration) *CoalescingRepository {
	if timeout <= 0 {
		timeout = constants.DefaultStoreTimeout
	}
	return &CoalescingRepository{next: next, timeout: timeout}
}

// FindAll shares one in-flight read per purpose. Each caller waits on its own
// ctx and gets its own copies.
func (r *CoalescingRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	ch := r.sf.DoChan(purpose, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.next.FindAll(shared, purpose)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.CodeStoreUnavailable, "key store read abandoned").
			WithMetadata("purpose", purpose)
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	shared := res.Val.([]*models.KeyDocument)
	docs := make([]*models.KeyDocument, len(shared))
	for i, doc := range shared {
		docs[i] = doc.Clone()
	}
	return docs, nil
}

// Insert delegates to the wrapped store.
func (r *CoalescingRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	return r.next.Insert(ctx, doc)
}

// Ping delegates when the wrapped store supports it.
func (r *CoalescingRepository) Ping(ctx context.Context) error {
	return ping(ctx, r.next)
}

// InstrumentedRepository reports every store call to Metrics and wraps it in
// a client span.
type InstrumentedRepository struct {
	next    repository.KeyRepository
	backend string
	metrics service.Metrics
}

var _ repository.KeyRepository = (*InstrumentedRepository)(nil)

// NewInstrumentedRepository wraps next, labelling observations with backend.
func NewInstrumentedRepository(next repository.KeyRepository, backend string, metrics service.Metrics) *InstrumentedRepository {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	return &InstrumentedRepository{next: next, backend: backend, metrics: metrics}
}

func (r *InstrumentedRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	var docs []*models.KeyDocument
	start := time.Now()
	err := monitoring.TraceStoreCall(ctx, r.backend, "find_all", func(ctx context.Context) error {
		var err error
		docs, err = r.next.FindAll(ctx, purpose)
		return err
	})
	r.metrics.RecordStoreCall(r.backend, "find_all", time.Since(start), err)
	return docs, err
}

func (r *InstrumentedRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	start := time.Now()
	err := monitoring.TraceStoreCall(ctx, r.backend, "insert", func(ctx context.Context) error {
		return r.next.Insert(ctx, doc)
	})
	r.metrics.RecordStoreCall(r.backend, "insert", time.Since(start), err)
	return err
}

func (r *InstrumentedRepository) Ping(ctx context.Context) error {
	return ping(ctx, r.next)
}

func ping(ctx context.Context, repo repository.KeyRepository) error {
	if hc, ok := repo.(repository.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}
