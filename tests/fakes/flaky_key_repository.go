package fakes

import (
	"context"
	"sync"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// FlakyKeyRepository wraps a KeyRepository and fails a configurable number of
// calls before delegating. It also counts calls.
type FlakyKeyRepository struct {
	next repository.KeyRepository

	mu          sync.Mutex
	failFinds   int
	failInserts int
	findCalls   int
	insertCalls int
}

// NewFlakyKeyRepository creates a new FlakyKeyRepository around next.
func NewFlakyKeyRepository(next repository.KeyRepository) *FlakyKeyRepository {
	return &FlakyKeyRepository{next: next}
}

// FailNextFinds makes the next n FindAll calls fail. A negative n fails forever.
func (f *FlakyKeyRepository) FailNextFinds(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFinds = n
}

// FailNextInserts makes the next n Insert calls fail. A negative n fails forever.
func (f *FlakyKeyRepository) FailNextInserts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failInserts = n
}

// FindAll delegates unless a failure is pending.
func (f *FlakyKeyRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	f.mu.Lock()
	f.findCalls++
	fail := consume(&f.failFinds)
	f.mu.Unlock()
	if fail {
		return nil, errors.StoreUnavailable("injected read failure")
	}
	return f.next.FindAll(ctx, purpose)
}

// Insert delegates unless a failure is pending.
func (f *FlakyKeyRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	f.mu.Lock()
	f.insertCalls++
	fail := consume(&f.failInserts)
	f.mu.Unlock()
	if fail {
		return errors.StoreUnavailable("injected write failure")
	}
	return f.next.Insert(ctx, doc)
}

// Calls returns the number of FindAll and Insert calls seen.
func (f *FlakyKeyRepository) Calls() (finds, inserts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls, f.insertCalls
}

func consume(pending *int) bool {
	switch {
	case *pending < 0:
		return true
	case *pending > 0:
		*pending--
		return true
	default:
		return false
	}
}

var _ repository.KeyRepository = (*FlakyKeyRepository)(nil)
