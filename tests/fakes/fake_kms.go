package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/turtacn/clusterkeys/internal/domain/service"
)

// FakeKeySource is a deterministic KeyMaterialSource for tests. Each secret is
// "secret-<n>" where n counts calls, unless an error is injected.
type FakeKeySource struct {
	mu    sync.Mutex
	calls int
	err   error
}

// NewFakeKeySource creates a new FakeKeySource.
func NewFakeKeySource() *FakeKeySource {
	return &FakeKeySource{}
}

// GenerateSecret returns the next deterministic secret.
func (f *FakeKeySource) GenerateSecret(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	return []byte(fmt.Sprintf("secret-%d", f.calls)), nil
}

// FailWith makes subsequent calls return err. Pass nil to recover.
func (f *FakeKeySource) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many secrets were handed out.
func (f *FakeKeySource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ service.KeyMaterialSource = (*FakeKeySource)(nil)
