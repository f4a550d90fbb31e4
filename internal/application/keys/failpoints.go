package keys

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// SwitchName identifies one runtime behavior switch.
type SwitchName string

const (
	// SwitchDisableKeyGeneration is the process-wide generation kill switch.
	SwitchDisableKeyGeneration SwitchName = "disableKeyGeneration"
	// SwitchFailStoreWrites makes every key insert fail as store_unavailable.
	SwitchFailStoreWrites SwitchName = "failStoreWrites"
	// SwitchFailStoreReads makes every key read fail as store_unavailable.
	SwitchFailStoreReads SwitchName = "failStoreReads"
)

// switchState is active when pinned by configuration or while at least one
// scoped override is outstanding.
type switchState struct {
	pinned    atomic.Bool
	overrides atomic.Int32
}

func (s *switchState) active() bool {
	return s.pinned.Load() || s.overrides.Load() > 0
}

// Switches is the injectable GenerationPolicy. The zero value is not usable;
// build it with NewSwitches.
type Switches struct {
	states map[SwitchName]*switchState
}

var _ service.GenerationPolicy = (*Switches)(nil)

// NewSwitches returns a policy with every switch off.
func NewSwitches() *Switches {
	return &Switches{states: map[SwitchName]*switchState{
		SwitchDisableKeyGeneration: {},
		SwitchFailStoreWrites:      {},
		SwitchFailStoreReads:       {},
	}}
}

// Set pins a switch on or off. Scoped overrides still force it on.
func (s *Switches) Set(name SwitchName, on bool) error {
	st, ok := s.states[name]
	if !ok {
		return errors.InvalidArgument("unknown switch " + string(name))
	}
	st.pinned.Store(on)
	return nil
}

// Override turns a switch on until the returned restore func is called.
// Overrides nest, and calling restore more than once has no further effect.
//
//	restore := switches.Override(keys.SwitchDisableKeyGeneration)
//	defer restore()
func (s *Switches) Override(name SwitchName) (restore func()) {
	st, ok := s.states[name]
	if !ok {
		return func() {}
	}
	st.overrides.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { st.overrides.Add(-1) })
	}
}

// Active reports whether name is currently on.
func (s *Switches) Active(name SwitchName) bool {
	st, ok := s.states[name]
	return ok && st.active()
}

// Snapshot returns the state of every switch, for status endpoints.
func (s *Switches) Snapshot() map[string]bool {
	names := make([]string, 0, len(s.states))
	for name := range s.states {
		names = append(names, string(name))
	}
	sort.Strings(names)
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = s.states[SwitchName(name)].active()
	}
	return out
}

func (s *Switches) IsGenerationSuppressed() bool { return s.Active(SwitchDisableKeyGeneration) }
func (s *Switches) IsWriteBlocked() bool         { return s.Active(SwitchFailStoreWrites) }
func (s *Switches) IsReadBlocked() bool          { return s.Active(SwitchFailStoreReads) }

// guardedRepository applies the read and write switches of a policy in front
// of a real store.
type guardedRepository struct {
	next   repository.KeyRepository
	policy service.GenerationPolicy
}

// NewGuardedRepository wraps repo so blocked reads and writes fail with
// store_unavailable without reaching the store.
func NewGuardedRepository(repo repository.KeyRepository, policy service.GenerationPolicy) repository.KeyRepository {
	return &guardedRepository{next: repo, policy: policy}
}

func (g *guardedRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	if g.policy.IsReadBlocked() {
		return nil, errors.StoreUnavailable("key store reads are blocked")
	}
	return g.next.FindAll(ctx, purpose)
}

func (g *guardedRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	if g.policy.IsWriteBlocked() {
		return errors.StoreUnavailable("key store writes are blocked")
	}
	return g.next.Insert(ctx, doc)
}
