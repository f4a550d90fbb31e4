package keys

import (
	"sync"
	"time"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/service"
)

// VectorClock tracks the highest cluster time observed by this node. When a
// wall clock is attached, Now never lags behind the wall clock's seconds.
// Now is monotonic.
type VectorClock struct {
	mu     sync.Mutex
	latest models.LogicalTime
	wall   func() time.Time
}

var (
	_ service.ClusterClock        = (*VectorClock)(nil)
	_ service.ClusterTimeObserver = (*VectorClock)(nil)
)

// ClockOption configures a VectorClock.
type ClockOption func(*VectorClock)

// WithWallClock makes Now advance with now() at second granularity.
func WithWallClock(now func() time.Time) ClockOption {
	return func(c *VectorClock) { c.wall = now }
}

// NewVectorClock creates a clock starting at the zero time.
func NewVectorClock(opts ...ClockOption) *VectorClock {
	c := &VectorClock{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the current cluster time.
func (c *VectorClock) Now() models.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wall != nil {
		if secs := c.wall().Unix(); secs > 0 && secs <= int64(^uint32(0)) {
			c.latest = models.MaxLogicalTime(c.latest, models.NewLogicalTime(uint32(secs), 0))
		}
	}
	return c.latest
}

// Advance records an observed cluster time. Older times are ignored.
func (c *VectorClock) Advance(t models.LogicalTime) models.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = models.MaxLogicalTime(c.latest, t)
	return c.latest
}
