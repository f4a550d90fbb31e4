package fakes

import (
	"context"
	"time"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/service"
)

// FakeEventPublisher records key events on a channel.
type FakeEventPublisher struct {
	ch chan models.KeyEvent
}

// NewFakeEventPublisher creates a new FakeEventPublisher with room for buf events.
func NewFakeEventPublisher(buf int) *FakeEventPublisher {
	return &FakeEventPublisher{ch: make(chan models.KeyEvent, buf)}
}

// Publish records the event. It drops the event when the buffer is full.
func (p *FakeEventPublisher) Publish(ctx context.Context, event *models.KeyEvent) error {
	select {
	case p.ch <- *event:
	default:
	}
	return nil
}

// DrainOne retrieves one event from the channel.
func (p *FakeEventPublisher) DrainOne(ctx context.Context, timeout time.Duration) (*models.KeyEvent, error) {
	select {
	case m := <-p.ch:
		return &m, nil
	case <-time.After(timeout):
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ service.KeyEventPublisher = (*FakeEventPublisher)(nil)
