package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type Event interface {
}

type Publisher[E Event] interface {
	PublishEvent(context.Context, *E) error
}

type Subscriber[E Event] interface {
	ConsumeEvent(*E) error
}

var (
	ErrChannelClosed = errors.New("pubsub: channel closed")
	ErrChannelFull   = errors.New("pubsub: channel full and no listener attached")
)

// SimplePublisher loops through each subscriber and calls ConsumeEvent on it,
// synchronously and in registration order. It is used for state update fan-out
// where the publisher's goroutine is already serialized.
type SimplePublisher[E Event] struct {
	mu          sync.Mutex
	subscribers []Subscriber[E]
}

func NewSimplePublisher[E Event](subscribers ...Subscriber[E]) *SimplePublisher[E] {
	return &SimplePublisher[E]{
		subscribers: subscribers,
	}
}

func (p *SimplePublisher[E]) PublishEvent(_ context.Context, e *E) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subscribers {
		err := s.ConsumeEvent(e)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *SimplePublisher[E]) AddSubscriber(s Subscriber[E]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, s)
}

// BoundedChannel is an ordered, single-consumer queue with a fixed capacity.
// Publishing blocks while the buffer is full, so events are never dropped or
// reordered once a consumer is attached. Without a consumer, events are buffered
// up to the capacity and further publishes fail fast with ErrChannelFull.
type BoundedChannel[E Event] struct {
	events    chan *E
	listening atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

func NewBoundedChannel[E Event](capacity int) *BoundedChannel[E] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedChannel[E]{
		events: make(chan *E, capacity),
		closed: make(chan struct{}),
	}
}

func (c *BoundedChannel[E]) PublishEvent(ctx context.Context, e *E) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	if !c.listening.Load() {
		select {
		case c.events <- e:
			return nil
		default:
			return ErrChannelFull
		}
	}
	select {
	case c.events <- e:
		return nil
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen delivers events to the subscriber in publish order until the channel is
// closed and drained, or ctx is cancelled. A subscriber error stops delivery.
func (c *BoundedChannel[E]) Listen(ctx context.Context, s Subscriber[E]) error {
	c.listening.Store(true)
	defer c.listening.Store(false)
	for {
		select {
		case e := <-c.events:
			if err := s.ConsumeEvent(e); err != nil {
				return err
			}
		case <-c.closed:
			// drain whatever was queued before close
			for {
				select {
				case e := <-c.events:
					if err := s.ConsumeEvent(e); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting events. Already queued events are still delivered.
func (c *BoundedChannel[E]) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}
