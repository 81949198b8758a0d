package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestEvent struct {
	contents string
}

type TestSubscriber struct {
	consumedEvents []*TestEvent
}

func (s *TestSubscriber) ConsumeEvent(e *TestEvent) error {
	if e == nil {
		return errors.New("No nil events allowed")
	}
	s.consumedEvents = append(s.consumedEvents, e)
	return nil
}

func TestSimplePublisher(t *testing.T) {
	subscriber1 := &TestSubscriber{
		consumedEvents: make([]*TestEvent, 0),
	}
	subscriber2 := &TestSubscriber{
		consumedEvents: make([]*TestEvent, 0),
	}

	sp := NewSimplePublisher[TestEvent](subscriber1)
	sp.AddSubscriber(subscriber2)

	err := sp.PublishEvent(context.Background(), &TestEvent{contents: "test"})
	assert.Nil(t, err)

	assert.Equal(t, len(subscriber1.consumedEvents), 1)
	assert.Equal(t, len(subscriber2.consumedEvents), 1)

	err = sp.PublishEvent(context.Background(), nil)
	assert.NotNil(t, err)
}

func TestBoundedChannelOrdering(t *testing.T) {
	ch := NewBoundedChannel[TestEvent](2)
	sub := &TestSubscriber{}

	done := make(chan error, 1)
	go func() {
		done <- ch.Listen(context.Background(), sub)
	}()
	require.Eventually(t, ch.listening.Load, time.Second, time.Millisecond)

	for _, c := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, ch.PublishEvent(context.Background(), &TestEvent{contents: c}))
	}
	ch.Close()
	require.NoError(t, <-done)

	got := make([]string, 0, len(sub.consumedEvents))
	for _, e := range sub.consumedEvents {
		got = append(got, e.contents)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

// gatedSubscriber signals each event it takes, then waits for release.
type gatedSubscriber struct {
	taken   chan string
	release chan struct{}
}

func (s *gatedSubscriber) ConsumeEvent(e *TestEvent) error {
	s.taken <- e.contents
	<-s.release
	return nil
}

func TestBoundedChannelBlocksWhenFull(t *testing.T) {
	ch := NewBoundedChannel[TestEvent](1)
	sub := &gatedSubscriber{taken: make(chan string, 4), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		done <- ch.Listen(context.Background(), sub)
	}()

	require.NoError(t, ch.PublishEvent(context.Background(), &TestEvent{contents: "a"}))
	assert.Equal(t, "a", <-sub.taken)
	require.NoError(t, ch.PublishEvent(context.Background(), &TestEvent{contents: "b"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ch.PublishEvent(ctx, &TestEvent{contents: "c"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(sub.release)
	ch.Close()
	require.NoError(t, <-done)
	assert.Equal(t, "b", <-sub.taken)
}

func TestBoundedChannelWithoutListener(t *testing.T) {
	ch := NewBoundedChannel[TestEvent](2)
	require.NoError(t, ch.PublishEvent(context.Background(), &TestEvent{contents: "a"}))
	require.NoError(t, ch.PublishEvent(context.Background(), &TestEvent{contents: "b"}))

	// A full buffer with nobody listening fails at once instead of blocking.
	err := ch.PublishEvent(context.Background(), &TestEvent{contents: "c"})
	assert.ErrorIs(t, err, ErrChannelFull)

	// Buffered events are still delivered to a late listener.
	sub := &TestSubscriber{}
	ch.Close()
	require.NoError(t, ch.Listen(context.Background(), sub))
	require.Len(t, sub.consumedEvents, 2)
	assert.Equal(t, "a", sub.consumedEvents[0].contents)
	assert.Equal(t, "b", sub.consumedEvents[1].contents)
}

func TestBoundedChannelClosed(t *testing.T) {
	ch := NewBoundedChannel[TestEvent](1)
	ch.Close()
	ch.Close()
	err := ch.PublishEvent(context.Background(), &TestEvent{contents: "a"})
	assert.ErrorIs(t, err, ErrChannelClosed)
}
