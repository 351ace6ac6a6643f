package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/event"
	"github.com/kros-robotics/kros/message"
)

// testSubscriber is a minimal Subscriber recording every message handed
// to Consume, filtering by a fixed accepted-event set.
type testSubscriber struct {
	component.Base
	name     string
	accept   map[int]bool
	cleanup  bool
	mu       sync.Mutex
	consumed []*message.Message
}

func newTestSubscriber(name string, cleanup bool, accept ...event.Event) *testSubscriber {
	s := &testSubscriber{name: name, accept: make(map[int]bool), cleanup: cleanup}
	for _, e := range accept {
		s.accept[e.ID] = true
	}
	s.Base = component.NewBase(name, nil, true, false)
	return s
}

func (s *testSubscriber) Name() string                    { return s.name }
func (s *testSubscriber) Start(ctx context.Context)        {}
func (s *testSubscriber) IsCleanup() bool                  { return s.cleanup }
func (s *testSubscriber) Accepts(e event.Event) bool       { return s.accept[e.ID] }
func (s *testSubscriber) Consume(ctx context.Context, m *message.Message) error {
	s.mu.Lock()
	s.consumed = append(s.consumed, m)
	s.mu.Unlock()
	m.Ack(s.name)
	return nil
}

func (s *testSubscriber) seenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consumed)
}

var _ Subscriber = (*testSubscriber)(nil)

func TestConsumeLoopDeliversToInterestedSubscriberExactlyOnce(t *testing.T) {
	b := New(Config{MaxAgeMs: 60_000, PublishDelaySec: 0}, nil)
	bumperSub := newTestSubscriber("bumper-port-sub", false, event.BUMPER_PORT)
	infraredSub := newTestSubscriber("infrared-cntr-sub", false, event.INFRARED_CNTR)
	cleanup := newTestSubscriber("cleanup", true)

	b.RegisterSubscriber(bumperSub)
	b.RegisterSubscriber(infraredSub)
	b.RegisterSubscriber(cleanup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))
	defer b.Stop(context.Background())

	b.Publish(ctx, message.New(event.BUMPER_PORT, message.Value{}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && bumperSub.seenCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 1, bumperSub.seenCount(), "S2: the subscriber interested in BUMPER_PORT sees it exactly once")
	assert.Zero(t, infraredSub.seenCount(), "S2: the subscriber interested only in INFRARED_CNTR never sees it")

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && b.QueueSize() != 0 {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 0, b.QueueSize(), "S2: the message is eventually sunk, not left circulating forever")
}

func TestUninterestedSubscriberRepublishesSoInterestedSubscriberStillSeesIt(t *testing.T) {
	// S6: an uninterested subscriber registered ahead of the interested
	// one must not swallow the message; it republishes, and the
	// interested subscriber still processes it exactly once.
	b := New(Config{MaxAgeMs: 60_000, PublishDelaySec: 0}, nil)
	uninterested := newTestSubscriber("uninterested", false, event.INFRARED_CNTR)
	interested := newTestSubscriber("interested", false, event.BUMPER_PORT)
	cleanup := newTestSubscriber("cleanup", true)

	b.RegisterSubscriber(uninterested)
	b.RegisterSubscriber(interested)
	b.RegisterSubscriber(cleanup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))
	defer b.Stop(context.Background())

	b.Publish(ctx, message.New(event.BUMPER_PORT, message.Value{}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && interested.seenCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 1, interested.seenCount(), "the interested subscriber processes the message exactly once")
	assert.Zero(t, uninterested.seenCount(), "the uninterested subscriber's Consume is never called")
}

func TestGetAllTasksIsEmptyAfterShutdownAndHidesUnderscorePrefixed(t *testing.T) {
	b := New(DefaultConfig(), nil)
	ctx := context.Background()
	require.NoError(t, b.Start(ctx))

	untrack := b.trackTask("__hidden-forever")
	defer untrack()

	require.NoError(t, b.Shutdown(context.Background(), time.Second))

	assert.Empty(t, b.GetAllTasks(), "invariant 12: after shutdown, GetAllTasks is empty, ignoring hidden tasks")
}
