// Package bus implements the message bus: the single consume loop that
// owns the peekable queue, the publisher and subscriber registries, and
// drives payloads into the arbitrator.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kros-robotics/kros/arbitrate"
	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/event"
	"github.com/kros-robotics/kros/internal/kerrors"
	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/message"
	"github.com/kros-robotics/kros/queue"
)

// Publisher is anything the bus enables and starts before entering its
// consume loop.
type Publisher interface {
	component.Lifecycle
	Name() string
	Start(ctx context.Context)
}

// Subscriber consumes one message per call to Consume. A subscriber
// that is interested in an event must call msg.Ack(s.Name()) before
// returning a nil error; the bus treats a Consume that returns without
// acking as a routing error (kerrors.ErrRouting) and does not republish
// the message.
type Subscriber interface {
	component.Lifecycle
	Name() string
	Start(ctx context.Context)
	Accepts(e event.Event) bool
	Consume(ctx context.Context, m *message.Message) error
	IsCleanup() bool
}

// Config holds the message_bus YAML section.
type Config struct {
	MaxAgeMs        int64
	PublishDelaySec float64
	ClipEventList   bool
	ClipLength      int
}

// DefaultConfig returns the nominal values referenced by the
// specification (max_age_ms, publish_delay_sec ~10ms).
func DefaultConfig() Config {
	return Config{MaxAgeMs: 60_000, PublishDelaySec: 0.010, ClipEventList: true, ClipLength: 64}
}

// Bus is the message bus component. It owns exactly one PeekableQueue,
// the publisher and subscriber lists in registration order, and an
// arbitrator used to hand off motion-related payloads.
type Bus struct {
	component.Base

	cfg        Config
	log        logging.Logger
	queue      *queue.PeekableQueue
	arbitrator *arbitrate.Arbitrator

	mu          sync.Mutex
	publishers  []Publisher
	subscribers []Subscriber
	lastMsgAt   time.Time

	startCallbacks []func()

	recent *lru.Cache // bounded recent-event ring (clip_event_list/clip_length)

	tasksMu sync.Mutex
	tasks   map[string]struct{}

	cancelConsume context.CancelFunc
	consumeDone   chan struct{}

	verbose bool
}

// New constructs a Bus. It starts disabled and unsuppressed, matching
// the original MessageBus component defaults.
func New(cfg Config, log logging.Logger) *Bus {
	if log == nil {
		log = logging.Nop{}
	}
	b := &Bus{
		cfg:        cfg,
		log:        log,
		queue:      queue.New(),
		arbitrator: arbitrate.New(log),
		tasks:      make(map[string]struct{}),
	}
	b.Base = component.NewBase("MessageBus", log, false, false)
	if cfg.ClipEventList {
		size := cfg.ClipLength
		if size <= 0 {
			size = 64
		}
		c, _ := lru.New(size)
		b.recent = c
	}
	return b
}

// Arbitrator returns the bus's arbitrator, so controllers can register
// with it directly.
func (b *Bus) Arbitrator() *arbitrate.Arbitrator { return b.arbitrator }

// AddCallbackOnStart registers fn to run synchronously each time Start
// moves the bus from disabled to enabled.
func (b *Bus) AddCallbackOnStart(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startCallbacks = append(b.startCallbacks, fn)
}

// RegisterPublisher appends p to the publisher list in call order.
func (b *Bus) RegisterPublisher(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishers = append(b.publishers, p)
}

// RegisterSubscriber appends s to the subscriber list in call order.
// Delivery order within the consume loop follows this registration
// order.
func (b *Bus) RegisterSubscriber(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

func (b *Bus) snapshotRegistrations() ([]Publisher, []Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pubs := make([]Publisher, len(b.publishers))
	copy(pubs, b.publishers)
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	return pubs, subs
}

func (b *Bus) trackTask(name string) func() {
	b.tasksMu.Lock()
	b.tasks[name] = struct{}{}
	b.tasksMu.Unlock()
	return func() {
		b.tasksMu.Lock()
		delete(b.tasks, name)
		b.tasksMu.Unlock()
	}
}

// GetAllTasks returns the names of currently tracked background tasks,
// excluding hidden ones (those prefixed "__").
func (b *Bus) GetAllTasks() []string {
	b.tasksMu.Lock()
	defer b.tasksMu.Unlock()
	out := make([]string, 0, len(b.tasks))
	for name := range b.tasks {
		if len(name) >= 2 && name[:2] == "__" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// LastMessageTimestamp returns when Publish last ran.
func (b *Bus) LastMessageTimestamp() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastMsgAt
}

// SetVerbose records a verbosity toggle on the bus and passes it to the
// arbitrator. Registered publishers, subscribers and the arbitrator's
// controllers are not notified of it.
func (b *Bus) SetVerbose(v bool) {
	b.mu.Lock()
	b.verbose = v
	b.mu.Unlock()
	b.arbitrator.SetVerbose(v)
}

// Publish enqueues m, stamps the last-message timestamp, records it in
// the recent-event ring, and yields for PublishDelaySec to give the
// consume loop a chance to run, matching the original's publish()
// contract.
func (b *Bus) Publish(ctx context.Context, m *message.Message) {
	b.queue.Put(m)
	b.mu.Lock()
	b.lastMsgAt = time.Now()
	b.mu.Unlock()
	if b.recent != nil {
		b.recent.Add(m.ID, m.Payload.Event.Name)
	}
	delay := time.Duration(b.cfg.PublishDelaySec * float64(time.Second))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// Republish re-enqueues m without the publish delay.
func (b *Bus) Republish(m *message.Message) {
	b.queue.Put(m)
}

// RecentEvents returns the event names currently held in the bounded
// recent-event ring, most-recently-added last.
func (b *Bus) RecentEvents() []string {
	if b.recent == nil {
		return nil
	}
	keys := b.recent.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := b.recent.Get(k); ok {
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// Start enables the bus: it runs start-callbacks, starts and enables
// every registered publisher, starts every registered subscriber
// (subscribers are not enabled here), then launches the
// consume loop in a background goroutine. Idempotent: calling Start
// while already enabled has no additional effect, matching the
// teacher's EventBus.Start(ctx) contract.
func (b *Bus) Start(ctx context.Context) error {
	if b.Base.Enabled() {
		return nil
	}
	b.Base.Enable()

	b.mu.Lock()
	for _, cb := range b.startCallbacks {
		cb()
	}
	b.mu.Unlock()

	pubs, subs := b.snapshotRegistrations()
	for _, p := range pubs {
		p.Start(ctx)
		if !p.Enabled() {
			p.Enable()
		}
	}
	for _, s := range subs {
		s.Start(ctx)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	b.cancelConsume = cancel
	b.consumeDone = make(chan struct{})
	go b.consumeLoop(consumeCtx)
	return nil
}

// consumeLoop is the bus's single event loop: for each subscriber in
// registration order, await one consume step, dispatching per the rules
// in spec §4.4.
func (b *Bus) consumeLoop(ctx context.Context) {
	defer close(b.consumeDone)
	done := b.trackTask("consume-loop")
	defer done()

	for b.Base.Enabled() {
		_, subs := b.snapshotRegistrations()
		if len(subs) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		for _, s := range subs {
			if err := b.consumeStep(ctx, s); err != nil {
				if ctx.Err() != nil {
					return
				}
				b.log.Error("consume step failed", "subscriber", s.Name(), "error", err)
			}
		}
	}
}

func (b *Bus) consumeStep(ctx context.Context, s Subscriber) error {
	m, err := b.queue.Get(ctx)
	if err != nil {
		return err
	}
	defer b.queue.Done()

	if m.IsExpired(b.cfg.MaxAgeMs) {
		return nil
	}

	if s.IsCleanup() {
		if m.FullyAcked(b.interestedNames(m.Event())) {
			return nil
		}
		b.Republish(m)
		return nil
	}

	if s.Accepts(m.Event()) {
		if m.Acked(s.Name()) {
			// already processed by this subscriber on an earlier pass
			b.Republish(m)
			return nil
		}
		if err := s.Consume(ctx, m); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		if !m.Acked(s.Name()) {
			return fmt.Errorf("%w: subscriber %s consumed without acking", kerrors.ErrRouting, s.Name())
		}
		return nil
	}

	m.Ack(s.Name())
	b.Republish(m)
	return nil
}

// interestedNames returns the names of every non-cleanup subscriber
// that Accepts(e), used to decide when the cleanup subscriber may sink
// a message.
func (b *Bus) interestedNames(e event.Event) []string {
	_, subs := b.snapshotRegistrations()
	names := make([]string, 0, len(subs))
	for _, s := range subs {
		if s.IsCleanup() {
			continue
		}
		if s.Accepts(e) {
			names = append(names, s.Name())
		}
	}
	return names
}

// Arbitrate hands payload to the bus's arbitrator.
func (b *Bus) Arbitrate(payload message.Payload) {
	b.arbitrator.Arbitrate(payload)
}

// Stop stops the consume loop, disables all registered publishers and
// then subscribers, and finally clears the queue, matching the
// teacher's EventBus.Stop(ctx) contract.
func (b *Bus) Stop(ctx context.Context) error {
	if !b.Base.Enabled() {
		return nil
	}
	b.Base.Disable()
	if b.cancelConsume != nil {
		b.cancelConsume()
		<-b.consumeDone
	}
	pubs, subs := b.snapshotRegistrations()
	for _, p := range pubs {
		p.Disable()
	}
	for _, s := range subs {
		s.Disable()
	}
	b.queue.Clear()
	return nil
}

// Shutdown gracefully disables the bus, waiting up to timeout for the
// consume loop to finish, per the original's signal-driven shutdown
// path. It returns ErrBusShutdownTimeout if the consume loop does not
// stop in time.
func (b *Bus) Shutdown(ctx context.Context, timeout time.Duration) error {
	stopped := make(chan error, 1)
	go func() { stopped <- b.Stop(ctx) }()
	select {
	case err := <-stopped:
		return err
	case <-time.After(timeout):
		return kerrors.ErrBusShutdownTimeout
	}
}

// QueueSize returns the number of messages currently queued.
func (b *Bus) QueueSize() int { return b.queue.Size() }
