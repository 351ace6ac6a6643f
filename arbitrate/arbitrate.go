// Package arbitrate implements the priority arbitrator and the
// controller contract it dispatches to: the arbitrator holds a
// min-heap of pending payloads keyed by (priority, insertion order) and
// delivers the highest-priority payload to every registered controller.
package arbitrate

import (
	"container/heap"
	"strconv"
	"sync"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/message"
)

// Controller receives payloads from an Arbitrator and is free to
// translate them into motor-controller actions or ignore them.
type Controller interface {
	component.Lifecycle
	Name() string
	Callback(payload message.Payload)
	PrintStatistics() string
}

// item is one entry in the arbitrator's priority queue.
type item struct {
	payload  message.Payload
	priority int
	seq      int // insertion order, used to break priority ties
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(*item)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}

// Arbitrator is a priority-ordered selector. Constructed active
// (enabled, not suppressed) by default, matching the original Python
// Arbitrator's constructor defaults.
type Arbitrator struct {
	component.Base

	log   logging.Logger
	mu    sync.Mutex
	pq    priorityQueue
	seq   int
	count int // total payloads delivered, excludes suppressed-dropped ones

	controllers []Controller
	verbose     bool
}

// New constructs an Arbitrator. It starts enabled and unsuppressed.
func New(log logging.Logger) *Arbitrator {
	if log == nil {
		log = logging.Nop{}
	}
	a := &Arbitrator{log: log}
	a.Base = component.NewBase("Arbitrator", log, true, false)
	heap.Init(&a.pq)
	return a
}

// RegisterController appends c to the arbitrator's controller list.
func (a *Arbitrator) RegisterController(c Controller) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controllers = append(a.controllers, c)
}

// Count returns the total number of payloads delivered so far (payloads
// dropped while suppressed are not counted).
func (a *Arbitrator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// SetVerbose records a verbosity toggle on the arbitrator. Registered
// controllers are not notified of it.
func (a *Arbitrator) SetVerbose(v bool) {
	a.mu.Lock()
	a.verbose = v
	a.mu.Unlock()
}

// Arbitrate enqueues payload and immediately triggers delivery to every
// registered controller. If the arbitrator is suppressed, its pending
// queue is cleared and the payload is dropped. If there are no
// registered controllers, the payload is dropped with a warning (it is
// never silently lost without a log line).
func (a *Arbitrator) Arbitrate(payload message.Payload) {
	a.mu.Lock()
	if a.Base.Suppressed() {
		a.pq = a.pq[:0]
		a.mu.Unlock()
		return
	}
	if len(a.controllers) == 0 {
		a.mu.Unlock()
		a.log.Warn("arbitrate called with no registered controllers", "event", payload.Event.Name)
		return
	}
	a.seq++
	heap.Push(&a.pq, &item{payload: payload, priority: payload.Priority, seq: a.seq})
	a.mu.Unlock()
	a.triggerCallback()
}

// triggerCallback pops the highest-priority pending payload and invokes
// every registered controller's Callback with it, in registration
// order.
func (a *Arbitrator) triggerCallback() {
	a.mu.Lock()
	if a.pq.Len() == 0 {
		a.mu.Unlock()
		return
	}
	it := heap.Pop(&a.pq).(*item)
	controllers := make([]Controller, len(a.controllers))
	copy(controllers, a.controllers)
	a.count++
	a.mu.Unlock()

	for _, c := range controllers {
		c.Callback(it.payload)
	}
}

// Peek returns the highest-priority pending payload without removing
// it, and whether the queue was non-empty. Exposed primarily for tests
// verifying the testable property that the arbitrator always delivers
// the minimum-priority pending payload.
func (a *Arbitrator) Peek() (message.Payload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pq.Len() == 0 {
		return message.Payload{}, false
	}
	return a.pq[0].payload, true
}

// BaseController is embedded by concrete controllers to provide the
// event/state-change counters the original tracks for
// print_statistics().
type BaseController struct {
	component.Base
	name string

	mu               sync.Mutex
	eventCount       int
	stateChangeCount int
}

// NewBaseController constructs a BaseController registered under name,
// starting enabled and unsuppressed like the original Controller.
func NewBaseController(name string, log logging.Logger) BaseController {
	return BaseController{Base: component.NewBase(name, log, true, false), name: name}
}

func (c *BaseController) Name() string { return c.name }

// RecordEvent increments the event counter; concrete controllers call
// this from their Callback implementation.
func (c *BaseController) RecordEvent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventCount++
}

// RecordStateChange increments the state-change counter; concrete
// controllers call this when a command actually changes motor state.
func (c *BaseController) RecordStateChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateChangeCount++
}

// PrintStatistics renders the same one-line summary the original
// Controller.print_statistics() logs.
func (c *BaseController) PrintStatistics() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return statsLine(c.name, c.eventCount, c.stateChangeCount)
}

func statsLine(name string, events, stateChanges int) string {
	return name + ": " + strconv.Itoa(events) + " events; " + strconv.Itoa(stateChanges) + " state changes."
}
