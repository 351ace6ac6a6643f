// Package event defines the closed enumeration of events the bus routes,
// their priority groups, and the fixed tables mapping ship-telegraph
// style chadburn commands and steering/theta commands to motor
// directives.
package event

import "sort"

// Group is a coarse category used by subscribers to filter cheaply
// without enumerating every individual event.
type Group string

const (
	GroupSystem     Group = "system"
	GroupLambda     Group = "lambda"
	GroupClock      Group = "clock"
	GroupBumper     Group = "bumper"
	GroupInfrared   Group = "infrared"
	GroupVelocity   Group = "velocity"
	GroupChadburn   Group = "chadburn"
	GroupTheta      Group = "theta"
	GroupStop       Group = "stop"
	GroupMacro      Group = "macro"
	GroupExperiment Group = "experiment"
	GroupOther      Group = "other"
)

// Event is a member of the closed event enumeration. Events are totally
// ordered by (Priority, ID): lower priority number wins, ID breaks ties
// between events that share a priority (as every event within a group
// does).
type Event struct {
	ID       int
	Name     string
	Label    string
	Priority int
	Group    Group
}

// Less reports whether e sorts before other under the (priority, id)
// total order used by the arbitrator's priority queue.
func (e Event) Less(other Event) bool {
	if e.Priority != other.Priority {
		return e.Priority < other.Priority
	}
	return e.ID < other.ID
}

// LAMBDA is the distinguished event marking a Statement that carries a
// callable rather than a publishable event; it is never itself
// published to the bus.
var LAMBDA = Event{ID: 0, Name: "LAMBDA", Label: "lambda", Priority: 0, Group: GroupLambda}

// Clock ticks.
var (
	CLOCK_TICK = Event{ID: 1, Name: "CLOCK_TICK", Label: "tick", Priority: 100, Group: GroupClock}
	CLOCK_TOCK = Event{ID: 2, Name: "CLOCK_TOCK", Label: "tock", Priority: 100, Group: GroupClock}
)

// Bumper events, one per orientation.
var (
	BUMPER_PORT = Event{ID: 10, Name: "BUMPER_PORT", Label: "bump-port", Priority: 5, Group: GroupBumper}
	BUMPER_CNTR = Event{ID: 11, Name: "BUMPER_CNTR", Label: "bump-cntr", Priority: 5, Group: GroupBumper}
	BUMPER_STBD = Event{ID: 12, Name: "BUMPER_STBD", Label: "bump-stbd", Priority: 5, Group: GroupBumper}
)

// Infrared events, one per orientation.
var (
	INFRARED_PORT = Event{ID: 20, Name: "INFRARED_PORT", Label: "ir-port", Priority: 6, Group: GroupInfrared}
	INFRARED_CNTR = Event{ID: 21, Name: "INFRARED_CNTR", Label: "ir-cntr", Priority: 6, Group: GroupInfrared}
	INFRARED_STBD = Event{ID: 22, Name: "INFRARED_STBD", Label: "ir-stbd", Priority: 6, Group: GroupInfrared}
)

// Velocity group: per-side or combined accel/decel nudges.
var (
	VELOCITY_PORT_INCREMENT = Event{ID: 30, Name: "VELOCITY_PORT_INCREMENT", Label: "vel-port-up", Priority: 20, Group: GroupVelocity}
	VELOCITY_PORT_DECREMENT = Event{ID: 31, Name: "VELOCITY_PORT_DECREMENT", Label: "vel-port-down", Priority: 20, Group: GroupVelocity}
	VELOCITY_STBD_INCREMENT = Event{ID: 32, Name: "VELOCITY_STBD_INCREMENT", Label: "vel-stbd-up", Priority: 20, Group: GroupVelocity}
	VELOCITY_STBD_DECREMENT = Event{ID: 33, Name: "VELOCITY_STBD_DECREMENT", Label: "vel-stbd-down", Priority: 20, Group: GroupVelocity}
	VELOCITY_INCREMENT      = Event{ID: 34, Name: "VELOCITY_INCREMENT", Label: "vel-up", Priority: 20, Group: GroupVelocity}
	VELOCITY_DECREMENT      = Event{ID: 35, Name: "VELOCITY_DECREMENT", Label: "vel-down", Priority: 20, Group: GroupVelocity}
)

// Theta group: steering, spin and even-out commands.
var (
	THETA_EVEN      = Event{ID: 40, Name: "THETA_EVEN", Label: "even", Priority: 15, Group: GroupTheta}
	THETA_SPIN_PORT = Event{ID: 41, Name: "THETA_SPIN_PORT", Label: "spin-port", Priority: 15, Group: GroupTheta}
	THETA_SPIN_STBD = Event{ID: 42, Name: "THETA_SPIN_STBD", Label: "spin-stbd", Priority: 15, Group: GroupTheta}
)

// Stop group: distinct halt semantics (see motor.Controller.Dispatch).
var (
	STOP  = Event{ID: 50, Name: "STOP", Label: "stop", Priority: 1, Group: GroupStop}
	HALT  = Event{ID: 51, Name: "HALT", Label: "halt", Priority: 2, Group: GroupStop}
	BRAKE = Event{ID: 52, Name: "BRAKE", Label: "brake", Priority: 2, Group: GroupStop}
)

// Macro group: published when a statement's event fires from within a
// running macro and is not itself one of the above; kept generic so
// macros can reference arbitrary domain events.
var MACRO_EVENT = Event{ID: 60, Name: "MACRO_EVENT", Label: "macro", Priority: 50, Group: GroupMacro}

// Direction is the sign convention used throughout the motor pipeline:
// AHEAD is positive, ASTERN is negative.
type Direction int

const (
	AHEAD  Direction = 1
	ASTERN Direction = -1
)

// Sign returns +1 for AHEAD, -1 for ASTERN.
func (d Direction) Sign() float64 {
	if d == ASTERN {
		return -1
	}
	return 1
}

// Speed is a named chadburn speed with its magnitude in the motor's
// velocity units.
type Speed struct {
	Name  string
	Value float64
}

var (
	SpeedStop     = Speed{Name: "STOP", Value: 0}
	SpeedDeadSlow = Speed{Name: "DEAD_SLOW", Value: 20}
	SpeedSlow     = Speed{Name: "SLOW", Value: 40}
	SpeedHalf     = Speed{Name: "HALF", Value: 70}
	SpeedFull     = Speed{Name: "FULL", Value: 100}
)

// Chadburn events: one per (Speed × Direction) pair, plus a bare STOP.
var (
	FULL_AHEAD      = Event{ID: 70, Name: "FULL_AHEAD", Label: "full-ahead", Priority: 10, Group: GroupChadburn}
	HALF_AHEAD      = Event{ID: 71, Name: "HALF_AHEAD", Label: "half-ahead", Priority: 10, Group: GroupChadburn}
	SLOW_AHEAD      = Event{ID: 72, Name: "SLOW_AHEAD", Label: "slow-ahead", Priority: 10, Group: GroupChadburn}
	DEAD_SLOW_AHEAD = Event{ID: 73, Name: "DEAD_SLOW_AHEAD", Label: "dead-slow-ahead", Priority: 10, Group: GroupChadburn}
	FULL_ASTERN      = Event{ID: 74, Name: "FULL_ASTERN", Label: "full-astern", Priority: 10, Group: GroupChadburn}
	HALF_ASTERN      = Event{ID: 75, Name: "HALF_ASTERN", Label: "half-astern", Priority: 10, Group: GroupChadburn}
	SLOW_ASTERN      = Event{ID: 76, Name: "SLOW_ASTERN", Label: "slow-astern", Priority: 10, Group: GroupChadburn}
	DEAD_SLOW_ASTERN = Event{ID: 77, Name: "DEAD_SLOW_ASTERN", Label: "dead-slow-astern", Priority: 10, Group: GroupChadburn}
	CHADBURN_STOP    = Event{ID: 78, Name: "CHADBURN_STOP", Label: "chadburn-stop", Priority: 10, Group: GroupChadburn}
)

// Chadburn maps a chadburn event to the (Direction, Speed) pair the
// motor controller applies to both motors' targets.
type Chadburn struct {
	Direction Direction
	Speed     Speed
}

// chadburnTable is the fixed lookup described in spec §4.2.
var chadburnTable = map[int]Chadburn{
	FULL_AHEAD.ID:       {AHEAD, SpeedFull},
	HALF_AHEAD.ID:       {AHEAD, SpeedHalf},
	SLOW_AHEAD.ID:       {AHEAD, SpeedSlow},
	DEAD_SLOW_AHEAD.ID:  {AHEAD, SpeedDeadSlow},
	FULL_ASTERN.ID:      {ASTERN, SpeedFull},
	HALF_ASTERN.ID:      {ASTERN, SpeedHalf},
	SLOW_ASTERN.ID:      {ASTERN, SpeedSlow},
	DEAD_SLOW_ASTERN.ID: {ASTERN, SpeedDeadSlow},
	CHADBURN_STOP.ID:    {AHEAD, SpeedStop},
}

// ChadburnFor returns the (Direction, Speed) pair for a chadburn event
// and whether e was found in the table.
func ChadburnFor(e Event) (Chadburn, bool) {
	c, ok := chadburnTable[e.ID]
	return c, ok
}

// Accepted reports whether an event is of interest given a set of
// accepted groups and a set of individually accepted events, per
// spec §4.2: accepted(event) <=> event.group in groups or event in events.
func Accepted(e Event, groups map[Group]bool, events map[int]bool) bool {
	if groups[e.Group] {
		return true
	}
	return events[e.ID]
}

// Sort orders events by the total order for diagnostic listing.
func Sort(events []Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].Less(events[j]) })
}
