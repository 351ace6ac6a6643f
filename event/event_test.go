package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventLessOrdersByPriorityThenID(t *testing.T) {
	assert.True(t, STOP.Less(HALT), "STOP (priority 1) sorts before HALT (priority 2)")
	assert.False(t, HALT.Less(STOP))

	// FULL_AHEAD and HALF_AHEAD share priority 10; ID breaks the tie.
	assert.True(t, FULL_AHEAD.Less(HALF_AHEAD))
}

func TestSortOrdersByTotalOrder(t *testing.T) {
	events := []Event{HALF_AHEAD, STOP, FULL_AHEAD, HALT}
	Sort(events)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Less(events[i-1]), "events must be non-decreasing after Sort")
	}
	assert.Equal(t, STOP.ID, events[0].ID, "STOP has the lowest priority number, so sorts first")
}

func TestChadburnForKnownAndUnknownEvents(t *testing.T) {
	c, ok := ChadburnFor(FULL_AHEAD)
	assert.True(t, ok)
	assert.Equal(t, AHEAD, c.Direction)
	assert.Equal(t, SpeedFull, c.Speed)

	c, ok = ChadburnFor(BUMPER_PORT)
	assert.False(t, ok)
	assert.Zero(t, c)
}

func TestDirectionSign(t *testing.T) {
	assert.Equal(t, 1.0, AHEAD.Sign())
	assert.Equal(t, -1.0, ASTERN.Sign())
}

func TestAcceptedByGroupOrExplicitEvent(t *testing.T) {
	groups := map[Group]bool{GroupBumper: true}
	events := map[int]bool{THETA_EVEN.ID: true}

	assert.True(t, Accepted(BUMPER_PORT, groups, events), "BUMPER_PORT accepted via its group")
	assert.True(t, Accepted(THETA_EVEN, groups, events), "THETA_EVEN accepted via explicit event id")
	assert.False(t, Accepted(INFRARED_CNTR, groups, events), "INFRARED_CNTR is in neither set")
}
