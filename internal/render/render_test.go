package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"attendlive/internal/event"
	"attendlive/internal/session"
)

func TestRendererTallies(t *testing.T) {
	r := New()

	r.Apply(event.TypeSessionStarted, session.EventPayload{SessionID: "a", Course: "CS101"})
	r.Apply(event.TypeAttendeeAdded, session.EventPayload{SessionID: "a", Course: "CS101", Total: 20})

	assert.Equal(t, []int{50}, r.Trend())
	present, absent := r.Snapshot()
	assert.Equal(t, 66, present)
	assert.Equal(t, 34, absent)

	r.Apply(event.TypeSessionStarted, session.EventPayload{SessionID: "b", Course: "MA202"})
	assert.Equal(t, []int{0, 50}, r.Trend())
	present, _ = r.Snapshot()
	assert.Equal(t, 33, present)
}

func TestRendererCapsPercentages(t *testing.T) {
	r := New()
	r.Apply(event.TypeAttendeeAdded, session.EventPayload{SessionID: "a", Total: 90})

	assert.Equal(t, []int{100}, r.Trend())
	present, absent := r.Snapshot()
	assert.Equal(t, 100, present)
	assert.Equal(t, 0, absent)
}

func TestRendererTrendWindow(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		r.Apply(event.TypeSessionStarted, session.EventPayload{SessionID: id})
	}
	assert.Len(t, r.Trend(), 6)
}

func TestRendererLatestWins(t *testing.T) {
	r := New()
	r.Apply(event.TypeAttendeeAdded, session.EventPayload{SessionID: "a", Total: 1})
	r.Apply(event.TypeAttendeeAdded, session.EventPayload{SessionID: "a", Total: 2})
	r.Apply(event.TypeSessionEnded, session.EventPayload{SessionID: "a", Total: 3})

	assert.Equal(t, []int{7}, r.Trend()) // 3 of 40
	present, _ := r.Snapshot()
	assert.Equal(t, 10, present) // 3 of 30
}
