// Package render is the presentation adapter: it turns session events into
// the dashboard's log summaries. It holds no authority over session state;
// everything here is derived from published snapshots.
package render

import (
	"log"

	"attendlive/internal/event"
	"attendlive/internal/session"
)

// Renderer keeps per-session tallies and prints the chart summaries the
// dashboard shows: a trend percentage per recent session and an overall
// present/absent snapshot.
type Renderer struct {
	order []string
	byID  map[string]session.EventPayload
}

// New creates an empty renderer.
func New() *Renderer {
	return &Renderer{byID: make(map[string]session.EventPayload)}
}

// Apply folds one event into the tallies and re-renders the summaries.
func (r *Renderer) Apply(typ string, p session.EventPayload) {
	if _, seen := r.byID[p.SessionID]; !seen {
		r.order = append([]string{p.SessionID}, r.order...)
	}
	r.byID[p.SessionID] = p

	switch typ {
	case event.TypeSessionStarted:
		log.Printf("live: %s / %s (%s) code=%s", p.Course, p.Class, p.Mode, p.Code)
	case event.TypeSessionPaused:
		log.Printf("paused: %s / %s", p.Course, p.Class)
	case event.TypeSessionResumed:
		log.Printf("resumed: %s / %s", p.Course, p.Class)
	case event.TypeSessionEnded:
		log.Printf("ended: %s / %s, %d attendees (%d manual)", p.Course, p.Class, p.Total, p.ManualAdds)
	case event.TypeAttendeeAdded:
		log.Printf("check-in (%s): %s, now %d present", p.Method, p.Course, p.Total)
	}

	trend := r.Trend()
	present, absent := r.Snapshot()
	log.Printf("summary: trend=%v present=%d%% absent=%d%%", trend, present, absent)
}

// Trend reports the attendance percentage of up to the six most recent
// sessions against a nominal class size of 40, newest first.
func (r *Renderer) Trend() []int {
	n := len(r.order)
	if n > 6 {
		n = 6
	}
	trend := make([]int, 0, n)
	for _, id := range r.order[:n] {
		pct := r.byID[id].Total * 100 / 40
		if pct > 100 {
			pct = 100
		}
		trend = append(trend, pct)
	}
	return trend
}

// Snapshot reports overall present/absent percentages against 30 expected
// heads per session.
func (r *Renderer) Snapshot() (present, absent int) {
	total := 0
	for _, id := range r.order {
		total += r.byID[id].Total
	}
	possible := len(r.order) * 30
	if possible < 1 {
		possible = 1
	}
	present = total * 100 / possible
	if present > 100 {
		present = 100
	}
	return present, 100 - present
}
