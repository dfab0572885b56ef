package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"

	"attendlive/internal/event"
	"attendlive/internal/metrics"
)

// ErrMissingFields signals a manual add without the required identifier or name.
var ErrMissingFields = errors.New("attendee id and name required")

// defaultAnchor is used for simulated scans when a session has no
// coordinates of its own.
var defaultAnchor = Coordinates{Latitude: 6.683, Longitude: -1.55}

// AddAttendee appends a record to the given session. The record's time is
// defaulted to now when unset. Appending to a non-active session is allowed
// (the record lands in the store) but produces no live-view change.
func (c *Controller) AddAttendee(sessionID string, a Attendee) (Attendee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(sessionID, a)
}

// ManualAdd records an operator-entered attendee against the live session,
// tagging it with the operator's position when a short geolocation read
// succeeds. Geolocation failure never blocks the add.
func (c *Controller) ManualAdd(ctx context.Context, id, name string) (Attendee, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return Attendee{}, ErrMissingFields
	}

	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return Attendee{}, ErrNoActiveSession
	}
	target := c.active.ID
	c.mu.Unlock()

	loc := c.lookupPosition(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	// The lookup may outlive a session switch; a stale position must not
	// tag a record in whatever session went live in the meantime.
	if loc != nil && (c.active == nil || c.active.ID != target) {
		loc = nil
	}
	return c.addLocked(target, Attendee{ID: id, Name: name, Method: MethodManual, Location: loc})
}

// SimulateScan emulates a self-service QR check-in near the live session's
// anchor: a random student id with coordinates jittered by up to ±0.001°.
func (c *Controller) SimulateScan() (Attendee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return Attendee{}, ErrNoActiveSession
	}
	base := defaultAnchor
	if c.active.Anchor != nil {
		base = *c.active.Anchor
	}
	id := fmt.Sprintf("S%d", 1000+rand.Intn(9000))
	return c.addLocked(c.active.ID, Attendee{
		ID:     id,
		Name:   "Student " + id,
		Method: MethodQR,
		Location: &Coordinates{
			Latitude:  round6(base.Latitude + jitter()),
			Longitude: round6(base.Longitude + jitter()),
		},
	})
}

func (c *Controller) addLocked(sessionID string, a Attendee) (Attendee, error) {
	s, err := c.store.FindByID(sessionID)
	if err != nil {
		return Attendee{}, err
	}
	if a.Time.IsZero() {
		a.Time = c.now()
	}
	s.Attendees = append(s.Attendees, a)
	if a.Method == MethodManual {
		s.ManualAdds++
	}
	metrics.Checkins.WithLabelValues(a.Method).Inc()
	c.publish(event.TypeAttendeeAdded, c.payloadLocked(s, a.Method))
	return a, nil
}

// lookupPosition tries a bounded geolocation read; any failure degrades to
// recording no coordinates.
func (c *Controller) lookupPosition(ctx context.Context) *Coordinates {
	if c.locator == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, c.geoTimeout)
	defer cancel()

	pos, err := c.locator.Current(lctx)
	if err != nil {
		log.Printf("geolocation unavailable: %v", err)
		return nil
	}
	if pos == nil {
		return nil
	}
	return &Coordinates{Latitude: pos.Latitude, Longitude: pos.Longitude}
}

// jitter returns a random offset within ±0.001 degrees.
func jitter() float64 { return rand.Float64()*0.002 - 0.001 }

func round6(f float64) float64 { return math.Round(f*1e6) / 1e6 }
