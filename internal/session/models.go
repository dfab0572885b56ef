package session

import (
	"fmt"
	"time"
)

// Attendee ingestion methods.
const (
	MethodQR     = "qr"
	MethodManual = "manual"
)

// Coordinates is a latitude/longitude pair. An absent location is a nil
// *Coordinates; the two fields are never set independently.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Attendee is one person's presence record within a session. Records are
// append-only and never mutated after ingestion.
type Attendee struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Method   string       `json:"method"`
	Location *Coordinates `json:"location,omitempty"`
	Time     time.Time    `json:"time"`
}

// Session is one attendance-taking window tied to a course and class.
type Session struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	URL         string       `json:"url"`
	Course      string       `json:"course"`
	Class       string       `json:"class"`
	Date        time.Time    `json:"date"`
	DurationMin float64      `json:"duration_min"`
	Mode        string       `json:"mode"`
	Anchor      *Coordinates `json:"anchor,omitempty"`
	Attendees   []Attendee   `json:"attendees"`
	ManualAdds  int          `json:"manual_adds"`
	CreatedAt   time.Time    `json:"created_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
}

// Ended reports whether the session has an end timestamp.
func (s *Session) Ended() bool { return s.EndedAt != nil }

// clone returns a deep copy safe to hand outside the controller lock.
func (s *Session) clone() Session {
	out := *s
	out.Attendees = make([]Attendee, len(s.Attendees))
	copy(out.Attendees, s.Attendees)
	if s.Anchor != nil {
		a := *s.Anchor
		out.Anchor = &a
	}
	if s.EndedAt != nil {
		e := *s.EndedAt
		out.EndedAt = &e
	}
	return out
}

// LiveSnapshot is the read-only view of the active session handed to
// presentation code. Present always equals Total since absence is not
// tracked at the live stage.
type LiveSnapshot struct {
	Session
	Total        int    `json:"total"`
	Present      int    `json:"present"`
	Absent       int    `json:"absent"`
	RemainingSec int    `json:"remaining_sec"`
	Timer        string `json:"timer"`
	Paused       bool   `json:"paused"`
}

// FormatClock renders a second count as HH:MM:SS for timer displays.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
