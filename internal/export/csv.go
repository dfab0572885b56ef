// Package export serializes sessions to downloadable delimited text.
// Every cell is double-quoted with inner quotes doubled; rows are joined
// by LF and encoded as UTF-8.
package export

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"attendlive/internal/session"
)

var (
	// ErrNoRows signals an export whose filtered result holds zero
	// attendee rows; no file is produced.
	ErrNoRows = errors.New("no attendee rows")
	// ErrMissingBound signals a range export without both bounds.
	ErrMissingBound = errors.New("both range bounds are required")
)

var (
	sessionHeader  = []string{"id", "name", "method", "time", "latitude", "longitude"}
	combinedHeader = []string{"session_course", "session_date", "id", "name", "method", "time", "latitude", "longitude"}
)

// Session exports one session's attendees. Zero attendees still yields a
// header-only table, never an error.
func Session(s session.Session) (filename string, data []byte) {
	rows := [][]string{sessionHeader}
	for _, a := range s.Attendees {
		rows = append(rows, attendeeRow(a))
	}
	return fileName(s.Course, s.ID), encode(rows)
}

// All exports every attendee of every session, rows prefixed with the
// session's course and date.
func All(sessions []session.Session, now time.Time) (string, []byte, error) {
	rows := [][]string{combinedHeader}
	for _, s := range sessions {
		for _, a := range s.Attendees {
			rows = append(rows, combinedRow(s, a))
		}
	}
	if len(rows) == 1 {
		return "", nil, ErrNoRows
	}
	return fmt.Sprintf("attendance_%d.csv", now.UnixMilli()), encode(rows), nil
}

// Range is All filtered to sessions whose date falls in the closed
// interval [from, to].
func Range(sessions []session.Session, from, to time.Time) (string, []byte, error) {
	if from.IsZero() || to.IsZero() {
		return "", nil, ErrMissingBound
	}
	rows := [][]string{combinedHeader}
	for _, s := range sessions {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		for _, a := range s.Attendees {
			rows = append(rows, combinedRow(s, a))
		}
	}
	if len(rows) == 1 {
		return "", nil, ErrNoRows
	}
	name := "attendance_" + from.Format("2006-01-02") + "_" + to.Format("2006-01-02") + ".csv"
	return name, encode(rows), nil
}

func attendeeRow(a session.Attendee) []string {
	lat, lon := coords(a.Location)
	return []string{a.ID, a.Name, a.Method, a.Time.UTC().Format(time.RFC3339), lat, lon}
}

func combinedRow(s session.Session, a session.Attendee) []string {
	return append([]string{s.Course, s.Date.UTC().Format(time.RFC3339)}, attendeeRow(a)...)
}

func encode(rows [][]string) []byte {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			b.WriteByte('"')
		}
	}
	return []byte(b.String())
}

func coords(c *session.Coordinates) (lat, lon string) {
	if c == nil {
		return "", ""
	}
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

var spaceRun = regexp.MustCompile(`\s+`)

func fileName(course, id string) string {
	course = spaceRun.ReplaceAllString(strings.TrimSpace(course), "_")
	if course == "" {
		course = "session"
	}
	return course + "_" + id + ".csv"
}
