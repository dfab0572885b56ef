package session

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"attendlive/internal/geo"
)

type fakeLocator struct {
	pos     *geo.Position
	err     error
	entered chan struct{} // closed once a lookup has started
	release chan struct{} // when set, Current blocks until closed
}

func (f *fakeLocator) Current(ctx context.Context) (*geo.Position, error) {
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.pos, f.err
}

func newIngestController(loc geo.Provider) *Controller {
	return NewController(NewStore(), nil, loc, Options{
		TickInterval: 5 * time.Millisecond,
		GeoTimeout:   100 * time.Millisecond,
	})
}

func TestAddAttendeeDefaultsTime(t *testing.T) {
	c := newIngestController(nil)
	s := c.Create(CreateParams{Course: "CS101"})

	a, err := c.AddAttendee(s.ID, Attendee{ID: "S1", Name: "One", Method: MethodQR})
	assert.NoError(t, err)
	assert.False(t, a.Time.IsZero())

	supplied := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	a, err = c.AddAttendee(s.ID, Attendee{ID: "S2", Name: "Two", Method: MethodQR, Time: supplied})
	assert.NoError(t, err)
	assert.Equal(t, supplied, a.Time)
}

func TestAddAttendeeUnknownSession(t *testing.T) {
	c := newIngestController(nil)
	_, err := c.AddAttendee("missing", Attendee{ID: "S1", Name: "One"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddAttendeeUpdatesLiveCounters(t *testing.T) {
	c := newIngestController(nil)
	s := c.Create(CreateParams{Course: "CS101"})

	_, err := c.AddAttendee(s.ID, Attendee{ID: "S1", Name: "One", Method: MethodQR})
	assert.NoError(t, err)

	snap, ok := c.Live()
	assert.True(t, ok)
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 1, snap.Present)
	assert.Equal(t, 0, snap.Absent)
}

func TestAddAttendeeToEndedSessionLeavesLiveAlone(t *testing.T) {
	c := newIngestController(nil)
	old := c.Create(CreateParams{Course: "OLD"})
	c.Create(CreateParams{Course: "NEW"})

	// the store still accepts the record, read-only view only
	_, err := c.AddAttendee(old.ID, Attendee{ID: "S1", Name: "One", Method: MethodQR})
	assert.NoError(t, err)

	snap, ok := c.Live()
	assert.True(t, ok)
	assert.Equal(t, "NEW", snap.Course)
	assert.Equal(t, 0, snap.Total)

	stored, err := c.Get(old.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Attendees, 1)
}

func TestManualAddRequiresFields(t *testing.T) {
	c := newIngestController(nil)
	c.Create(CreateParams{Course: "CS101"})

	tests := []struct{ id, name string }{
		{"", ""},
		{"S1", ""},
		{"", "One"},
		{"   ", "One"},
	}
	for _, tt := range tests {
		_, err := c.ManualAdd(context.Background(), tt.id, tt.name)
		assert.ErrorIs(t, err, ErrMissingFields)
	}

	snap, _ := c.Live()
	assert.Equal(t, 0, snap.Total)
}

func TestManualAddNoActiveSession(t *testing.T) {
	c := newIngestController(nil)
	_, err := c.ManualAdd(context.Background(), "S1", "One")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManualAddTagsPosition(t *testing.T) {
	c := newIngestController(&fakeLocator{pos: &geo.Position{Latitude: 6.7, Longitude: -1.6}})
	c.Create(CreateParams{Course: "CS101"})

	a, err := c.ManualAdd(context.Background(), "S1", "One")
	assert.NoError(t, err)
	assert.Equal(t, MethodManual, a.Method)
	assert.Equal(t, &Coordinates{Latitude: 6.7, Longitude: -1.6}, a.Location)

	snap, _ := c.Live()
	assert.Equal(t, 1, snap.ManualAdds)
}

func TestManualAddDegradesOnGeoFailure(t *testing.T) {
	c := newIngestController(&fakeLocator{err: errors.New("denied")})
	c.Create(CreateParams{Course: "CS101"})

	a, err := c.ManualAdd(context.Background(), "S1", "One")
	assert.NoError(t, err)
	assert.Nil(t, a.Location)
}

func TestManualAddDiscardsStalePosition(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	loc := &fakeLocator{pos: &geo.Position{Latitude: 6.7, Longitude: -1.6}, entered: entered, release: release}
	c := newIngestController(loc)
	old := c.Create(CreateParams{Course: "OLD"})

	done := make(chan struct{})
	var got Attendee
	var gotErr error
	go func() {
		got, gotErr = c.ManualAdd(context.Background(), "S1", "One")
		close(done)
	}()

	// switch the live session while the lookup is in flight
	<-entered
	c.Create(CreateParams{Course: "NEW"})
	close(release)
	<-done

	assert.NoError(t, gotErr)
	assert.Nil(t, got.Location, "stale position must not tag the record")

	stored, err := c.Get(old.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Attendees, 1, "record still lands in the session targeted at request time")
}

func TestSimulateScanJittersAnchor(t *testing.T) {
	c := newIngestController(nil)
	c.Create(CreateParams{Course: "CS101", Latitude: floatPtr(10.0), Longitude: floatPtr(20.0)})

	for i := 0; i < 25; i++ {
		a, err := c.SimulateScan()
		assert.NoError(t, err)
		assert.Equal(t, MethodQR, a.Method)
		assert.NotNil(t, a.Location)
		assert.LessOrEqual(t, math.Abs(a.Location.Latitude-10.0), 0.001+1e-9)
		assert.LessOrEqual(t, math.Abs(a.Location.Longitude-20.0), 0.001+1e-9)
	}
}

func TestSimulateScanFallbackAnchor(t *testing.T) {
	c := newIngestController(nil)
	c.Create(CreateParams{Course: "CS101"})

	a, err := c.SimulateScan()
	assert.NoError(t, err)
	assert.LessOrEqual(t, math.Abs(a.Location.Latitude-6.683), 0.001+1e-9)
	assert.LessOrEqual(t, math.Abs(a.Location.Longitude-(-1.55)), 0.001+1e-9)
}

func TestSimulateScanNoActiveSession(t *testing.T) {
	c := newIngestController(nil)
	_, err := c.SimulateScan()
	assert.ErrorIs(t, err, ErrNoActiveSession)
}
