package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendlive/internal/event"
	"attendlive/internal/geo"
	"attendlive/internal/metrics"
)

// ErrNoActiveSession signals an operation that requires a live session.
var ErrNoActiveSession = errors.New("no active session")

// CreateParams carries the create-form fields. Every optional field has an
// explicit default applied once at this boundary; malformed input is coerced,
// never rejected.
type CreateParams struct {
	Course      string
	Class       string
	Date        time.Time // zero value defaults to now
	DurationMin *float64  // nil defaults to the configured duration
	Mode        string    // empty defaults to the configured mode
	Latitude    *float64  // anchor applied only when both are present
	Longitude   *float64
}

// Options configures a Controller.
type Options struct {
	ShareBaseURL       string
	DefaultDurationMin float64
	DefaultMode        string
	GeoTimeout         time.Duration
	TickInterval       time.Duration
}

// EventPayload is the JSON body attached to lifecycle and ingestion events.
type EventPayload struct {
	SessionID  string    `json:"session_id"`
	Code       string    `json:"code"`
	Course     string    `json:"course"`
	Class      string    `json:"class"`
	Mode       string    `json:"mode"`
	Date       time.Time `json:"date"`
	Total      int       `json:"total"`
	ManualAdds int       `json:"manual_adds"`
	Method     string    `json:"method,omitempty"`
	Active     bool      `json:"active"`
}

// Controller owns the session store, the single active-session pointer, and
// the one countdown timer associated with it. All mutation is serialized
// through its mutex; snapshots handed out are deep copies.
type Controller struct {
	mu      sync.Mutex
	store   *Store
	bus     event.Bus
	events  chan event.Message
	locator geo.Provider

	active    *Session
	remaining int
	paused    bool
	gen       uint64
	stop      chan struct{}

	shareBase  string
	defaultDur float64
	defaultMod string
	geoTimeout time.Duration
	tick       time.Duration
	now        func() time.Time
}

// NewController wires the lifecycle controller. bus and locator may be nil in
// tests; both degrade to no-ops.
func NewController(store *Store, bus event.Bus, locator geo.Provider, opts Options) *Controller {
	if opts.DefaultDurationMin <= 0 {
		opts.DefaultDurationMin = 30
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = "in-person"
	}
	if opts.GeoTimeout <= 0 {
		opts.GeoTimeout = 4 * time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	c := &Controller{
		store:      store,
		bus:        bus,
		locator:    locator,
		shareBase:  opts.ShareBaseURL,
		defaultDur: opts.DefaultDurationMin,
		defaultMod: opts.DefaultMode,
		geoTimeout: opts.GeoTimeout,
		tick:       opts.TickInterval,
		now:        time.Now,
	}
	if bus != nil {
		c.events = make(chan event.Message, 256)
		go c.forward()
	}
	return c
}

// Create builds a session from the form fields, inserts it at the front of
// the store, and immediately activates it.
func (c *Controller) Create(p CreateParams) Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	dur := c.defaultDur
	if p.DurationMin != nil {
		dur = *p.DurationMin
	}
	mode := p.Mode
	if mode == "" {
		mode = c.defaultMod
	}
	date := p.Date
	if date.IsZero() {
		date = c.now()
	}

	code := shareCode("S", 6)
	s := &Session{
		ID:          uuid.NewString(),
		Code:        code,
		URL:         c.shareBase + "/attend/" + code,
		Course:      p.Course,
		Class:       p.Class,
		Date:        date,
		DurationMin: dur,
		Mode:        mode,
		CreatedAt:   c.now(),
	}
	if p.Latitude != nil && p.Longitude != nil {
		s.Anchor = &Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}

	c.store.Insert(s)
	c.activateLocked(s)
	c.publish(event.TypeSessionStarted, c.payloadLocked(s, ""))
	return s.clone()
}

// QuickStart creates an ad-hoc walk-in session with all defaults.
func (c *Controller) QuickStart() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	code := shareCode("Q", 4)
	s := &Session{
		ID:          uuid.NewString(),
		Code:        code,
		URL:         c.shareBase + "/attend/" + code,
		Course:      "Quick Class",
		Class:       "Walk-in",
		Date:        c.now(),
		DurationMin: c.defaultDur,
		Mode:        c.defaultMod,
		CreatedAt:   c.now(),
	}
	c.store.Insert(s)
	c.activateLocked(s)
	c.publish(event.TypeSessionStarted, c.payloadLocked(s, ""))
	return s.clone()
}

// Activate makes a stored session the live one, silently terminating any
// other session that is currently active. Re-activating the live session
// restarts its full countdown.
func (c *Controller) Activate(id string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.store.FindByID(id)
	if err != nil {
		return Session{}, err
	}
	c.activateLocked(s)
	c.publish(event.TypeSessionStarted, c.payloadLocked(s, ""))
	return s.clone(), nil
}

// Pause stops the countdown without clearing the active pointer.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrNoActiveSession
	}
	if c.paused {
		return nil
	}
	c.stopCountdownLocked()
	c.paused = true
	c.publish(event.TypeSessionPaused, c.payloadLocked(c.active, ""))
	return nil
}

// Resume re-runs activation on the paused session. The countdown restarts at
// the full duration; see DESIGN.md for the pause/resume decision.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrNoActiveSession
	}
	if !c.paused {
		return nil
	}
	c.activateLocked(c.active)
	c.publish(event.TypeSessionResumed, c.payloadLocked(c.active, ""))
	return nil
}

// EndActive terminates the live session, if any.
func (c *Controller) EndActive() (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return Session{}, ErrNoActiveSession
	}
	s := c.active
	c.terminateLocked(s)
	return s.clone(), nil
}

// Live returns a snapshot of the active session and whether one exists.
func (c *Controller) Live() (LiveSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return LiveSnapshot{}, false
	}
	return c.snapshotLocked(c.active), true
}

// Remaining reports the countdown seconds left; zero when nothing is live.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Get returns a read-only copy of a stored session.
func (c *Controller) Get(id string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.store.FindByID(id)
	if err != nil {
		return Session{}, err
	}
	return s.clone(), nil
}

// Recent returns copies of up to n sessions, newest first.
func (c *Controller) Recent(n int) []Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	recent := c.store.Recent(n)
	out := make([]Session, len(recent))
	for i, s := range recent {
		out[i] = s.clone()
	}
	return out
}

// Sessions returns copies of every stored session, newest first.
func (c *Controller) Sessions() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.store.All()
	out := make([]Session, len(all))
	for i, s := range all {
		out[i] = s.clone()
	}
	return out
}

// activateLocked switches the active pointer to s and restarts the countdown.
// Any other live session is terminated first, without confirmation.
func (c *Controller) activateLocked(s *Session) {
	if c.active != nil && c.active.ID != s.ID {
		c.terminateLocked(c.active)
	}
	c.stopCountdownLocked()
	c.active = s
	c.paused = false
	c.remaining = countdownSeconds(s.DurationMin)
	c.gen++

	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Set(1)
	metrics.CountdownSeconds.Set(float64(c.remaining))

	stop := make(chan struct{})
	c.stop = stop
	go c.run(c.gen, stop)
}

// terminateLocked stamps the end timestamp and clears the active pointer.
// No-ops unless s is the active session.
func (c *Controller) terminateLocked(s *Session) {
	if c.active == nil || c.active.ID != s.ID {
		return
	}
	now := c.now()
	s.EndedAt = &now
	c.active = nil
	c.paused = false
	c.remaining = 0
	c.stopCountdownLocked()

	metrics.SessionsEnded.Inc()
	metrics.ActiveSessions.Set(0)
	metrics.CountdownSeconds.Set(0)

	c.publish(event.TypeSessionEnded, c.payloadLocked(s, ""))
}

func (c *Controller) stopCountdownLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// run drives one countdown. The generation guard keeps a timer that raced a
// session switch from ticking the new countdown.
func (c *Controller) run(gen uint64, stop <-chan struct{}) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if c.tickOnce(gen) {
				return
			}
		}
	}
}

// tickOnce decrements the countdown; it reports whether this timer is done.
func (c *Controller) tickOnce(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.active == nil || c.paused {
		return true
	}
	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}
	metrics.CountdownSeconds.Set(float64(c.remaining))
	if c.remaining == 0 {
		c.terminateLocked(c.active)
		return true
	}
	return false
}

func (c *Controller) snapshotLocked(s *Session) LiveSnapshot {
	total := len(s.Attendees)
	return LiveSnapshot{
		Session:      s.clone(),
		Total:        total,
		Present:      total,
		Absent:       0,
		RemainingSec: c.remaining,
		Timer:        FormatClock(c.remaining),
		Paused:       c.paused,
	}
}

func (c *Controller) payloadLocked(s *Session, method string) EventPayload {
	return EventPayload{
		SessionID:  s.ID,
		Code:       s.Code,
		Course:     s.Course,
		Class:      s.Class,
		Mode:       s.Mode,
		Date:       s.Date,
		Total:      len(s.Attendees),
		ManualAdds: s.ManualAdds,
		Method:     method,
		Active:     c.active != nil && c.active.ID == s.ID,
	}
}

// publish enqueues a notification without blocking the caller. Messages are
// enqueued under the controller lock and drained by a single writer, so
// subscribers observe mutations in the order they happened.
func (c *Controller) publish(typ string, p EventPayload) {
	if c.bus == nil {
		return
	}
	body, _ := json.Marshal(p)
	select {
	case c.events <- event.Message{Type: typ, Body: body}:
	default:
		log.Printf("event backlog full, dropping %s", typ)
	}
}

// forward is the one writer between the controller and the bus.
func (c *Controller) forward() {
	for msg := range c.events {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.bus.Publish(ctx, msg)
		cancel()
		if err != nil {
			log.Printf("event publish failed: %v", err)
		}
	}
}

// countdownSeconds applies the max(1, floor(minutes*60)) rule so a countdown
// is never zero or negative.
func countdownSeconds(durationMin float64) int {
	n := int(math.Floor(durationMin * 60))
	if n < 1 {
		n = 1
	}
	return n
}

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// shareCode builds a short human-shareable code like S7K2QX.
func shareCode(prefix string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return prefix + string(b)
}
