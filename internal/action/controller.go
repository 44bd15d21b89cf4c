// Package action records sleep sessions: start, check and stop.
//
// Every operation re-derives the child's day from the event log before
// writing, so the controller never trusts a client's idea of whether a
// session is open. Successful Start and Check re-anchor the child's
// countdown before the call returns.
package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/metrics"
	"github.com/sweeney/sleepcheck/internal/store"
)

// Countdown is the part of a countdown engine the controller drives.
type Countdown interface {
	Start(checkpoint time.Time) bool
	Stop()
}

// Countdowns resolves a child's countdown.
type Countdowns interface {
	Countdown(childID string) (Countdown, bool)
}

// EventSink receives every recorded event after a successful append.
type EventSink interface {
	PublishEvent(event logic.Event) error
}

// Gesture is notified on every staff action. The audio pipeline uses it
// to acquire its output inside a user interaction.
type Gesture interface {
	Acquire(ctx context.Context) error
}

// Observation is what staff record at each step.
type Observation struct {
	Position  logic.Position  `json:"position"`
	Breathing logic.Breathing `json:"breathing"`
	Mood      logic.Mood      `json:"mood,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

// Options configures a Controller. Store and Identity are required.
type Options struct {
	Store      store.Store
	Identity   IdentityProvider
	Countdowns Countdowns
	Sink       EventSink
	Gesture    Gesture
	// Children restricts actions to these child IDs when non-empty.
	Children []string
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
	// NewEventID and NewSessionID default to UUIDv7 and UUIDv4.
	NewEventID   func() string
	NewSessionID func() string
}

// Controller is the Session Action Controller.
type Controller struct {
	store      store.Store
	identity   IdentityProvider
	countdowns Countdowns
	sink       EventSink
	gesture    Gesture
	children   map[string]bool
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
	eventID    func() string
	sessionID  func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Controller.
func New(opts Options) *Controller {
	c := &Controller{
		store:      opts.Store,
		identity:   opts.Identity,
		countdowns: opts.Countdowns,
		sink:       opts.Sink,
		gesture:    opts.Gesture,
		loc:        opts.Location,
		now:        opts.Now,
		logger:     opts.Logger,
		eventID:    opts.NewEventID,
		sessionID:  opts.NewSessionID,
		locks:      make(map[string]*sync.Mutex),
	}
	if len(opts.Children) > 0 {
		c.children = make(map[string]bool, len(opts.Children))
		for _, id := range opts.Children {
			c.children[id] = true
		}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.eventID == nil {
		c.eventID = newEventID
	}
	if c.sessionID == nil {
		c.sessionID = uuid.NewString
	}
	return c
}

// newEventID returns a time-ordered UUID so IDs sort with their events.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RecordStart opens a new session for childID.
func (c *Controller) RecordStart(ctx context.Context, childID string, obs Observation) (logic.Event, error) {
	return c.record(ctx, childID, logic.KindStart, obs)
}

// RecordCheck records a check in the open session.
func (c *Controller) RecordCheck(ctx context.Context, childID string, obs Observation) (logic.Event, error) {
	return c.record(ctx, childID, logic.KindCheck, obs)
}

// RecordStop closes the open session. obs.Mood is required.
func (c *Controller) RecordStop(ctx context.Context, childID string, obs Observation) (logic.Event, error) {
	return c.record(ctx, childID, logic.KindStop, obs)
}

func (c *Controller) record(ctx context.Context, childID string, kind logic.Kind, obs Observation) (logic.Event, error) {
	event, err := c.apply(ctx, childID, kind, obs)
	if err != nil {
		fields := []zap.Field{
			zap.String("child_id", childID),
			zap.String("kind", string(kind)),
			zap.String("reason", Code(err)),
			zap.Error(err),
		}
		if IsStoreError(err) {
			c.logger.Error("sleep action failed", fields...)
		} else {
			metrics.IncActionRejected(Code(err))
			c.logger.Info("sleep action rejected", fields...)
		}
		return logic.Event{}, err
	}
	return event, nil
}

func (c *Controller) apply(ctx context.Context, childID string, kind logic.Kind, obs Observation) (logic.Event, error) {
	if c.children != nil && !c.children[childID] {
		return logic.Event{}, fmt.Errorf("%w: %q", ErrUnknownChild, childID)
	}
	staff, ok := c.identityFor(ctx)
	if !ok {
		return logic.Event{}, ErrNotIdentified
	}
	c.acquireAudio(ctx)

	lock := c.childLock(childID)
	lock.Lock()
	defer lock.Unlock()

	now := c.now()
	events, err := c.store.Load(ctx, childID, store.DayOf(now, c.loc))
	if err != nil {
		return logic.Event{}, &StoreError{Op: "load", Err: err}
	}
	rec := logic.Reconstruct(events, logic.ReconstructOptions{Now: now, Live: true})

	event := logic.Event{
		ID:         c.eventID(),
		ChildID:    childID,
		Timestamp:  now,
		Kind:       kind,
		Position:   obs.Position,
		Breathing:  obs.Breathing,
		Mood:       obs.Mood,
		Notes:      obs.Notes,
		RecordedBy: staff,
	}

	switch kind {
	case logic.KindStart:
		if rec.HasOpen() {
			return logic.Event{}, ErrSessionAlreadyOpen
		}
		event.SessionID = c.sessionID()
	default:
		if !rec.HasOpen() {
			return logic.Event{}, ErrNoOpenSession
		}
		if kind == logic.KindStop && obs.Mood == "" {
			return logic.Event{}, ErrMissingMood
		}
		event.SessionID = rec.Open.SessionID
		event.IntervalSinceLastMinutes = logic.IntervalMinutes(rec.Open.LastEvent().Timestamp, now)
	}

	if err := logic.Validate(event); err != nil {
		return logic.Event{}, err
	}

	start := time.Now()
	err = c.store.Append(ctx, event)
	metrics.ObserveAppend(err, time.Since(start))
	if err != nil {
		return logic.Event{}, &StoreError{Op: "append", Err: err}
	}
	metrics.IncEventRecorded(string(kind))

	c.bindCountdown(event)
	c.publish(event)

	c.logger.Info("sleep event recorded",
		zap.String("child_id", childID),
		zap.String("kind", string(kind)),
		zap.String("session_id", event.SessionID),
		zap.String("event_id", event.ID),
		zap.String("staff", staff.Initials),
	)
	return event, nil
}

func (c *Controller) identityFor(ctx context.Context) (logic.Staff, bool) {
	if c.identity == nil {
		return logic.Staff{}, false
	}
	return c.identity.Identity(ctx)
}

func (c *Controller) acquireAudio(ctx context.Context) {
	if c.gesture == nil {
		return
	}
	if err := c.gesture.Acquire(ctx); err != nil {
		c.logger.Warn("audio acquire on staff action failed", zap.Error(err))
	}
}

// bindCountdown runs before the caller sees success, so the countdown is
// never left ticking against a superseded checkpoint.
func (c *Controller) bindCountdown(event logic.Event) {
	if c.countdowns == nil {
		return
	}
	cd, ok := c.countdowns.Countdown(event.ChildID)
	if !ok {
		return
	}
	if event.Kind == logic.KindStop {
		cd.Stop()
		return
	}
	cd.Start(event.Timestamp)
}

func (c *Controller) publish(event logic.Event) {
	if c.sink == nil {
		return
	}
	if err := c.sink.PublishEvent(event); err != nil {
		c.logger.Warn("event feed publish failed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

func (c *Controller) childLock(childID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[childID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[childID] = l
	}
	return l
}
