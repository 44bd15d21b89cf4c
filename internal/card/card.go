// Package card runs one child's live sleep-check state.
//
// A Card subscribes to the child's event log for the current day, rebuilds
// the day from every snapshot it receives and keeps the child's countdown
// bound to the open session. At local midnight it moves to the new day.
package card

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/alert"
	"github.com/sweeney/sleepcheck/internal/countdown"
	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/metrics"
	"github.com/sweeney/sleepcheck/internal/store"
)

const defaultRetryDelay = 5 * time.Second

// Options configures a Card.
type Options struct {
	ChildID  string
	Name     string
	Store    store.Store
	Alerter  alert.Alerter
	Clock    countdown.Clock
	Location *time.Location
	Logger   *zap.Logger
	// RetryDelay is the wait before resubscribing after a store failure.
	RetryDelay time.Duration
	// OnChange, if set, is called after every applied snapshot.
	OnChange func(Snapshot)
}

// Snapshot is a point-in-time view of a card.
type Snapshot struct {
	ChildID           string
	Name              string
	Day               store.Day
	Sessions          []logic.Session
	Open              *logic.Session
	Abandoned         []logic.Session
	Anomalies         []logic.Anomaly
	TotalSleepMinutes int
	Countdown         logic.CountdownState
	EventCount        int
	UpdatedAt         time.Time
	Subscribed        bool
}

// Card is one child's runtime.
type Card struct {
	id         string
	name       string
	store      store.Store
	clock      countdown.Clock
	loc        *time.Location
	logger     *zap.Logger
	retryDelay time.Duration
	onChange   func(Snapshot)
	engine     *countdown.Engine

	mu         sync.RWMutex
	day        store.Day
	events     []logic.Event
	updated    time.Time
	subscribed bool
	reported   map[logic.Anomaly]bool
}

// New creates a card. Alerts from its countdown are tagged with the child ID.
func New(opts Options) *Card {
	if opts.Clock == nil {
		opts.Clock = countdown.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Name == "" {
		opts.Name = opts.ChildID
	}
	var alerter countdown.Alerter
	if opts.Alerter != nil {
		alerter = alert.ForChild(opts.Alerter, opts.ChildID)
	}
	logger := opts.Logger.With(zap.String("child_id", opts.ChildID))
	return &Card{
		id:         opts.ChildID,
		name:       opts.Name,
		store:      opts.Store,
		clock:      opts.Clock,
		loc:        opts.Location,
		logger:     logger,
		retryDelay: opts.RetryDelay,
		onChange:   opts.OnChange,
		engine:     countdown.New(opts.ChildID, opts.Clock, alerter, opts.Logger),
		reported:   make(map[logic.Anomaly]bool),
	}
}

// ID returns the child ID.
func (c *Card) ID() string { return c.id }

// Countdown returns the card's countdown engine.
func (c *Card) Countdown() *countdown.Engine { return c.engine }

// Run follows the event log until ctx is done, ticking the countdown on
// every value from tick. The countdown is torn down on return.
func (c *Card) Run(ctx context.Context, tick <-chan time.Time) {
	defer c.engine.Stop()
	defer c.setSubscribed(false)

	for {
		day := store.DayOf(c.clock.Now(), c.loc)
		err := c.follow(ctx, day, tick)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Day rolled over; follow the new day immediately.
			continue
		}
		c.logger.Error("event log subscription failed, retrying",
			zap.String("day", string(day)),
			zap.Duration("retry_in", c.retryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
}

// follow consumes one day's subscription. It returns nil when the local
// date changes and an error when the subscription fails or closes.
func (c *Card) follow(ctx context.Context, day store.Day, tick <-chan time.Time) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := c.store.Subscribe(subCtx, c.id, day)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", day, err)
	}
	c.resetDay(day)
	c.setSubscribed(true)
	c.logger.Info("following event log", zap.String("day", string(day)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case events, ok := <-ch:
			if !ok {
				c.setSubscribed(false)
				return fmt.Errorf("subscription %s closed", day)
			}
			c.Apply(day, events)
		case <-tick:
			c.engine.Tick(ctx)
			if now := store.DayOf(c.clock.Now(), c.loc); now != day {
				c.logger.Info("day rollover", zap.String("from", string(day)), zap.String("to", string(now)))
				return nil
			}
		}
	}
}

func (c *Card) resetDay(day store.Day) {
	c.mu.Lock()
	if c.day != day {
		c.day = day
		c.events = nil
		c.reported = make(map[logic.Anomaly]bool)
	}
	c.mu.Unlock()
}

func (c *Card) setSubscribed(v bool) {
	c.mu.Lock()
	c.subscribed = v
	c.mu.Unlock()
}

// Apply rebuilds the card from a full snapshot of day's events and binds
// the countdown to the open session, if any.
func (c *Card) Apply(day store.Day, events []logic.Event) {
	now := c.clock.Now()
	live := day == store.DayOf(now, c.loc)
	rec := logic.Reconstruct(events, logic.ReconstructOptions{Now: now, Live: live})

	c.mu.Lock()
	c.day = day
	c.events = events
	c.updated = now
	var fresh []logic.Anomaly
	for _, a := range rec.Anomalies {
		if !c.reported[a] {
			c.reported[a] = true
			fresh = append(fresh, a)
		}
	}
	c.mu.Unlock()

	for _, a := range fresh {
		metrics.IncAnomaly(string(a.Kind))
		c.logger.Warn("malformed sleep log",
			zap.String("anomaly", string(a.Kind)),
			zap.String("event_id", a.EventID),
			zap.String("session_id", a.SessionID),
			zap.String("day", string(day)),
		)
	}

	if rec.Open != nil && live {
		c.engine.Start(rec.Open.Checkpoint())
	} else {
		c.engine.Stop()
	}

	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}

// Snapshot returns the card's current view. The sleep total is recomputed
// at call time so the live component stays current between log changes.
func (c *Card) Snapshot() Snapshot {
	c.mu.RLock()
	day, events, updated, subscribed := c.day, c.events, c.updated, c.subscribed
	c.mu.RUnlock()

	now := c.clock.Now()
	rec := logic.Reconstruct(events, logic.ReconstructOptions{
		Now:  now,
		Live: day == store.DayOf(now, c.loc),
	})
	return Snapshot{
		ChildID:           c.id,
		Name:              c.name,
		Day:               day,
		Sessions:          rec.Sessions,
		Open:              rec.Open,
		Abandoned:         rec.Abandoned,
		Anomalies:         rec.Anomalies,
		TotalSleepMinutes: rec.TotalSleepMinutes,
		Countdown:         c.engine.State(),
		EventCount:        len(events),
		UpdatedAt:         updated,
		Subscribed:        subscribed,
	}
}
