// Package pgstore implements the event log on PostgreSQL.
// Appends are announced with NOTIFY so subscribers re-read the child-day.
package pgstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/store"
)

// Channel is the LISTEN/NOTIFY channel carrying "<child>|<day>" payloads.
const Channel = "sleep_events"

//go:embed schema.sql
var schemaSQL string

const insertEventSQL = `
	INSERT INTO sleep_events (
		event_id, child_id, event_day, session_id, recorded_at, kind,
		position, breathing, mood, notes, interval_minutes, staff_initials, staff_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const notifySQL = `SELECT pg_notify($1, $2)`

const selectEventsSQL = `
	SELECT event_id, child_id, session_id, recorded_at, kind, position, breathing,
	       mood, notes, interval_minutes, staff_initials, staff_id
	FROM sleep_events
	WHERE child_id = $1 AND event_day = $2
	ORDER BY recorded_at, seq`

// Listener is the notification source used by Subscribe.
type Listener interface {
	Listen(channel string) error
	Notifications() <-chan *pq.Notification
	Close() error
}

type pqListener struct {
	*pq.Listener
}

func (l pqListener) Notifications() <-chan *pq.Notification {
	return l.Notify
}

// NewListener opens a lib/pq listener on dsn.
func NewListener(dsn string, logger *zap.Logger) Listener {
	l := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	return pqListener{l}
}

// Store is a store.Store backed by PostgreSQL.
type Store struct {
	db       *sql.DB
	loc      *time.Location
	logger   *zap.Logger
	listener Listener

	mu      sync.Mutex
	started bool
	subs    map[string]map[*subscriber]struct{}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan []logic.Event
	closed bool
}

// New creates a store. listener may be nil, in which case Subscribe fails.
func New(db *sql.DB, listener Listener, loc *time.Location, logger *zap.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:       db,
		loc:      loc,
		logger:   logger,
		listener: listener,
		subs:     make(map[string]map[*subscriber]struct{}),
	}
}

// Open connects to dsn, verifies the connection and creates a listener.
func Open(dsn string, loc *time.Location, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return New(db, NewListener(dsn, logger), loc, logger), nil
}

// EnsureSchema creates the events table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, e logic.Event) error {
	day := store.DayOf(e.Timestamp, s.loc)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback()

	var interval sql.NullInt64
	if e.IntervalSinceLastMinutes != nil {
		interval = sql.NullInt64{Int64: int64(*e.IntervalSinceLastMinutes), Valid: true}
	}
	_, err = tx.ExecContext(ctx, insertEventSQL,
		e.ID, e.ChildID, string(day), e.SessionID, e.Timestamp, string(e.Kind),
		string(e.Position), string(e.Breathing), nullString(string(e.Mood)), nullString(e.Notes),
		interval, e.RecordedBy.Initials, e.RecordedBy.ID,
	)
	if err != nil {
		return fmt.Errorf("pgstore: insert event %s: %w", e.ID, err)
	}
	if _, err := tx.ExecContext(ctx, notifySQL, Channel, notifyPayload(e.ChildID, day)); err != nil {
		return fmt.Errorf("pgstore: notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgstore: commit: %w", err)
	}
	return nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, childID string, day store.Day) ([]logic.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEventsSQL, childID, string(day))
	if err != nil {
		return nil, fmt.Errorf("pgstore: query events: %w", err)
	}
	defer rows.Close()

	events := []logic.Event{}
	for rows.Next() {
		var (
			e         logic.Event
			kind      string
			position  string
			breathing string
			mood      sql.NullString
			notes     sql.NullString
			interval  sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.ChildID, &e.SessionID, &e.Timestamp, &kind, &position,
			&breathing, &mood, &notes, &interval, &e.RecordedBy.Initials, &e.RecordedBy.ID); err != nil {
			return nil, fmt.Errorf("pgstore: scan event: %w", err)
		}
		e.Kind = logic.Kind(kind)
		e.Position = logic.Position(position)
		e.Breathing = logic.Breathing(breathing)
		e.Mood = logic.Mood(mood.String)
		e.Notes = notes.String
		if interval.Valid {
			m := int(interval.Int64)
			e.IntervalSinceLastMinutes = &m
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: iterate events: %w", err)
	}
	return events, nil
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(ctx context.Context, childID string, day store.Day) (<-chan []logic.Event, error) {
	if s.listener == nil {
		return nil, fmt.Errorf("pgstore: subscribe: no listener configured")
	}
	if err := s.startListener(); err != nil {
		return nil, err
	}

	events, err := s.Load(ctx, childID, day)
	if err != nil {
		return nil, err
	}

	key := notifyPayload(childID, day)
	sub := &subscriber{ch: make(chan []logic.Event, 1)}
	store.Offer(sub.ch, events)

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[*subscriber]struct{})
	}
	s.subs[key][sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[key], sub)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
		s.mu.Unlock()
		sub.mu.Lock()
		sub.closed = true
		close(sub.ch)
		sub.mu.Unlock()
	}()

	return sub.ch, nil
}

// Close stops the listener and closes the database.
func (s *Store) Close() error {
	if s.listener != nil {
		s.listener.Close()
	}
	return s.db.Close()
}

func (s *Store) startListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.listener.Listen(Channel); err != nil {
		return fmt.Errorf("pgstore: listen: %w", err)
	}
	s.started = true
	go s.dispatch(s.listener.Notifications())
	return nil
}

func (s *Store) dispatch(notifications <-chan *pq.Notification) {
	for n := range notifications {
		// A nil notification means the connection was re-established and
		// changes may have been missed: refresh every subscribed key.
		var keys []string
		s.mu.Lock()
		if n == nil {
			for key := range s.subs {
				keys = append(keys, key)
			}
		} else if _, ok := s.subs[n.Extra]; ok {
			keys = append(keys, n.Extra)
		}
		s.mu.Unlock()

		for _, key := range keys {
			s.refresh(key)
		}
	}
}

func (s *Store) refresh(key string) {
	childID, day, ok := parsePayload(key)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	events, err := s.Load(ctx, childID, day)
	cancel()
	if err != nil {
		s.logger.Error("refresh after notify failed",
			zap.String("child_id", childID),
			zap.String("day", string(day)),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs[key]))
	for sub := range s.subs[key] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		if !sub.closed {
			store.Offer(sub.ch, events)
		}
		sub.mu.Unlock()
	}
}

func notifyPayload(childID string, day store.Day) string {
	return childID + "|" + string(day)
}

func parsePayload(p string) (string, store.Day, bool) {
	i := strings.LastIndex(p, "|")
	if i <= 0 || i == len(p)-1 {
		return "", "", false
	}
	return p[:i], store.Day(p[i+1:]), true
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
