package store

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	loc *time.Location

	mu     sync.Mutex
	logs   map[string][]logic.Event
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	mu     sync.Mutex
	ch     chan []logic.Event
	closed bool
}

func (s *memorySub) offer(snap []logic.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		Offer(s.ch, snap)
	}
}

func (s *memorySub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// NewMemory creates an empty store that buckets events by day in loc.
func NewMemory(loc *time.Location) *Memory {
	if loc == nil {
		loc = time.Local
	}
	return &Memory{
		loc:  loc,
		logs: make(map[string][]logic.Event),
		subs: make(map[string]map[*memorySub]struct{}),
	}
}

func memoryKey(childID string, day Day) string {
	return childID + "/" + string(day)
}

// Append implements Store.
func (m *Memory) Append(ctx context.Context, event logic.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := memoryKey(event.ChildID, DayOf(event.Timestamp, m.loc))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.logs[key] = append(m.logs[key], event)
	// Offer never blocks, so delivering under m.mu keeps snapshots in append order.
	snap := m.snapshotLocked(key)
	for sub := range m.subs[key] {
		sub.offer(snap)
	}
	m.mu.Unlock()
	return nil
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, childID string, day Day) ([]logic.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.snapshotLocked(memoryKey(childID, day)), nil
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ctx context.Context, childID string, day Day) (<-chan []logic.Event, error) {
	key := memoryKey(childID, day)
	sub := &memorySub{ch: make(chan []logic.Event, 1)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.subs[key] == nil {
		m.subs[key] = make(map[*memorySub]struct{})
	}
	m.subs[key][sub] = struct{}{}
	sub.offer(m.snapshotLocked(key))
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[key], sub)
		if len(m.subs[key]) == 0 {
			delete(m.subs, key)
		}
		m.mu.Unlock()
		sub.close()
	}()

	return sub.ch, nil
}

// Close closes all subscriptions and rejects further calls.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	var subs []*memorySub
	for _, set := range m.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	m.subs = make(map[string]map[*memorySub]struct{})
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}

func (m *Memory) snapshotLocked(key string) []logic.Event {
	log := m.logs[key]
	snap := make([]logic.Event, len(log))
	copy(snap, log)
	SortEvents(snap)
	return snap
}
