package card

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/sleepcheck/internal/action"
)

// TickerFunc returns a tick channel and a function that stops it.
type TickerFunc func() (<-chan time.Time, func())

// SecondTicker ticks once per second.
func SecondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// Manager runs one independent card per child.
type Manager struct {
	cards []*Card
	byID  map[string]*Card
}

// NewManager creates a manager over cards, kept in the given order.
func NewManager(cards ...*Card) *Manager {
	m := &Manager{byID: make(map[string]*Card, len(cards))}
	for _, c := range cards {
		m.cards = append(m.cards, c)
		m.byID[c.ID()] = c
	}
	return m
}

// Card returns the card for childID.
func (m *Manager) Card(childID string) (*Card, bool) {
	c, ok := m.byID[childID]
	return c, ok
}

// Cards returns every card in order.
func (m *Manager) Cards() []*Card {
	return append([]*Card(nil), m.cards...)
}

// IDs returns the child IDs in order.
func (m *Manager) IDs() []string {
	ids := make([]string, len(m.cards))
	for i, c := range m.cards {
		ids[i] = c.ID()
	}
	return ids
}

// Countdown implements action.Countdowns.
func (m *Manager) Countdown(childID string) (action.Countdown, bool) {
	c, ok := m.byID[childID]
	if !ok {
		return nil, false
	}
	return c.Countdown(), true
}

// Snapshots returns every card's view in order.
func (m *Manager) Snapshots() []Snapshot {
	out := make([]Snapshot, len(m.cards))
	for i, c := range m.cards {
		out[i] = c.Snapshot()
	}
	return out
}

// Run starts every card with its own ticker and blocks until ctx is done
// and all cards have stopped. A nil ticker uses SecondTicker.
func (m *Manager) Run(ctx context.Context, ticker TickerFunc) {
	if ticker == nil {
		ticker = SecondTicker
	}
	var wg sync.WaitGroup
	for _, c := range m.cards {
		wg.Add(1)
		go func(c *Card) {
			defer wg.Done()
			tick, stop := ticker()
			defer stop()
			c.Run(ctx, tick)
		}(c)
	}
	wg.Wait()
}
