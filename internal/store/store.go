// Package store defines the Event Log Store contract: an append-only,
// per-child-per-day, timestamp-ordered log of sleep events with live
// snapshot subscriptions.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is an append-only sleep event log.
type Store interface {
	// Append adds one event. The event's day is derived from its timestamp.
	Append(ctx context.Context, event logic.Event) error

	// Load returns the ordered events of childID for day.
	Load(ctx context.Context, childID string, day Day) ([]logic.Event, error)

	// Subscribe delivers the complete ordered event list for childID and day,
	// once immediately and again after every change. A slow reader only ever
	// sees the latest snapshot. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, childID string, day Day) (<-chan []logic.Event, error)
}

// Day is a facility-local calendar date, formatted 2006-01-02.
type Day string

const dayLayout = "2006-01-02"

// DayOf returns the calendar date of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format(dayLayout))
}

// ParseDay validates s as a Day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", fmt.Errorf("store: parse day %q: %w", s, err)
	}
	return Day(s), nil
}

// Start returns local midnight at the beginning of d.
func (d Day) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dayLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// String implements fmt.Stringer.
func (d Day) String() string {
	return string(d)
}

// SortEvents orders events by timestamp, keeping arrival order for ties.
func SortEvents(events []logic.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// Offer replaces any undelivered snapshot in ch with snap. ch must have
// capacity 1 and a single sender.
func Offer(ch chan []logic.Event, snap []logic.Event) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
