// Package report summarises one child's day for read-only consumers.
//
// Reports group sessions exactly as the live card does. The open session's
// elapsed time counts toward the total only when the day is today.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/store"
)

// Session is one reconstructed session with its check statistics.
type Session struct {
	SessionID       string        `json:"session_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	Active          bool          `json:"active"`
	DurationMinutes int           `json:"duration_minutes"`
	Checks          int           `json:"checks"`
	Intervals       IntervalStats `json:"intervals"`
	Events          []logic.Event `json:"events"`
}

// IntervalStats summarises the minutes between consecutive events.
type IntervalStats struct {
	Count      int `json:"count"`
	MaxMinutes int `json:"max_minutes"`
	// Overdue counts gaps longer than the check interval.
	Overdue int `json:"overdue"`
}

// Anomaly is a reconstruction finding in wire form.
type Anomaly struct {
	Kind      logic.AnomalyKind `json:"kind"`
	EventID   string            `json:"event_id"`
	SessionID string            `json:"session_id,omitempty"`
}

// Summary is a child's day.
type Summary struct {
	ChildID           string        `json:"child_id"`
	Day               store.Day     `json:"day"`
	Live              bool          `json:"live"`
	Sessions          []Session     `json:"sessions"`
	Abandoned         []Session     `json:"abandoned,omitempty"`
	Anomalies         []Anomaly     `json:"anomalies,omitempty"`
	TotalSleepMinutes int           `json:"total_sleep_minutes"`
	Intervals         IntervalStats `json:"intervals"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

// Day loads and summarises childID's events for day.
func Day(ctx context.Context, st store.Store, childID string, day store.Day, now time.Time, loc *time.Location) (Summary, error) {
	events, err := st.Load(ctx, childID, day)
	if err != nil {
		return Summary{}, fmt.Errorf("load %s/%s: %w", childID, day, err)
	}
	return Build(childID, day, events, now, loc), nil
}

// Build summarises events already loaded for day.
func Build(childID string, day store.Day, events []logic.Event, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	live := day == store.DayOf(now, loc)
	rec := logic.Reconstruct(events, logic.ReconstructOptions{Now: now, Live: live})

	sum := Summary{
		ChildID:           childID,
		Day:               day,
		Live:              live,
		Sessions:          make([]Session, 0, len(rec.Sessions)),
		TotalSleepMinutes: rec.TotalSleepMinutes,
		GeneratedAt:       now,
	}
	for _, s := range rec.Sessions {
		rs := fromSession(s, now, live)
		sum.Sessions = append(sum.Sessions, rs)
		sum.Intervals = merge(sum.Intervals, rs.Intervals)
	}
	for _, s := range rec.Abandoned {
		sum.Abandoned = append(sum.Abandoned, fromSession(s, now, false))
	}
	for _, a := range rec.Anomalies {
		sum.Anomalies = append(sum.Anomalies, Anomaly{Kind: a.Kind, EventID: a.EventID, SessionID: a.SessionID})
	}
	return sum
}

func fromSession(s logic.Session, now time.Time, live bool) Session {
	rs := Session{
		SessionID:       s.SessionID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Active:          s.Active,
		DurationMinutes: s.TotalDurationMinutes,
		Events:          s.Events,
	}
	if s.Active {
		rs.DurationMinutes = 0
		if live {
			rs.DurationMinutes = logic.WholeMinutes(now.Sub(s.StartTime))
		}
	}
	for i, e := range s.Events {
		if e.Kind == logic.KindCheck {
			rs.Checks++
		}
		if i == 0 {
			continue
		}
		gap := e.Timestamp.Sub(s.Events[i-1].Timestamp)
		rs.Intervals.Count++
		if m := logic.WholeMinutes(gap); m > rs.Intervals.MaxMinutes {
			rs.Intervals.MaxMinutes = m
		}
		if gap > logic.CheckInterval {
			rs.Intervals.Overdue++
		}
	}
	return rs
}

func merge(a, b IntervalStats) IntervalStats {
	a.Count += b.Count
	a.Overdue += b.Overdue
	if b.MaxMinutes > a.MaxMinutes {
		a.MaxMinutes = b.MaxMinutes
	}
	return a
}
