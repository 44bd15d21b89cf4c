package logic

import (
	"sort"
	"time"
)

// ReconstructOptions controls the live component of the sleep total.
type ReconstructOptions struct {
	// Now is the instant used for the open session's elapsed time.
	Now time.Time
	// Live adds the open session's elapsed minutes to TotalSleepMinutes.
	// It must be false when reconstructing a past date.
	Live bool
}

// Reconstruct folds a child's event list for one day into sessions and totals.
// It is a pure function: the same input always yields the same output.
//
// Events are ordered by timestamp, then by their position in the input
// (arrival order) for near-simultaneous writes from different devices.
// Malformed sequences never fail: orphan Check/Stop events are dropped and a
// Start that arrives while a run is open abandons that run. Both are reported
// in Anomalies.
func Reconstruct(events []Event, opts ReconstructOptions) Reconstruction {
	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var r Reconstruction
	var run []Event

	for _, e := range ordered {
		switch e.Kind {
		case KindStart:
			if len(run) > 0 {
				abandoned := buildSession(run, false)
				r.Abandoned = append(r.Abandoned, abandoned)
				r.Anomalies = append(r.Anomalies, Anomaly{
					Kind:      AnomalyAbandonedSession,
					EventID:   run[0].ID,
					SessionID: abandoned.SessionID,
				})
			}
			run = []Event{e}

		case KindCheck, KindStop:
			if len(run) == 0 {
				kind := AnomalyOrphanCheck
				if e.Kind == KindStop {
					kind = AnomalyOrphanStop
				}
				r.Anomalies = append(r.Anomalies, Anomaly{Kind: kind, EventID: e.ID, SessionID: e.SessionID})
				continue
			}
			if sid := run[0].SessionID; sid != "" && e.SessionID != "" && e.SessionID != sid {
				r.Anomalies = append(r.Anomalies, Anomaly{Kind: AnomalySessionMismatch, EventID: e.ID, SessionID: sid})
			}
			run = append(run, e)
			if e.Kind == KindStop {
				s := buildSession(run, true)
				r.Sessions = append(r.Sessions, s)
				r.ClosedMinutes += s.TotalDurationMinutes
				run = nil
			}
		}
	}

	r.TotalSleepMinutes = r.ClosedMinutes
	if len(run) > 0 {
		r.Sessions = append(r.Sessions, buildSession(run, false))
		r.Open = &r.Sessions[len(r.Sessions)-1]
		r.Open.Active = true
		if opts.Live {
			r.TotalSleepMinutes += WholeMinutes(opts.Now.Sub(r.Open.StartTime))
		}
	}

	return r
}

func buildSession(run []Event, closed bool) Session {
	events := make([]Event, len(run))
	copy(events, run)
	start := events[0]
	s := Session{
		SessionID: start.SessionID,
		ChildID:   start.ChildID,
		StartTime: start.Timestamp,
		Events:    events,
	}
	if closed {
		end := events[len(events)-1].Timestamp
		s.EndTime = &end
		s.TotalDurationMinutes = WholeMinutes(end.Sub(start.Timestamp))
	}
	return s
}

// WholeMinutes truncates d to whole minutes. Negative durations count as zero.
func WholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// IntervalMinutes returns the whole minutes between prev and now, as stored in
// Event.IntervalSinceLastMinutes.
func IntervalMinutes(prev, now time.Time) *int {
	m := WholeMinutes(now.Sub(prev))
	return &m
}
