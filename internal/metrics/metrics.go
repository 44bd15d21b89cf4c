// Package metrics registers Prometheus instruments for the sleep-check daemon.
// All observation functions are no-ops until Init is called.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "sleepcheck_"

var (
	registerOnce sync.Once

	eventsRecorded     *prometheus.CounterVec
	actionRejections   *prometheus.CounterVec
	storeAppendLatency *prometheus.HistogramVec
	alertsFired        *prometheus.CounterVec
	channelFailures    *prometheus.CounterVec
	anomalies          *prometheus.CounterVec
	openSessions       *prometheus.GaugeVec
	secondsRemaining   *prometheus.GaugeVec
)

// Init registers instruments with reg (prometheus.DefaultRegisterer if nil).
// Safe to call more than once; only the first call registers.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		eventsRecorded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_recorded_total",
				Help: "Sleep events appended to the event log, by kind",
			},
			[]string{"kind"},
		)
		actionRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "action_rejections_total",
				Help: "Session actions rejected before any store write, by reason",
			},
			[]string{"reason"},
		)
		storeAppendLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_append_latency_seconds",
				Help:    "Event log append latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		alertsFired = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_fired_total",
				Help: "Countdown threshold alerts dispatched, by threshold",
			},
			[]string{"threshold"},
		)
		channelFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_channel_failures_total",
				Help: "Alert channel failures, by channel",
			},
			[]string{"channel"},
		)
		anomalies = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconstruction_anomalies_total",
				Help: "Malformed-log findings seen during reconstruction, by kind",
			},
			[]string{"kind"},
		)
		openSessions = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "open_session",
				Help: "1 if the child currently has an open sleep session",
			},
			[]string{"child"},
		)
		secondsRemaining = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "countdown_seconds_remaining",
				Help: "Seconds until the next sleep check is due",
			},
			[]string{"child"},
		)

		reg.MustRegister(
			eventsRecorded,
			actionRejections,
			storeAppendLatency,
			alertsFired,
			channelFailures,
			anomalies,
			openSessions,
			secondsRemaining,
		)
	})
}

// IncEventRecorded counts a successful append.
func IncEventRecorded(kind string) {
	if eventsRecorded != nil {
		eventsRecorded.WithLabelValues(kind).Inc()
	}
}

// IncActionRejected counts a precondition failure.
func IncActionRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if actionRejections != nil {
		actionRejections.WithLabelValues(reason).Inc()
	}
}

// ObserveAppend records store append latency.
func ObserveAppend(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	if storeAppendLatency != nil {
		storeAppendLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncAlertFired counts a threshold alert.
func IncAlertFired(threshold string) {
	if alertsFired != nil {
		alertsFired.WithLabelValues(threshold).Inc()
	}
}

// IncChannelFailure counts an alert channel failure.
func IncChannelFailure(channel string) {
	if channelFailures != nil {
		channelFailures.WithLabelValues(channel).Inc()
	}
}

// IncAnomaly counts a reconstruction anomaly.
func IncAnomaly(kind string) {
	if anomalies != nil {
		anomalies.WithLabelValues(kind).Inc()
	}
}

// SetCountdown publishes a child's session and countdown gauges.
func SetCountdown(child string, open bool, remaining int) {
	if openSessions == nil || secondsRemaining == nil {
		return
	}
	if !open {
		openSessions.WithLabelValues(child).Set(0)
		secondsRemaining.DeleteLabelValues(child)
		return
	}
	openSessions.WithLabelValues(child).Set(1)
	secondsRemaining.WithLabelValues(child).Set(float64(remaining))
}
