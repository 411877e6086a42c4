package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	transportLatencySeconds *prometheus.HistogramVec
	messagesSentTotal       *prometheus.CounterVec
	uploadsTotal            *prometheus.CounterVec
	pollsTotal              prometheus.Counter
	pollFailuresTotal       prometheus.Counter
	timelineMergesTotal     prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the chat client.
func RegisterMetrics() {
	registerOnce.Do(func() {
		transportLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_transport_latency_seconds",
			Help:    "Latency distribution of chat backend calls.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"op"})

		messagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of messages successfully sent.",
		}, []string{"type"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_attachment_uploads_total",
			Help: "Total number of attachment upload attempts by outcome.",
		}, []string{"outcome"})

		pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_polls_total",
			Help: "Total number of timeline poll cycles executed.",
		})

		pollFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_poll_failures_total",
			Help: "Total number of poll cycles that failed.",
		})

		timelineMergesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_timeline_merged_messages_total",
			Help: "Total number of new messages folded in by poll merges.",
		})

		prometheus.MustRegister(
			transportLatencySeconds,
			messagesSentTotal,
			uploadsTotal,
			pollsTotal,
			pollFailuresTotal,
			timelineMergesTotal,
		)
	})
}

// TransportLatency exposes the latency histogram for backend calls.
func TransportLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return transportLatencySeconds
}

// MessagesSent exposes the counter for sent messages.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSentTotal
}

// Uploads exposes the counter for attachment uploads.
func Uploads() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// Polls exposes the counter for poll cycles.
func Polls() prometheus.Counter {
	RegisterMetrics()
	return pollsTotal
}

// PollFailures exposes the counter for failed poll cycles.
func PollFailures() prometheus.Counter {
	RegisterMetrics()
	return pollFailuresTotal
}

// TimelineMerges exposes the counter for merged-in messages.
func TimelineMerges() prometheus.Counter {
	RegisterMetrics()
	return timelineMergesTotal
}
