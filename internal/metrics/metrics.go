package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Socket metrics
	ConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_connected_sessions",
			Help: "Open WebSocket sessions",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_events_received_total",
			Help: "Client events received",
		},
		[]string{"event"},
	)

	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_events_sent_total",
			Help: "Frames delivered to sessions, per event",
		},
		[]string{"event"},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_frames_dropped_total",
			Help: "Frames dropped on full send queues",
		},
	)

	// Coordinator metrics
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_active_rooms",
			Help: "Rooms with live coordinator state",
		},
	)

	SongChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_song_changes_total",
			Help: "Playback transitions to a different song",
		},
	)

	PersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_persist_failures_total",
			Help: "Failed collaborator writes/reads",
		},
		[]string{"op"},
	)

	RecoveredPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_recovered_panics_total",
			Help: "Panics caught in room actors and persistence jobs",
		},
	)

	// Metadata metrics
	MetadataLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_metadata_lookups_total",
			Help: "Metadata resolves by platform and outcome",
		},
		[]string{"platform", "result"},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_search_queries_total",
			Help: "Total search queries",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_rate_limit_hits_total",
			Help: "Events rejected by the chat rate limiter",
		},
		[]string{"event"},
	)
)
