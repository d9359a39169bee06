// Package metrics defines the prometheus metrics exported by netmon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the passive monitor.
var (
	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netmon_refresh_total",
			Help: "Number of snapshot recomputations, by trigger.",
		},
		[]string{"trigger"},
	)
	SnapshotChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netmon_snapshot_changes_total",
			Help: "Number of recomputations that produced a different snapshot, by new network type.",
		},
		[]string{"type"},
	)
	Listeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netmon_listeners",
			Help: "Number of registered snapshot listeners across all monitors.",
		},
	)
	ListenerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netmon_listener_panics_total",
			Help: "Number of listener invocations that panicked.",
		},
	)
)

// Metrics for the active prober.
var (
	ProbeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netmon_probe_total",
			Help: "Number of active probes run, by probe and result.",
		},
		[]string{"probe", "result"},
	)
	ProbeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netmon_probe_errors_total",
			Help: "Number of active probe errors, by probe and error kind.",
		},
		[]string{"probe", "error"},
	)
	DownloadRate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "netmon_download_rate_mbps",
			Help: "A histogram of measured download rates.",
			Buckets: []float64{
				.1, .15, .25, .4, .6,
				1, 1.5, 2.5, 4, 6,
				10, 15, 25, 40, 60,
				100, 150, 250, 400, 600,
				1000},
		},
	)
	RoundTrip = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netmon_round_trip_seconds",
			Help:    "A histogram of individual latency probe round trips.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
)

// Metrics for the probe server.
var (
	ProbeRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netmon_probeserver_requests_current",
			Help: "A gauge of probe requests currently being served.",
		},
	)
	ProbeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netmon_probeserver_request_duration_seconds",
			Help:    "A histogram of probe request durations.",
			Buckets: []float64{.001, .01, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"code"},
	)
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netmon_stream_clients",
			Help: "Number of connected websocket stream clients.",
		},
	)
)
