package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LinkState reports whether the bridge token is currently paired
	// to a backend account (1=linked, 0=unlinked).
	LinkState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simbridge_link_state",
			Help: "Whether the bridge is linked to a backend account (1=linked, 0=unlinked).",
		},
	)

	// PushesSent counts successful pushes per cadence kind.
	PushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbridge_pushes_sent_total",
			Help: "Total pushes delivered to the backend.",
		},
		[]string{"kind"}, // heartbeat, telemetry, diagnostic
	)

	// PushesSkipped counts telemetry ticks skipped by each gate.
	PushesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbridge_pushes_skipped_total",
			Help: "Telemetry ticks skipped, labelled by the gate that failed.",
		},
		[]string{"reason"}, // not_active, no_snapshot, stale_snapshot, invalid_coordinates
	)

	// NetworkErrors counts failed or timed-out requests per cadence kind.
	NetworkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbridge_network_errors_total",
			Help: "Backend requests that failed or timed out.",
		},
		[]string{"kind"}, // poll, heartbeat, telemetry, diagnostic
	)

	// InFlightSkips counts invocations skipped because a request of the
	// same kind was still outstanding.
	InFlightSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbridge_inflight_skips_total",
			Help: "Scheduled attempts skipped due to an outstanding request of the same kind.",
		},
		[]string{"kind"},
	)

	// CommandsParsed counts commands accepted by the interpreter.
	CommandsParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simbridge_commands_parsed_total",
			Help: "Commands parsed from backend responses.",
		},
	)

	// CommandsApplied counts command applications by outcome.
	CommandsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simbridge_commands_applied_total",
			Help: "Command applications, labelled by outcome.",
		},
		[]string{"outcome"}, // applied, fallback, failed
	)

	// CommandsDropped counts commands dropped before application because
	// the telemetry source was not ready.
	CommandsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simbridge_commands_dropped_total",
			Help: "Commands dropped in whole batches while the telemetry source was not ready.",
		},
	)

	// SampleFailures counts failed telemetry source reads.
	SampleFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simbridge_sample_failures_total",
			Help: "Failed telemetry source sample attempts.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		LinkState,
		PushesSent,
		PushesSkipped,
		NetworkErrors,
		InFlightSkips,
		CommandsParsed,
		CommandsApplied,
		CommandsDropped,
		SampleFailures,
	)
}
