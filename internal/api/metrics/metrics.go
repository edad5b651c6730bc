// Package metrics defines and registers the custom Prometheus metrics of the
// LogiFlow auth subsystem. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry on package load.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logiflow"

// Channel label values.
const (
	ChannelForm = "form"
	ChannelAPI  = "api"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// ── Login / signup ───────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Labels:
//   - channel: "form" (session flow) or "api" (token flow)
//   - result: "success", "rejected", "invalid" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by channel and result.",
	},
	[]string{"channel", "result"},
)

// SignupsTotal counts signup attempts.
// Labels:
//   - channel: "form" or "api"
//   - result: "success", "invalid", "conflict" or "error"
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "signups_total",
		Help:      "Total number of signup attempts, by channel and result.",
	},
	[]string{"channel", "result"},
)

// TokensIssuedTotal counts bearer tokens handed out by the JSON API.
var TokensIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "tokens_issued_total",
		Help:      "Total number of bearer tokens issued.",
	},
)

// ── Gates ────────────────────────────────────────────────────────────────────

// GateRejectionsTotal counts requests turned away by a request gate.
// Labels:
//   - gate: "session" or "bearer"
//   - reason: "no_session", "user_gone", "no_token", "invalid_token"
var GateRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "gate_rejections_total",
		Help:      "Total number of requests rejected by an authentication gate.",
	},
	[]string{"gate", "reason"},
)

// SignupDuration measures signup orchestration, which bcrypt dominates.
var SignupDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "signup_duration_seconds",
		Help:      "Duration of signup orchestration (hash, insert, stamp).",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
)

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
