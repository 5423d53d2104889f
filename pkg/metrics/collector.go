// Package metrics exposes Prometheus collectors for the verification flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kvaty/gatekeeper-bot/internal/render"
	"github.com/kvaty/gatekeeper-bot/internal/wizard"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates handled labeled by kind and status",
		},
		[]string{"kind", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	verificationOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_outcomes_total",
			Help: "Total number of finished verification runs labeled by outcome",
		},
		[]string{"outcome"},
	)
	verificationAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_attempts_total",
			Help: "Total number of failed quiz attempts recorded",
		},
	)
	wizardRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_renders_total",
			Help: "Total number of wizard screen renders labeled by delivery mode",
		},
		[]string{"mode"},
	)
	attemptSweepResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attempt_sweep_resets_total",
			Help: "Total number of verification records reset by the attempt sweep",
		},
	)
	attemptSweepFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attempt_sweep_failures_total",
			Help: "Total number of failed attempt sweep runs",
		},
	)
)

func init() {
	render.RegisterRenderRecorder(RecordRender)
	wizard.RegisterOutcomeRecorder(func(outcome string) {
		RecordOutcome(outcome)
		if outcome == wizard.OutcomeFail || outcome == wizard.OutcomeCooldown {
			RecordAttempt()
		}
	})
}

// RecordUpdate increments update counters and records duration.
func RecordUpdate(kind, status string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	updatesTotal.WithLabelValues(kind, status).Inc()
	updateDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordOutcome tracks a finished verification run (pass, fail, cooldown, error).
func RecordOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}

	verificationOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordAttempt counts one recorded failed attempt.
func RecordAttempt() {
	verificationAttemptsTotal.Inc()
}

// RecordRender tracks how a wizard screen reached the chat.
func RecordRender(mode string) {
	if mode == "" {
		mode = "unknown"
	}

	wizardRendersTotal.WithLabelValues(mode).Inc()
}

// RecordSweep tracks the result of one attempt sweep run.
func RecordSweep(reset int, err error) {
	if err != nil {
		attemptSweepFailuresTotal.Inc()
		return
	}

	attemptSweepResetsTotal.Add(float64(reset))
}
