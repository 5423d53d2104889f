// Package handlers contains the asynq task handlers.
package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/kvaty/gatekeeper-bot/internal/verification"
	"github.com/kvaty/gatekeeper-bot/pkg/metrics"
)

// AttemptSweepHandler releases members whose attempt cool-down has expired.
type AttemptSweepHandler struct {
	policy *verification.Policy
	log    *slog.Logger
}

func NewAttemptSweepHandler(policy *verification.Policy, log *slog.Logger) *AttemptSweepHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AttemptSweepHandler{policy: policy, log: log}
}

func (h *AttemptSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	reset, err := h.policy.SweepExpiredAttempts(ctx)
	metrics.RecordSweep(int(reset), err)

	if err != nil {
		h.log.ErrorContext(ctx, "attempt sweep failed",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return err
	}

	if reset > 0 {
		h.log.InfoContext(ctx, "attempt sweep released cooled-down members",
			slog.String("task_type", t.Type()),
			slog.Int64("reset", reset),
		)
	}

	return nil
}
