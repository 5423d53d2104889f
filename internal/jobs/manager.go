package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager enqueues one-off tasks outside the periodic schedule.
type Manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds the task enqueue client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) *Manager {
	return &Manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

// EnqueueAttemptSweep schedules an immediate sweep. Run at boot so members
// whose cool-down expired while the bot was down are released right away.
func (m *Manager) EnqueueAttemptSweep(ctx context.Context) error {
	info, err := m.client.EnqueueContext(ctx, NewAttemptSweepTask())
	if err != nil {
		return fmt.Errorf("enqueue attempt sweep: %w", err)
	}

	if m.log != nil {
		m.log.InfoContext(ctx, "enqueued attempt sweep", slog.String("task_id", info.ID))
	}

	return nil
}

// Close releases the underlying client connection.
func (m *Manager) Close() error {
	return m.client.Close()
}
