// Package jobs runs background maintenance through asynq.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	TaskTypeAttemptSweep = "verification:attempt_sweep"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// NewAttemptSweepTask builds the periodic task that releases expired attempt
// cool-downs. It carries no payload: the cut-off is computed at execution
// time, not at enqueue time.
func NewAttemptSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAttemptSweep, nil, asynq.Queue(QueueDefault))
}
