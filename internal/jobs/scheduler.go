package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	sweepInterval  time.Duration
	log            *slog.Logger
}

// NewScheduler builds the periodic task scheduler.
func NewScheduler(redisOpt asynq.RedisConnOpt, sweepInterval time.Duration, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		sweepInterval:  sweepInterval,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	spec := fmt.Sprintf("@every %s", s.sweepInterval)

	if _, err := s.asynqScheduler.Register(spec, NewAttemptSweepTask()); err != nil {
		return fmt.Errorf("register attempt sweep task: %w", err)
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered attempt sweep task", slog.String("interval", s.sweepInterval.String()))
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
