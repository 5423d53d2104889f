// Package verification implements the attempt-limiting policy over stored
// verification records.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kvaty/gatekeeper-bot/internal/domain"
	"github.com/kvaty/gatekeeper-bot/internal/repository"
	"github.com/kvaty/gatekeeper-bot/pkg/config"
)

// Status is the verification state of a (user, chat) pair.
type Status int

const (
	// StatusAllowed means the user may take (another) quiz attempt.
	StatusAllowed Status = iota
	// StatusLimitReached means all attempts are spent until the sweep resets them.
	StatusLimitReached
	// StatusUserNotFound means no record exists yet for the pair.
	StatusUserNotFound
	// StatusAlreadyVerified means the user has passed and keeps chat access.
	StatusAlreadyVerified
)

// String implements fmt.Stringer for logging.
func (s Status) String() string {
	switch s {
	case StatusAllowed:
		return "allowed"
	case StatusLimitReached:
		return "limit_reached"
	case StatusUserNotFound:
		return "user_not_found"
	case StatusAlreadyVerified:
		return "already_verified"
	default:
		return "unknown"
	}
}

// ErrNoRecord indicates an attempt was recorded for a pair without a record.
var ErrNoRecord = errors.New("no verification record for attempt")

// Policy decides whether a user may attempt verification and mutates the
// persisted attempt state. It holds the policy constants so the wizard's
// scoring logic stays free of them.
type Policy struct {
	repo          repository.VerificationRepository
	log           *slog.Logger
	maxAttempts   int
	resetInterval time.Duration
	now           func() time.Time
}

// NewPolicy constructs the attempt policy from configuration.
func NewPolicy(repo repository.VerificationRepository, log *slog.Logger, cfg config.VerificationConfig) *Policy {
	if log == nil {
		log = slog.Default()
	}

	return &Policy{
		repo:          repo,
		log:           log,
		maxAttempts:   cfg.MaxAttempts,
		resetInterval: cfg.ResetInterval(),
		now:           time.Now,
	}
}

// Status classifies the pair. Decision order: missing record, already
// verified, exhausted attempts, allowed.
func (p *Policy) Status(ctx context.Context, userID, chatID int64) (Status, error) {
	record, err := p.repo.Find(ctx, userID, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return StatusUserNotFound, nil
		}
		return 0, fmt.Errorf("load verification record: %w", err)
	}

	if !record.IsMuted {
		return StatusAlreadyVerified, nil
	}

	if record.Attempts >= p.maxAttempts {
		return StatusLimitReached, nil
	}

	return StatusAllowed, nil
}

// HandleMemberJoined ensures a muted record exists for the pair. Existing
// records are left untouched so a re-join never resets attempts.
func (p *Policy) HandleMemberJoined(ctx context.Context, userID, chatID int64) error {
	_, err := p.repo.Find(ctx, userID, chatID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return fmt.Errorf("load verification record: %w", err)
	}

	if _, err := p.repo.Create(ctx, userID, chatID); err != nil {
		return fmt.Errorf("create verification record: %w", err)
	}

	p.log.Info("verification record created",
		slog.Int64("user_id", userID),
		slog.Int64("chat_id", chatID),
	)

	return nil
}

// RecordAttempt increments the attempt counter and stamps the attempt time.
// Returns the new attempt count.
func (p *Policy) RecordAttempt(ctx context.Context, userID, chatID int64) (int, error) {
	record, err := p.repo.Find(ctx, userID, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return 0, ErrNoRecord
		}
		return 0, fmt.Errorf("load verification record: %w", err)
	}

	attempts := record.Attempts + 1
	at := p.now().UTC()
	patch := repository.RecordPatch{Attempts: &attempts, LastAttemptAt: &at}

	if err := p.repo.Update(ctx, userID, chatID, patch); err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}

	return attempts, nil
}

// GrantAccess marks the pair verified. The caller is responsible for the
// matching permission change at the transport.
func (p *Policy) GrantAccess(ctx context.Context, userID, chatID int64) error {
	muted := false
	at := p.now().UTC()
	patch := repository.RecordPatch{IsMuted: &muted, LastAttemptAt: &at}

	if err := p.repo.Update(ctx, userID, chatID, patch); err != nil {
		return fmt.Errorf("grant access: %w", err)
	}

	p.log.Info("chat access granted",
		slog.Int64("user_id", userID),
		slog.Int64("chat_id", chatID),
	)

	return nil
}

// SweepExpiredAttempts resets the attempt counter of every record whose last
// attempt is older than the reset interval. Returns the number of records reset.
func (p *Policy) SweepExpiredAttempts(ctx context.Context) (int64, error) {
	threshold := p.now().UTC().Add(-p.resetInterval)

	reset, err := p.repo.ResetExpiredAttempts(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("sweep expired attempts: %w", err)
	}

	if reset > 0 {
		p.log.Info("expired attempts reset", slog.Int64("records", reset))
	}

	return reset, nil
}

// RecordsFor returns every chat record of the user.
func (p *Policy) RecordsFor(ctx context.Context, userID int64) ([]domain.VerificationRecord, error) {
	return p.repo.FindAllByUser(ctx, userID)
}

// MaxAttempts returns the configured attempt ceiling.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ResetIntervalHours returns the cool-down window in whole hours.
func (p *Policy) ResetIntervalHours() int {
	return int(p.resetInterval / time.Hour)
}
