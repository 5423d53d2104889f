// Package repository implements PostgreSQL persistence for verification records
// and the media handle cache.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kvaty/gatekeeper-bot/internal/domain"
)

// ErrRecordNotFound indicates that no verification record exists for the key.
var ErrRecordNotFound = errors.New("verification record not found")

// RecordPatch describes a partial update of a verification record. Nil fields
// are left untouched.
type RecordPatch struct {
	IsMuted       *bool
	Attempts      *int
	LastAttemptAt *time.Time
}

// VerificationRepository defines persistence operations for verification records.
type VerificationRepository interface {
	Find(ctx context.Context, userID, chatID int64) (*domain.VerificationRecord, error)
	FindAllByUser(ctx context.Context, userID int64) ([]domain.VerificationRecord, error)
	Create(ctx context.Context, userID, chatID int64) (*domain.VerificationRecord, error)
	Update(ctx context.Context, userID, chatID int64, patch RecordPatch) error
	ResetExpiredAttempts(ctx context.Context, threshold time.Time) (int64, error)
}

type verificationRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewVerificationRepository creates a new SQL-backed verification record repository.
func NewVerificationRepository(db *sql.DB, log *slog.Logger) VerificationRepository {
	return &verificationRepository{
		db:  db,
		log: log,
	}
}

const recordColumns = "id, user_id, chat_id, is_muted, attempts, last_attempt_at, created_at"

// Find retrieves the record for a (user, chat) pair, or ErrRecordNotFound.
func (r *verificationRepository) Find(ctx context.Context, userID, chatID int64) (*domain.VerificationRecord, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM verification_records
		WHERE user_id = $1 AND chat_id = $2
	`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}

		r.logError("find", userID, chatID, err)
		return nil, fmt.Errorf("select verification record: %w", err)
	}

	return record, nil
}

// FindAllByUser returns every chat record for the given user.
func (r *verificationRepository) FindAllByUser(ctx context.Context, userID int64) ([]domain.VerificationRecord, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM verification_records
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logError("find_all", userID, 0, err)
		return nil, fmt.Errorf("select verification records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.VerificationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}

	return records, nil
}

// Create inserts a muted zero-attempt record; on a duplicate key the existing
// record is returned unchanged.
func (r *verificationRepository) Create(ctx context.Context, userID, chatID int64) (*domain.VerificationRecord, error) {
	const query = `
		INSERT INTO verification_records (user_id, chat_id, is_muted, attempts, created_at)
		VALUES ($1, $2, TRUE, 0, NOW())
		ON CONFLICT (user_id, chat_id) DO NOTHING
		RETURNING ` + recordColumns

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, chatID))
	if err == nil {
		return record, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict: the record already exists.
		return r.Find(ctx, userID, chatID)
	}

	r.logError("create", userID, chatID, err)
	return nil, fmt.Errorf("insert verification record: %w", err)
}

// Update applies the non-nil patch fields to the record.
func (r *verificationRepository) Update(ctx context.Context, userID, chatID int64, patch RecordPatch) error {
	fields := make([]string, 0, 3)
	values := make([]any, 0, 5)

	if patch.IsMuted != nil {
		values = append(values, *patch.IsMuted)
		fields = append(fields, fmt.Sprintf("is_muted = $%d", len(values)))
	}
	if patch.Attempts != nil {
		values = append(values, *patch.Attempts)
		fields = append(fields, fmt.Sprintf("attempts = $%d", len(values)))
	}
	if patch.LastAttemptAt != nil {
		values = append(values, *patch.LastAttemptAt)
		fields = append(fields, fmt.Sprintf("last_attempt_at = $%d", len(values)))
	}

	if len(fields) == 0 {
		return nil
	}

	values = append(values, userID, chatID)
	query := fmt.Sprintf(
		"UPDATE verification_records SET %s WHERE user_id = $%d AND chat_id = $%d",
		strings.Join(fields, ", "), len(values)-1, len(values),
	)

	result, err := r.db.ExecContext(ctx, query, values...)
	if err != nil {
		r.logError("update", userID, chatID, err)
		return fmt.Errorf("update verification record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// ResetExpiredAttempts zeroes the attempt counter of every record whose last
// attempt is at or before the threshold. Returns the number of records touched.
func (r *verificationRepository) ResetExpiredAttempts(ctx context.Context, threshold time.Time) (int64, error) {
	const query = `
		UPDATE verification_records
		SET attempts = 0
		WHERE attempts > 0
		  AND last_attempt_at IS NOT NULL
		  AND last_attempt_at <= $1
	`

	result, err := r.db.ExecContext(ctx, query, threshold)
	if err != nil {
		r.logError("reset_expired", 0, 0, err)
		return 0, fmt.Errorf("reset expired attempts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count reset records: %w", err)
	}

	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.VerificationRecord, error) {
	var (
		record        domain.VerificationRecord
		lastAttemptAt sql.NullTime
	)

	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ChatID,
		&record.IsMuted,
		&record.Attempts,
		&lastAttemptAt,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}

	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		record.LastAttemptAt = &t
	}

	return &record, nil
}

func (r *verificationRepository) logError(operation string, userID, chatID int64, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("verification repository operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Int64("chat_id", chatID),
		slog.Any("error", err),
	)
}
