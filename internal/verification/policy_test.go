package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kvaty/gatekeeper-bot/internal/domain"
	"github.com/kvaty/gatekeeper-bot/internal/repository"
	"github.com/kvaty/gatekeeper-bot/pkg/config"
)

var errRepoFailure = errors.New("repository failure")

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Find(ctx context.Context, userID, chatID int64) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, userID, chatID)
	record, _ := args.Get(0).(*domain.VerificationRecord)
	return record, args.Error(1)
}

func (m *mockRepository) FindAllByUser(ctx context.Context, userID int64) ([]domain.VerificationRecord, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]domain.VerificationRecord)
	return records, args.Error(1)
}

func (m *mockRepository) Create(ctx context.Context, userID, chatID int64) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, userID, chatID)
	record, _ := args.Get(0).(*domain.VerificationRecord)
	return record, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, userID, chatID int64, patch repository.RecordPatch) error {
	args := m.Called(ctx, userID, chatID, patch)
	return args.Error(0)
}

func (m *mockRepository) ResetExpiredAttempts(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPolicy(repo repository.VerificationRepository, now time.Time) *Policy {
	policy := NewPolicy(repo, testLogger(), config.VerificationConfig{
		MaxAttempts:        3,
		ResetIntervalHours: 168,
	})
	policy.now = func() time.Time { return now }
	return policy
}

func TestPolicy_Status(t *testing.T) {
	ctx := context.Background()
	userID, chatID := int64(1), int64(-100)

	testCases := []struct {
		name     string
		record   *domain.VerificationRecord
		findErr  error
		expected Status
		wantErr  bool
	}{
		{
			name:     "no record",
			findErr:  repository.ErrRecordNotFound,
			expected: StatusUserNotFound,
		},
		{
			name:     "already verified",
			record:   &domain.VerificationRecord{IsMuted: false, Attempts: 3},
			expected: StatusAlreadyVerified,
		},
		{
			name:     "attempts exhausted",
			record:   &domain.VerificationRecord{IsMuted: true, Attempts: 3},
			expected: StatusLimitReached,
		},
		{
			name:     "attempts over ceiling still exhausted",
			record:   &domain.VerificationRecord{IsMuted: true, Attempts: 5},
			expected: StatusLimitReached,
		},
		{
			name:     "attempts remain",
			record:   &domain.VerificationRecord{IsMuted: true, Attempts: 2},
			expected: StatusAllowed,
		},
		{
			name:    "repository failure",
			findErr: errRepoFailure,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepository)
			repo.On("Find", mock.Anything, userID, chatID).Return(tc.record, tc.findErr).Once()

			policy := newTestPolicy(repo, time.Now())
			status, err := policy.Status(ctx, userID, chatID)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
			repo.AssertExpectations(t)
		})
	}
}

func TestPolicy_HandleMemberJoined_CreatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Find", mock.Anything, int64(1), int64(-100)).Return(nil, repository.ErrRecordNotFound).Once()
	repo.On("Create", mock.Anything, int64(1), int64(-100)).
		Return(&domain.VerificationRecord{UserID: 1, ChatID: -100, IsMuted: true}, nil).Once()

	policy := newTestPolicy(repo, time.Now())
	require.NoError(t, policy.HandleMemberJoined(ctx, 1, -100))
	repo.AssertExpectations(t)
}

func TestPolicy_HandleMemberJoined_KeepsExistingRecord(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Find", mock.Anything, int64(1), int64(-100)).
		Return(&domain.VerificationRecord{UserID: 1, ChatID: -100, Attempts: 2}, nil).Once()

	policy := newTestPolicy(repo, time.Now())
	require.NoError(t, policy.HandleMemberJoined(ctx, 1, -100))

	// No Create call: a re-join must not reset attempts.
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicy_RecordAttempt_IncrementsAndStamps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := new(mockRepository)
	repo.On("Find", mock.Anything, int64(1), int64(-100)).
		Return(&domain.VerificationRecord{IsMuted: true, Attempts: 1}, nil).Once()
	repo.On("Update", mock.Anything, int64(1), int64(-100), mock.MatchedBy(func(patch repository.RecordPatch) bool {
		return patch.Attempts != nil && *patch.Attempts == 2 &&
			patch.LastAttemptAt != nil && patch.LastAttemptAt.Equal(now) &&
			patch.IsMuted == nil
	})).Return(nil).Once()

	policy := newTestPolicy(repo, now)
	attempts, err := policy.RecordAttempt(ctx, 1, -100)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	repo.AssertExpectations(t)
}

func TestPolicy_RecordAttempt_NoRecord(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Find", mock.Anything, int64(1), int64(-100)).Return(nil, repository.ErrRecordNotFound).Once()

	policy := newTestPolicy(repo, time.Now())
	_, err := policy.RecordAttempt(ctx, 1, -100)

	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestPolicy_GrantAccess_Unmutes(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Update", mock.Anything, int64(1), int64(-100), mock.MatchedBy(func(patch repository.RecordPatch) bool {
		return patch.IsMuted != nil && !*patch.IsMuted
	})).Return(nil).Once()

	policy := newTestPolicy(repo, time.Now())
	require.NoError(t, policy.GrantAccess(ctx, 1, -100))
	repo.AssertExpectations(t)
}

func TestPolicy_SweepExpiredAttempts_ThresholdMath(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	expectedThreshold := now.Add(-168 * time.Hour)

	repo := new(mockRepository)
	repo.On("ResetExpiredAttempts", mock.Anything, mock.MatchedBy(func(threshold time.Time) bool {
		return threshold.Equal(expectedThreshold)
	})).Return(int64(4), nil).Once()

	policy := newTestPolicy(repo, now)
	reset, err := policy.SweepExpiredAttempts(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(4), reset)
	repo.AssertExpectations(t)
}
