package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvaty/gatekeeper-bot/internal/content"
	"github.com/kvaty/gatekeeper-bot/internal/domain"
	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/render"
	"github.com/kvaty/gatekeeper-bot/internal/repository"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
	"github.com/kvaty/gatekeeper-bot/pkg/config"
)

const (
	testUserID = int64(42)
	testChatID = int64(42)
	testGroup  = int64(-1001234)
)

// Three questions; the correct run is q_0, q_1, q_0.
const testDocument = `{
	"rules": [
		{"text": "rule one", "buttonText": "ok"},
		{"text": "rule two"}
	],
	"questions": [
		{"text": "q1", "options": ["right", "wrong"], "correctAnswers": [0]},
		{"text": "q2", "options": ["wrong", "right"], "correctAnswers": [1]},
		{"text": "q3", "options": ["right", "wrong"], "correctAnswers": [0]}
	],
	"misc": {
		"tryLater": {"text": "later {interval}"},
		"success": {"text": "passed"},
		"fail": {"text": "failed, {count} {try_noun} left"},
		"error": {"text": "broken"}
	}
}`

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*domain.VerificationRecord
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*domain.VerificationRecord)}
}

func repoKey(userID, chatID int64) string {
	return fmt.Sprintf("%d:%d", userID, chatID)
}

func (r *memoryRepo) Find(_ context.Context, userID, chatID int64) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[repoKey(userID, chatID)]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}

	copied := *record
	return &copied, nil
}

func (r *memoryRepo) FindAllByUser(_ context.Context, userID int64) ([]domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []domain.VerificationRecord
	for _, record := range r.records {
		if record.UserID == userID {
			records = append(records, *record)
		}
	}

	return records, nil
}

func (r *memoryRepo) Create(_ context.Context, userID, chatID int64) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := repoKey(userID, chatID)
	if existing, ok := r.records[key]; ok {
		copied := *existing
		return &copied, nil
	}

	record := &domain.VerificationRecord{
		UserID:    userID,
		ChatID:    chatID,
		IsMuted:   true,
		CreatedAt: time.Now().UTC(),
	}
	r.records[key] = record

	copied := *record
	return &copied, nil
}

func (r *memoryRepo) Update(_ context.Context, userID, chatID int64, patch repository.RecordPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[repoKey(userID, chatID)]
	if !ok {
		return repository.ErrRecordNotFound
	}

	if patch.IsMuted != nil {
		record.IsMuted = *patch.IsMuted
	}
	if patch.Attempts != nil {
		record.Attempts = *patch.Attempts
	}
	if patch.LastAttemptAt != nil {
		at := *patch.LastAttemptAt
		record.LastAttemptAt = &at
	}

	return nil
}

func (r *memoryRepo) ResetExpiredAttempts(_ context.Context, threshold time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reset int64
	for _, record := range r.records {
		if record.Attempts > 0 && record.LastAttemptAt != nil && !record.LastAttemptAt.After(threshold) {
			record.Attempts = 0
			reset++
		}
	}

	return reset, nil
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*session.Session)}
}

func (s *memoryStore) Load(_ context.Context, userID, chatID int64) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[repoKey(userID, chatID)]
	if !ok {
		return nil, session.ErrSessionNotFound
	}

	return sess, nil
}

func (s *memoryStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[repoKey(sess.UserID, sess.ChatID)] = sess
	return nil
}

func (s *memoryStore) Clear(_ context.Context, userID, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, repoKey(userID, chatID))
	return nil
}

type fakeTransport struct {
	nextID int
	texts  []string
	calls  []string
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, text string, _ []render.Action) (int, error) {
	f.calls = append(f.calls, "send_text")
	f.texts = append(f.texts, text)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, _ int64, _, caption string, _ []render.Action) (int, error) {
	f.calls = append(f.calls, "send_photo")
	f.texts = append(f.texts, caption)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) EditText(_ context.Context, _ int64, _ int, text string, _ []render.Action) error {
	f.calls = append(f.calls, "edit_text")
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) EditPhoto(_ context.Context, _ int64, _ int, _, caption string, _ []render.Action) error {
	f.calls = append(f.calls, "edit_photo")
	f.texts = append(f.texts, caption)
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, _ int64, _ int) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func (f *fakeTransport) lastText() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeRestrictor struct {
	unmuted [][2]int64
	err     error
}

func (f *fakeRestrictor) Unmute(_ context.Context, chatID, userID int64) error {
	if f.err != nil {
		return f.err
	}
	f.unmuted = append(f.unmuted, [2]int64{chatID, userID})
	return nil
}

type fakeResponder struct {
	texts  []string
	alerts []bool
}

func (f *fakeResponder) Respond(text string, alert bool) error {
	f.texts = append(f.texts, text)
	f.alerts = append(f.alerts, alert)
	return nil
}

type testRig struct {
	engine     *Engine
	repo       *memoryRepo
	store      *memoryStore
	transport  *fakeTransport
	restrictor *fakeRestrictor
	policy     *verification.Policy
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "steps.json")
	require.NoError(t, os.WriteFile(path, []byte(testDocument), 0o600))

	contentStore, err := content.Load(path, 0)
	require.NoError(t, err)

	log := testLogger()
	repo := newMemoryRepo()
	policy := verification.NewPolicy(repo, log, config.VerificationConfig{
		MaxAttempts:        3,
		ResetIntervalHours: 168,
	})

	transport := &fakeTransport{}
	renderer := render.NewRenderer(transport, log, 1024)
	store := newMemoryStore()
	restrictor := &fakeRestrictor{}
	errHandler := apperrors.NewHandler(log, false)

	return &testRig{
		engine:     NewEngine(contentStore, policy, renderer, store, restrictor, errHandler, log),
		repo:       repo,
		store:      store,
		transport:  transport,
		restrictor: restrictor,
		policy:     policy,
	}
}

func (r *testRig) session(t *testing.T) *session.Session {
	t.Helper()

	sess, err := r.store.Load(context.Background(), testUserID, testChatID)
	require.NoError(t, err)
	return sess
}

func (r *testRig) enter(t *testing.T) *session.Session {
	t.Helper()

	require.NoError(t, r.engine.Enter(context.Background(), testUserID, testChatID, testGroup))
	return r.session(t)
}

// walkToQuestions drives a fresh session through both rule pages.
func (r *testRig) walkToQuestions(t *testing.T) *session.Session {
	t.Helper()

	sess := r.enter(t)
	require.NoError(t, r.engine.Handle(context.Background(), sess, "rules_next", &fakeResponder{}))
	require.NoError(t, r.engine.Handle(context.Background(), sess, "rules_next", &fakeResponder{}))
	require.Equal(t, session.StageQuestions, sess.Stage)
	return sess
}

func TestEngine_EnterShowsFirstRule(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.enter(t)

	assert.Equal(t, session.StageRules, sess.Stage)
	assert.Equal(t, 0, sess.CurrentStep)
	assert.Equal(t, []string{"send_text"}, rig.transport.calls)
	assert.Contains(t, rig.transport.lastText(), "rule one")
}

func TestEngine_RulesNavigation(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.enter(t)

	require.NoError(t, rig.engine.Handle(ctx, sess, "rules_next", &fakeResponder{}))
	assert.Equal(t, 1, sess.CurrentStep)
	assert.Contains(t, rig.transport.lastText(), "rule two")

	require.NoError(t, rig.engine.Handle(ctx, sess, "rules_back", &fakeResponder{}))
	assert.Equal(t, 0, sess.CurrentStep)
	assert.Contains(t, rig.transport.lastText(), "rule one")
}

func TestEngine_BackOnFirstRuleOnlyNotifies(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.enter(t)

	rendersBefore := len(rig.transport.calls)
	responder := &fakeResponder{}

	require.NoError(t, rig.engine.Handle(ctx, sess, "rules_back", responder))

	assert.Equal(t, 0, sess.CurrentStep)
	assert.Len(t, rig.transport.calls, rendersBefore)
	require.Len(t, responder.texts, 1)
	assert.Equal(t, noticeFirstRule, responder.texts[0])
}

func TestEngine_RulesCompletionEntersQuiz(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	assert.Equal(t, 0, sess.CurrentStep)
	assert.Empty(t, sess.Answers)
	assert.Contains(t, rig.transport.lastText(), "q1")

	// The member record is created lazily at quiz entry.
	record, err := rig.repo.Find(context.Background(), testUserID, testGroup)
	require.NoError(t, err)
	assert.True(t, record.IsMuted)
}

func TestEngine_PassingRunUnmutesAndClearsSession(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))

	assert.Equal(t, [][2]int64{{testGroup, testUserID}}, rig.restrictor.unmuted)
	assert.Contains(t, rig.transport.lastText(), "passed")

	record, err := rig.repo.Find(ctx, testUserID, testGroup)
	require.NoError(t, err)
	assert.False(t, record.IsMuted)

	_, err = rig.store.Load(ctx, testUserID, testChatID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestEngine_OneWrongAnswerStillPasses(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{})) // wrong
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))

	assert.Len(t, rig.restrictor.unmuted, 1)
	assert.Contains(t, rig.transport.lastText(), "passed")
}

func TestEngine_FailedRunRecordsAttempt(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{})) // wrong
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{})) // wrong
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{})) // wrong

	assert.Empty(t, rig.restrictor.unmuted)
	assert.Contains(t, rig.transport.lastText(), "2 попытки left")

	record, err := rig.repo.Find(ctx, testUserID, testGroup)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Attempts)
	assert.NotNil(t, record.LastAttemptAt)
	assert.True(t, record.IsMuted)

	_, err = rig.store.Load(ctx, testUserID, testChatID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestEngine_ThirdFailureShowsCooldown(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	for run := 0; run < 3; run++ {
		sess := rig.walkToQuestions(t)
		require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{}))
		require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))
		require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{}))
	}

	assert.Contains(t, rig.transport.lastText(), "later 7 дней")

	record, err := rig.repo.Find(ctx, testUserID, testGroup)
	require.NoError(t, err)
	assert.Equal(t, 3, record.Attempts)
}

func TestEngine_EnterWithExhaustedAttemptsShowsCooldown(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	_, err := rig.repo.Create(ctx, testUserID, testGroup)
	require.NoError(t, err)
	attempts := 3
	require.NoError(t, rig.repo.Update(ctx, testUserID, testGroup, repository.RecordPatch{Attempts: &attempts}))

	require.NoError(t, rig.engine.Enter(ctx, testUserID, testChatID, testGroup))

	assert.Contains(t, rig.transport.lastText(), "later 7 дней")

	_, err = rig.store.Load(ctx, testUserID, testChatID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestEngine_BackDropsAnswerOfRevisitedQuestion(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))
	require.Equal(t, 2, sess.CurrentStep)

	require.NoError(t, rig.engine.Handle(ctx, sess, "q_back", &fakeResponder{}))

	assert.Equal(t, 1, sess.CurrentStep)
	assert.Equal(t, map[int]int{0: 1}, sess.Answers)
	assert.Contains(t, rig.transport.lastText(), "q2")
}

func TestEngine_BackOnFirstQuestionOnlyNotifies(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	responder := &fakeResponder{}
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_back", responder))

	assert.Equal(t, 0, sess.CurrentStep)
	require.Len(t, responder.texts, 1)
	assert.Equal(t, noticeFirstQuestion, responder.texts[0])
}

func TestEngine_OutOfRangeAnswerRejected(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	responder := &fakeResponder{}
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_9", responder))

	assert.Equal(t, 0, sess.CurrentStep)
	assert.Empty(t, sess.Answers)
	require.Len(t, responder.texts, 1)
	assert.Equal(t, noticeInvalidChoice, responder.texts[0])
	assert.True(t, responder.alerts[0])
}

func TestEngine_ForeignTokenRepaintsCurrentScreen(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	responder := &fakeResponder{}
	require.NoError(t, rig.engine.Handle(ctx, sess, "rules_next", responder))

	assert.Equal(t, session.StageQuestions, sess.Stage)
	assert.Equal(t, 0, sess.CurrentStep)
	require.Len(t, responder.texts, 1)
	assert.Equal(t, noticeUseButtons, responder.texts[0])
	assert.Contains(t, rig.transport.lastText(), "q1")
}

func TestEngine_RestartTokenReentersFlow(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	sess := rig.walkToQuestions(t)

	require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, RestartToken(testGroup), &fakeResponder{}))

	fresh := rig.session(t)
	assert.Equal(t, session.StageRules, fresh.Stage)
	assert.Equal(t, 0, fresh.CurrentStep)
	assert.Contains(t, rig.transport.lastText(), "rule one")
}

func TestEngine_UnmuteFailureShowsErrorScreen(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)
	rig.restrictor.err = fmt.Errorf("bot is not an admin")

	sess := rig.walkToQuestions(t)
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_1", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "q_0", &fakeResponder{}))

	assert.Contains(t, rig.transport.lastText(), "broken")

	// The record stays muted: database and chat state keep agreeing.
	record, err := rig.repo.Find(ctx, testUserID, testGroup)
	require.NoError(t, err)
	assert.True(t, record.IsMuted)
}

func TestEngine_AlreadyVerifiedGetsNotice(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	_, err := rig.repo.Create(ctx, testUserID, testGroup)
	require.NoError(t, err)
	muted := false
	require.NoError(t, rig.repo.Update(ctx, testUserID, testGroup, repository.RecordPatch{IsMuted: &muted}))

	sess := rig.enter(t)
	require.NoError(t, rig.engine.Handle(ctx, sess, "rules_next", &fakeResponder{}))
	require.NoError(t, rig.engine.Handle(ctx, sess, "rules_next", &fakeResponder{}))

	assert.Contains(t, rig.transport.lastText(), noticeVerified)

	_, err = rig.store.Load(ctx, testUserID, testChatID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
