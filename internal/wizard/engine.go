package wizard

import (
	"context"
	"log/slog"

	"github.com/kvaty/gatekeeper-bot/internal/content"
	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/render"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
)

// User-visible transient notices.
const (
	noticeUseButtons    = "Пожалуйста, используйте кнопки на текущем сообщении."
	noticeFirstRule     = "Это начало."
	noticeFirstQuestion = "Вы на первом шаге."
	noticeInvalidChoice = "Некорректный выбор."
	noticeVerified      = "Вы уже прошли верификацию и можете писать в чате."
)

// Outcome labels reported to the recorder.
const (
	OutcomePass     = "pass"
	OutcomeFail     = "fail"
	OutcomeCooldown = "cooldown"
	OutcomeError    = "error"
)

var outcomeRecorder = func(outcome string) {}

// RegisterOutcomeRecorder allows external packages to observe finished runs.
func RegisterOutcomeRecorder(recorder func(outcome string)) {
	if recorder == nil {
		outcomeRecorder = func(string) {}
		return
	}

	outcomeRecorder = recorder
}

// Restrictor mutates a member's content-sending permissions in a group chat.
type Restrictor interface {
	Unmute(ctx context.Context, chatID, userID int64) error
}

// Responder answers the pressed button with a transient notice or alert.
type Responder interface {
	Respond(text string, alert bool) error
}

// Engine is the wizard state machine over rules and questions stages.
type Engine struct {
	content    *content.Store
	policy     *verification.Policy
	renderer   *render.Renderer
	sessions   session.Store
	restrictor Restrictor
	errHandler *apperrors.Handler
	log        *slog.Logger
}

// NewEngine wires the wizard together.
func NewEngine(
	contentStore *content.Store,
	policy *verification.Policy,
	renderer *render.Renderer,
	sessions session.Store,
	restrictor Restrictor,
	errHandler *apperrors.Handler,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		content:    contentStore,
		policy:     policy,
		renderer:   renderer,
		sessions:   sessions,
		restrictor: restrictor,
		errHandler: errHandler,
		log:        log,
	}
}

// Enter starts (or restarts) the flow for a user in a private conversation,
// verifying for targetChatID. The rendered-message shape of any previous
// session is carried over so the new screen replaces the old one in place.
func (e *Engine) Enter(ctx context.Context, userID, chatID, targetChatID int64) error {
	sess := session.New(userID, chatID, targetChatID)

	if old, err := e.sessions.Load(ctx, userID, chatID); err == nil {
		sess.LastMessageID = old.LastMessageID
		sess.LastHasPhoto = old.LastHasPhoto
	}

	return e.enterRules(ctx, sess)
}

// Handle processes one callback token against the session.
func (e *Engine) Handle(ctx context.Context, sess *session.Session, token string, responder Responder) error {
	action := ParseAction(token)

	if action.Kind == ActionRestart {
		return e.Enter(ctx, sess.UserID, sess.ChatID, action.RestartChatID)
	}

	switch sess.Stage {
	case session.StageRules:
		return e.handleRules(ctx, sess, action, responder)
	case session.StageQuestions:
		return e.handleQuestions(ctx, sess, action, responder)
	default:
		e.log.Error("session with unknown stage",
			slog.Int64("user_id", sess.UserID),
			slog.String("stage", string(sess.Stage)),
		)
		e.clear(ctx, sess)
		return apperrors.NewSessionError("wizard session has unknown stage")
	}
}

// render shows the view, updates the session's rendered-message shape, and
// persists the session. A delivery failure aborts the flow.
func (e *Engine) render(ctx context.Context, sess *session.Session, view render.View) error {
	var prev *render.Message
	if sess.LastMessageID != 0 {
		prev = &render.Message{ID: sess.LastMessageID, HasPhoto: sess.LastHasPhoto}
	}

	msg, err := e.renderer.Show(ctx, sess.ChatID, prev, view)
	if err != nil {
		e.clear(ctx, sess)
		return apperrors.NewRenderError(err)
	}

	sess.LastMessageID = msg.ID
	sess.LastHasPhoto = msg.HasPhoto

	if err := e.sessions.Save(ctx, sess); err != nil {
		return apperrors.NewStorageError(err)
	}

	return nil
}

// renderTerminal shows a final screen and drops the session. Terminal render
// failures are logged but not surfaced: the flow is over either way.
func (e *Engine) renderTerminal(ctx context.Context, sess *session.Session, view render.View) {
	var prev *render.Message
	if sess.LastMessageID != 0 {
		prev = &render.Message{ID: sess.LastMessageID, HasPhoto: sess.LastHasPhoto}
	}

	if _, err := e.renderer.Show(ctx, sess.ChatID, prev, view); err != nil {
		e.log.Error("failed to render terminal screen",
			slog.Int64("user_id", sess.UserID),
			slog.Any("error", err),
		)
	}

	e.clear(ctx, sess)
}

func (e *Engine) clear(ctx context.Context, sess *session.Session) {
	if err := e.sessions.Clear(ctx, sess.UserID, sess.ChatID); err != nil {
		e.log.Warn("failed to clear session",
			slog.Int64("user_id", sess.UserID),
			slog.Any("error", err),
		)
	}
}

func (e *Engine) showTryLater(ctx context.Context, sess *session.Session) {
	step, ok := e.content.ServiceStep(content.ServiceTryLater)
	if !ok {
		e.log.Error("tryLater service step missing")
		e.clear(ctx, sess)
		return
	}

	text := content.FillTryLater(step.Text, e.policy.ResetIntervalHours())
	retry := render.Action{Label: retryButton, Token: RestartToken(sess.TargetChatID)}

	e.renderTerminal(ctx, sess, serviceView(step, text, retry))
}

func respond(responder Responder, text string, alert bool) {
	if responder == nil {
		return
	}
	_ = responder.Respond(text, alert)
}
