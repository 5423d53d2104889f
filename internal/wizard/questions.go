package wizard

import (
	"context"
	"log/slog"
	"slices"

	"github.com/kvaty/gatekeeper-bot/internal/content"
	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/render"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
)

// enterQuestions opens the quiz stage. The verification status is re-checked
// here because the rules stage may have been long, or skipped entirely.
func (e *Engine) enterQuestions(ctx context.Context, sess *session.Session) error {
	status, err := e.policy.Status(ctx, sess.UserID, sess.TargetChatID)
	if err != nil {
		return apperrors.NewStorageError(err)
	}

	switch status {
	case verification.StatusUserNotFound:
		// No record means the join event was missed (bot restart, manual
		// deep link). Create the record now and keep going.
		if err := e.policy.HandleMemberJoined(ctx, sess.UserID, sess.TargetChatID); err != nil {
			return apperrors.NewStorageError(err)
		}

	case verification.StatusLimitReached:
		e.showTryLater(ctx, sess)
		return nil

	case verification.StatusAlreadyVerified:
		e.renderTerminal(ctx, sess, render.View{Text: noticeVerified})
		return nil
	}

	sess.ResetForQuestions()

	questions := e.content.Questions()
	if len(questions) == 0 {
		return e.finalize(ctx, sess)
	}

	return e.render(ctx, sess, questionView(questions[0], 0, len(questions)))
}

func (e *Engine) handleQuestions(ctx context.Context, sess *session.Session, action Action, responder Responder) error {
	questions := e.content.Questions()

	if sess.CurrentStep >= len(questions) {
		e.log.Error("quiz session points past the last question",
			slog.Int64("user_id", sess.UserID),
			slog.Int("step", sess.CurrentStep),
		)
		e.clear(ctx, sess)
		return apperrors.NewSessionError("quiz session points past the last question")
	}

	current := questions[sess.CurrentStep]

	switch action.Kind {
	case ActionAnswer:
		if action.AnswerIndex < 0 || action.AnswerIndex >= len(current.Options) {
			respond(responder, noticeInvalidChoice, true)
			return nil
		}

		sess.Answers[sess.CurrentStep] = action.AnswerIndex
		sess.CurrentStep++

		if sess.CurrentStep >= len(questions) {
			return e.finalize(ctx, sess)
		}
		return e.render(ctx, sess, questionView(questions[sess.CurrentStep], sess.CurrentStep, len(questions)))

	case ActionQuestionsBack:
		if sess.CurrentStep == 0 {
			respond(responder, noticeFirstQuestion, true)
			return nil
		}

		sess.CurrentStep--
		// The answer for the question we return to is forgotten: it will be
		// re-submitted, and a stale value must not count toward the score.
		delete(sess.Answers, sess.CurrentStep)
		return e.render(ctx, sess, questionView(questions[sess.CurrentStep], sess.CurrentStep, len(questions)))

	default:
		respond(responder, noticeUseButtons, false)
		return e.render(ctx, sess, questionView(current, sess.CurrentStep, len(questions)))
	}
}

// finalize scores the run and shows the outcome. The quiz message is deleted
// first so the outcome always arrives as a fresh message.
func (e *Engine) finalize(ctx context.Context, sess *session.Session) error {
	questions := e.content.Questions()

	score := 0
	for i, question := range questions {
		chosen, answered := sess.Answers[i]
		if answered && slices.Contains(question.CorrectAnswers, chosen) {
			score++
		}
	}

	if sess.LastMessageID != 0 {
		e.renderer.Delete(ctx, sess.ChatID, sess.LastMessageID)
		sess.LastMessageID = 0
		sess.LastHasPhoto = false
	}

	if score >= e.content.PassThreshold() {
		return e.grantAccess(ctx, sess)
	}

	attempts, err := e.policy.RecordAttempt(ctx, sess.UserID, sess.TargetChatID)
	if err != nil {
		e.clear(ctx, sess)
		return apperrors.NewStorageError(err)
	}

	remaining := e.policy.MaxAttempts() - attempts
	if remaining <= 0 {
		outcomeRecorder(OutcomeCooldown)
		e.showTryLater(ctx, sess)
		return nil
	}

	outcomeRecorder(OutcomeFail)
	e.showFail(ctx, sess, remaining)
	return nil
}

func (e *Engine) grantAccess(ctx context.Context, sess *session.Session) error {
	if err := e.restrictor.Unmute(ctx, sess.TargetChatID, sess.UserID); err != nil {
		e.errHandler.Handle(ctx, apperrors.NewUnmuteError(err))
		outcomeRecorder(OutcomeError)
		e.showError(ctx, sess)
		return nil
	}

	if err := e.policy.GrantAccess(ctx, sess.UserID, sess.TargetChatID); err != nil {
		e.errHandler.Handle(ctx, apperrors.NewStorageError(err))
		outcomeRecorder(OutcomeError)
		e.showError(ctx, sess)
		return nil
	}

	outcomeRecorder(OutcomePass)

	step, ok := e.content.ServiceStep(content.ServiceSuccess)
	if !ok {
		e.log.Error("success service step missing")
		e.clear(ctx, sess)
		return nil
	}

	e.renderTerminal(ctx, sess, serviceView(step, ""))
	return nil
}

func (e *Engine) showFail(ctx context.Context, sess *session.Session, remaining int) {
	step, ok := e.content.ServiceStep(content.ServiceFail)
	if !ok {
		e.log.Error("fail service step missing")
		e.clear(ctx, sess)
		return
	}

	text := content.FillFail(step.Text, remaining)
	retry := render.Action{Label: retryButton, Token: RestartToken(sess.TargetChatID)}

	e.renderTerminal(ctx, sess, serviceView(step, text, retry))
}

func (e *Engine) showError(ctx context.Context, sess *session.Session) {
	step, ok := e.content.ServiceStep(content.ServiceError)
	if !ok {
		e.log.Error("error service step missing")
		e.clear(ctx, sess)
		return
	}

	e.renderTerminal(ctx, sess, serviceView(step, ""))
}
