package wizard

import (
	"context"
	"log/slog"

	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
)

// enterRules opens the rules stage. The only status that blocks entry here is
// an exhausted attempt budget: everything else is decided right before the
// quiz, so a user who re-reads the rules does not burn state.
func (e *Engine) enterRules(ctx context.Context, sess *session.Session) error {
	status, err := e.policy.Status(ctx, sess.UserID, sess.TargetChatID)
	if err != nil {
		return apperrors.NewStorageError(err)
	}

	if status == verification.StatusLimitReached {
		e.showTryLater(ctx, sess)
		return nil
	}

	if len(e.content.Rules()) == 0 {
		return e.enterQuestions(ctx, sess)
	}

	sess.Stage = session.StageRules
	sess.CurrentStep = 0

	return e.render(ctx, sess, ruleView(e.content.Rules()[0], 0))
}

func (e *Engine) handleRules(ctx context.Context, sess *session.Session, action Action, responder Responder) error {
	rules := e.content.Rules()

	if sess.CurrentStep >= len(rules) {
		e.log.Error("rules session points past the last page",
			slog.Int64("user_id", sess.UserID),
			slog.Int("step", sess.CurrentStep),
		)
		e.clear(ctx, sess)
		return apperrors.NewSessionError("rules session points past the last page")
	}

	switch action.Kind {
	case ActionRulesNext:
		sess.CurrentStep++
		if sess.CurrentStep >= len(rules) {
			return e.enterQuestions(ctx, sess)
		}
		return e.render(ctx, sess, ruleView(rules[sess.CurrentStep], sess.CurrentStep))

	case ActionRulesBack:
		if sess.CurrentStep == 0 {
			respond(responder, noticeFirstRule, false)
			return nil
		}
		sess.CurrentStep--
		return e.render(ctx, sess, ruleView(rules[sess.CurrentStep], sess.CurrentStep))

	default:
		// A press from a stale keyboard, e.g. a quiz button after /restart
		// brought the user back to the rules. Repaint the real screen.
		respond(responder, noticeUseButtons, false)
		return e.render(ctx, sess, ruleView(rules[sess.CurrentStep], sess.CurrentStep))
	}
}
