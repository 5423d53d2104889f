package handlers

import (
	"errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/wizard"
)

const msgSessionExpired = "Сессия устарела. Напишите /restart или перейдите по ссылке из группы."

// callbackResponder answers the pressed button at most once. The wizard may
// answer with a notice; if it does not, the handler answers silently to stop
// the client's loading spinner.
type callbackResponder struct {
	c         telebot.Context
	responded bool
}

func (r *callbackResponder) Respond(text string, alert bool) error {
	r.responded = true
	return r.c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: alert})
}

// NewCallbackHandler routes wizard button presses. Presses that arrive after
// the session is gone (bot restart, expired TTL) are absorbed: restart tokens
// re-enter the flow, anything else gets an expiry notice and the stale
// keyboard is removed.
func NewCallbackHandler(engine *wizard.Engine, sessions session.Store, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		callback := c.Callback()
		if callback == nil || c.Sender() == nil || c.Chat() == nil {
			return nil
		}

		ctx := RequestContext(c)
		userID := c.Sender().ID
		chatID := c.Chat().ID
		token := strings.TrimPrefix(callback.Data, "\f")

		responder := &callbackResponder{c: c}

		sess, err := sessions.Load(ctx, userID, chatID)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) {
				return apperrors.NewStorageError(err)
			}

			if action := wizard.ParseAction(token); action.Kind == wizard.ActionRestart {
				if err := engine.Enter(ctx, userID, chatID, action.RestartChatID); err != nil {
					return err
				}
				return respondOnce(responder)
			}

			log.Info("callback without session",
				slog.Int64("user_id", userID),
				slog.String("token", token),
			)

			_ = responder.Respond(msgSessionExpired, true)
			_ = c.Delete()
			return nil
		}

		if err := engine.Handle(ctx, sess, token, responder); err != nil {
			return err
		}

		return respondOnce(responder)
	}
}

func respondOnce(r *callbackResponder) error {
	if r.responded {
		return nil
	}
	return r.Respond("", false)
}
