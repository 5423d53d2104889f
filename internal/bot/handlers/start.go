package handlers

import (
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/kvaty/gatekeeper-bot/internal/wizard"
)

const (
	msgStartNoTarget = "Привет! Чтобы пройти проверку, перейдите по ссылке из группового чата."
	msgStartBadLink  = "Ссылка повреждена. Попросите в группе новую ссылку на проверку."
)

// NewStartHandler handles /start in a private chat. The deep-link payload
// carries the group chat the user is verifying for.
func NewStartHandler(engine *wizard.Engine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Chat() == nil || c.Chat().Type != telebot.ChatPrivate || c.Sender() == nil {
			return nil
		}

		payload := ""
		if c.Message() != nil {
			payload = strings.TrimSpace(c.Message().Payload)
		}

		if payload == "" {
			return c.Send(msgStartNoTarget)
		}

		targetChatID, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			log.Warn("start deep link with unparsable payload",
				slog.Int64("user_id", c.Sender().ID),
				slog.String("payload", payload),
			)
			return c.Send(msgStartBadLink)
		}

		return engine.Enter(RequestContext(c), c.Sender().ID, c.Chat().ID, targetChatID)
	}
}
