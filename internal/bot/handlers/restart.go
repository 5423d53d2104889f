package handlers

import (
	"fmt"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
	"github.com/kvaty/gatekeeper-bot/internal/wizard"
)

const (
	msgNoActiveRun   = "Не нашёл активную проверку. Перейдите по ссылке из группового чата, чтобы начать."
	msgPickChat      = "Вы проходите проверку в нескольких чатах. Выберите, какую начать заново:"
	restartListLimit = 10
)

// NewRestartHandler handles /restart: the escape hatch when the wizard screen
// was deleted or the user is stuck. The target chat comes from the user's
// verification records: exactly one record restarts directly, several turn
// into a pick-a-chat list of deep links.
func NewRestartHandler(engine *wizard.Engine, policy *verification.Policy, botUsername string, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Chat() == nil || c.Chat().Type != telebot.ChatPrivate || c.Sender() == nil {
			return nil
		}

		ctx := RequestContext(c)
		userID := c.Sender().ID

		records, err := policy.RecordsFor(ctx, userID)
		if err != nil {
			return apperrors.NewStorageError(err)
		}

		if len(records) == 0 {
			return c.Send(msgNoActiveRun)
		}

		if len(records) == 1 {
			log.Info("restarting verification",
				slog.Int64("user_id", userID),
				slog.Int64("target_chat_id", records[0].ChatID),
			)
			return engine.Enter(ctx, userID, c.Chat().ID, records[0].ChatID)
		}

		rows := make([][]telebot.InlineButton, 0, len(records))
		for i, record := range records {
			if i == restartListLimit {
				break
			}

			rows = append(rows, []telebot.InlineButton{{
				Text: chatLabel(c.Bot(), record.ChatID),
				URL:  fmt.Sprintf("https://t.me/%s?start=%d", botUsername, record.ChatID),
			}})
		}

		return c.Send(msgPickChat, &telebot.SendOptions{
			ReplyMarkup: &telebot.ReplyMarkup{InlineKeyboard: rows},
		})
	}
}

func chatLabel(tb *telebot.Bot, chatID int64) string {
	if tb != nil {
		if chat, err := tb.ChatByID(chatID); err == nil && chat != nil && chat.Title != "" {
			return chat.Title
		}
	}

	return "Чат " + strconv.FormatInt(chatID, 10)
}
