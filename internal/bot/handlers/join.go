package handlers

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/kvaty/gatekeeper-bot/internal/bot/keyboard"
	"github.com/kvaty/gatekeeper-bot/internal/content"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
)

const verifyButtonLabel = "Пройти проверку"

// GroupGuard mutes new members and identifies those who cannot be muted.
type GroupGuard interface {
	Mute(ctx context.Context, chatID, userID int64) error
	IsPrivileged(ctx context.Context, chatID, userID int64) (bool, error)
}

// NewJoinHandler mutes each new member and invites them to verify in a
// private chat via a deep link back to this group. One update can carry
// several joined members; each is processed independently so one failure does
// not leave the rest unmuted.
func NewJoinHandler(policy *verification.Policy, guard GroupGuard, botUsername string, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Chat() == nil || c.Message() == nil {
			return nil
		}

		ctx := RequestContext(c)
		chatID := c.Chat().ID

		for _, member := range c.Message().UsersJoined {
			if member.IsBot {
				continue
			}

			privileged, err := guard.IsPrivileged(ctx, chatID, member.ID)
			if err != nil {
				log.Warn("failed to check member role, treating as regular",
					slog.Int64("chat_id", chatID),
					slog.Int64("user_id", member.ID),
					slog.Any("error", err),
				)
			}
			if privileged {
				continue
			}

			status, err := policy.Status(ctx, member.ID, chatID)
			if err != nil {
				log.Error("failed to resolve verification status on join",
					slog.Int64("chat_id", chatID),
					slog.Int64("user_id", member.ID),
					slog.Any("error", err),
				)
				continue
			}

			if status == verification.StatusAlreadyVerified {
				continue
			}

			if err := policy.HandleMemberJoined(ctx, member.ID, chatID); err != nil {
				log.Error("failed to record joined member",
					slog.Int64("chat_id", chatID),
					slog.Int64("user_id", member.ID),
					slog.Any("error", err),
				)
				continue
			}

			if err := guard.Mute(ctx, chatID, member.ID); err != nil {
				log.Error("failed to mute joined member",
					slog.Int64("chat_id", chatID),
					slog.Int64("user_id", member.ID),
					slog.Any("error", err),
				)
				continue
			}

			if err := sendWelcome(c, member, botUsername, chatID); err != nil {
				log.Error("failed to send welcome message",
					slog.Int64("chat_id", chatID),
					slog.Int64("user_id", member.ID),
					slog.Any("error", err),
				)
			}
		}

		return nil
	}
}

func sendWelcome(c telebot.Context, member telebot.User, botUsername string, chatID int64) error {
	name := member.FirstName
	if name == "" {
		name = member.Username
	}

	text := fmt.Sprintf(
		"Привет, <a href=\"tg://user?id=%d\">%s</a>! Чтобы писать в этом чате, пройдите короткую проверку в личных сообщениях.",
		member.ID,
		content.EscapeHTML(name),
	)

	link := fmt.Sprintf("https://t.me/%s?start=%d", botUsername, chatID)

	return c.Send(text, &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: keyboard.URLButton(verifyButtonLabel, link),
	})
}
