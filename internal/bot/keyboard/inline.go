// Package keyboard builds telegram reply markup from wizard actions.
package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/kvaty/gatekeeper-bot/internal/render"
)

// Telegram rejects callback data longer than 64 bytes.
const maxCallbackDataBytes = 64

// Inline lays the actions out one button per row. Answer options can be long,
// and a single column keeps their truncated labels readable. Actions whose
// token exceeds the platform limit are dropped with an error log: sending a
// keyboard without the button beats the whole send failing.
func Inline(actions []render.Action, log *slog.Logger) *telebot.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}

	if log == nil {
		log = slog.Default()
	}

	rows := make([][]telebot.InlineButton, 0, len(actions))
	for _, action := range actions {
		if len(action.Token) > maxCallbackDataBytes {
			log.Error("dropping action with oversized callback token",
				slog.String("label", action.Label),
				slog.Int("token_bytes", len(action.Token)),
			)
			continue
		}

		rows = append(rows, []telebot.InlineButton{{
			Text: action.Label,
			Data: action.Token,
		}})
	}

	if len(rows) == 0 {
		return nil
	}

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

// URLButton builds a single-button markup opening the given link.
func URLButton(label, url string) *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{{
			Text: label,
			URL:  url,
		}}},
	}
}
