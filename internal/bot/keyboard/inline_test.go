package keyboard

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvaty/gatekeeper-bot/internal/render"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInline_OneButtonPerRow(t *testing.T) {
	markup := Inline([]render.Action{
		{Label: "first", Token: "q_0"},
		{Label: "second", Token: "q_1"},
		{Label: "back", Token: "q_back"},
	}, testLogger())

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 3)

	for i, row := range markup.InlineKeyboard {
		assert.Len(t, row, 1, "row %d", i)
	}

	assert.Equal(t, "first", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "q_0", markup.InlineKeyboard[0][0].Data)
}

func TestInline_NoActions(t *testing.T) {
	assert.Nil(t, Inline(nil, testLogger()))
}

func TestInline_DropsOversizedToken(t *testing.T) {
	markup := Inline([]render.Action{
		{Label: "ok", Token: "rules_next"},
		{Label: "broken", Token: strings.Repeat("x", 65)},
	}, testLogger())

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "rules_next", markup.InlineKeyboard[0][0].Data)
}

func TestInline_AllTokensOversized(t *testing.T) {
	markup := Inline([]render.Action{
		{Label: "broken", Token: strings.Repeat("x", 100)},
	}, testLogger())

	assert.Nil(t, markup)
}

func TestURLButton(t *testing.T) {
	markup := URLButton("verify", "https://t.me/bot?start=-100")

	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	assert.Equal(t, "verify", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://t.me/bot?start=-100", markup.InlineKeyboard[0][0].URL)
}
