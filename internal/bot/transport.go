package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/kvaty/gatekeeper-bot/internal/bot/keyboard"
	"github.com/kvaty/gatekeeper-bot/internal/media"
	"github.com/kvaty/gatekeeper-bot/internal/render"
)

// Transport adapts telebot to the renderer. Images are referenced by their
// content-document path; the media cache resolves them to uploaded file
// handles, falling back to a disk upload on first use.
type Transport struct {
	tb    *telebot.Bot
	cache *media.Cache
	log   *slog.Logger
}

var _ render.Transport = (*Transport)(nil)

// NewTransport builds the renderer transport over a telebot instance.
func NewTransport(tb *telebot.Bot, cache *media.Cache, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}

	return &Transport{
		tb:    tb,
		cache: cache,
		log:   log,
	}
}

// SendText sends a new HTML text message with the action keyboard.
func (t *Transport) SendText(_ context.Context, chatID int64, text string, actions []render.Action) (int, error) {
	msg, err := t.tb.Send(telebot.ChatID(chatID), text, t.sendOptions(actions))
	if err != nil {
		return 0, err
	}

	return msg.ID, nil
}

// SendPhoto sends a new photo message. The assigned file handle is cached so
// the next send of the same image skips the upload.
func (t *Transport) SendPhoto(ctx context.Context, chatID int64, image, caption string, actions []render.Action) (int, error) {
	photo, cached := t.photoFor(image)
	photo.Caption = caption

	msg, err := t.tb.Send(telebot.ChatID(chatID), photo, t.sendOptions(actions))
	if err != nil {
		return 0, err
	}

	if !cached && msg.Photo != nil && msg.Photo.FileID != "" {
		t.cache.SetHandle(ctx, image, msg.Photo.FileID)
	}

	return msg.ID, nil
}

// EditText replaces the text and keyboard of an existing text message.
func (t *Transport) EditText(_ context.Context, chatID int64, messageID int, text string, actions []render.Action) error {
	_, err := t.tb.Edit(storedMessage(chatID, messageID), text, t.sendOptions(actions))
	return t.translate(err)
}

// EditPhoto replaces the media, caption and keyboard of a photo message. It
// needs a cached handle: the platform cannot take a fresh upload here, so
// without one the renderer falls back to a resend.
func (t *Transport) EditPhoto(_ context.Context, chatID int64, messageID int, image, caption string, actions []render.Action) error {
	photo, cached := t.photoFor(image)
	if !cached {
		return render.ErrNoCachedMedia
	}
	photo.Caption = caption

	_, err := t.tb.Edit(storedMessage(chatID, messageID), photo, t.sendOptions(actions))
	return t.translate(err)
}

// Delete removes a message.
func (t *Transport) Delete(_ context.Context, chatID int64, messageID int) error {
	return t.tb.Delete(storedMessage(chatID, messageID))
}

func (t *Transport) sendOptions(actions []render.Action) *telebot.SendOptions {
	return &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: keyboard.Inline(actions, t.log),
	}
}

func (t *Transport) photoFor(image string) (*telebot.Photo, bool) {
	if handle, ok := t.cache.Handle(image); ok {
		return &telebot.Photo{File: telebot.File{FileID: handle}}, true
	}

	return &telebot.Photo{File: telebot.FromDisk(t.cache.DiskPath(image))}, false
}

// translate maps the platform's "nothing changed" rejection to the sentinel
// the renderer treats as success.
func (t *Transport) translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, telebot.ErrSameMessageContent) ||
		strings.Contains(err.Error(), "message is not modified") {
		return render.ErrNotModified
	}

	return err
}

func storedMessage(chatID int64, messageID int) telebot.StoredMessage {
	return telebot.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
}
