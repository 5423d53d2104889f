package render

import (
	"context"
	"errors"
	"log/slog"
)

const (
	modeSend   = "send"
	modeEdit   = "edit"
	modeResend = "resend"
)

// Renderer applies the edit-vs-resend policy. Two booleans decide everything:
// whether the next screen wants a photo (image present and the text fits a
// photo caption) and whether the previous message had one. Matching shapes are
// edited in place; mismatched shapes force a delete and resend, because the
// platform cannot switch a message between photo and text via edit.
type Renderer struct {
	transport    Transport
	log          *slog.Logger
	captionLimit int
}

// NewRenderer constructs a Renderer over the given transport.
func NewRenderer(transport Transport, log *slog.Logger, captionLimit int) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	if captionLimit <= 0 {
		captionLimit = 1024
	}

	return &Renderer{
		transport:    transport,
		log:          log,
		captionLimit: captionLimit,
	}
}

// Show renders the view into the chat, reusing prev when possible, and returns
// the shape of the message now on screen.
func (r *Renderer) Show(ctx context.Context, chatID int64, prev *Message, view View) (Message, error) {
	wantsPhoto := view.Image != "" && len([]rune(view.Text)) <= r.captionLimit

	if prev == nil || prev.ID == 0 {
		return r.sendNew(ctx, chatID, view, wantsPhoto, modeSend)
	}

	if wantsPhoto == prev.HasPhoto {
		err := r.edit(ctx, chatID, prev.ID, view, wantsPhoto)
		switch {
		case err == nil:
			renderRecorder(modeEdit)
			return Message{ID: prev.ID, HasPhoto: wantsPhoto}, nil
		case errors.Is(err, ErrNotModified):
			// Duplicate delivery re-rendered identical content; nothing to do.
			renderRecorder(modeEdit)
			return *prev, nil
		default:
			r.log.Warn("edit failed, falling back to resend",
				slog.Int64("chat_id", chatID),
				slog.Int("message_id", prev.ID),
				slog.Any("error", err),
			)
		}
	}

	r.deleteQuietly(ctx, chatID, prev.ID)
	return r.sendNew(ctx, chatID, view, wantsPhoto, modeResend)
}

// Delete removes a rendered message. Failures are logged only; a vanished
// message is not an error for the flow.
func (r *Renderer) Delete(ctx context.Context, chatID int64, messageID int) {
	r.deleteQuietly(ctx, chatID, messageID)
}

func (r *Renderer) sendNew(ctx context.Context, chatID int64, view View, wantsPhoto bool, mode string) (Message, error) {
	var (
		id  int
		err error
	)

	if wantsPhoto {
		id, err = r.transport.SendPhoto(ctx, chatID, view.Image, view.Text, view.Actions)
	} else {
		id, err = r.transport.SendText(ctx, chatID, view.Text, view.Actions)
	}

	if err != nil {
		return Message{}, err
	}

	renderRecorder(mode)
	return Message{ID: id, HasPhoto: wantsPhoto}, nil
}

func (r *Renderer) edit(ctx context.Context, chatID int64, messageID int, view View, wantsPhoto bool) error {
	if wantsPhoto {
		return r.transport.EditPhoto(ctx, chatID, messageID, view.Image, view.Text, view.Actions)
	}
	return r.transport.EditText(ctx, chatID, messageID, view.Text, view.Actions)
}

func (r *Renderer) deleteQuietly(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}

	if err := r.transport.Delete(ctx, chatID, messageID); err != nil {
		r.log.Warn("failed to delete message",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			slog.Any("error", err),
		)
	}
}
