// Package render keeps a single chat message in sync with wizard state,
// deciding between editing in place and resending.
package render

import (
	"context"
	"errors"
)

// Action is one inline button: a label and the callback token it emits.
type Action struct {
	Label string
	Token string
}

// View is the content of one wizard screen.
type View struct {
	Text    string
	Image   string
	Actions []Action
}

// Message captures the shape of the last rendered message: its identifier and
// whether it carries a photo. It is derived state, never persisted beyond the
// session.
type Message struct {
	ID       int
	HasPhoto bool
}

// ErrNotModified is returned by transports when an edit would not change the
// message. The renderer treats it as success.
var ErrNotModified = errors.New("message content not modified")

// ErrNoCachedMedia is returned by transports when a photo edit is impossible
// because no uploaded handle exists for the image yet.
var ErrNoCachedMedia = errors.New("no cached media handle for edit")

// Transport delivers and mutates chat messages. Implementations adapt the
// chat platform client.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, actions []Action) (int, error)
	SendPhoto(ctx context.Context, chatID int64, image, caption string, actions []Action) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, actions []Action) error
	EditPhoto(ctx context.Context, chatID int64, messageID int, image, caption string, actions []Action) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

var renderRecorder = func(mode string) {}

// RegisterRenderRecorder allows external packages to observe render delivery modes.
func RegisterRenderRecorder(recorder func(mode string)) {
	if recorder == nil {
		renderRecorder = func(string) {}
		return
	}

	renderRecorder = recorder
}
