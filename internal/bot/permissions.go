package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// Restrictor toggles a member's sending permissions in a group chat.
type Restrictor struct {
	tb  *telebot.Bot
	log *slog.Logger
}

// NewRestrictor builds a Restrictor over a telebot instance.
func NewRestrictor(tb *telebot.Bot, log *slog.Logger) *Restrictor {
	if log == nil {
		log = slog.Default()
	}

	return &Restrictor{tb: tb, log: log}
}

// sendCapabilities is the single source for which permissions verification
// gates. Mute applies it with false, unmute with true, so the revoked and
// restored sets cannot drift apart.
func sendCapabilities(allowed bool) telebot.Rights {
	return telebot.Rights{
		CanSendMessages:   allowed,
		CanSendAudios:     allowed,
		CanSendDocuments:  allowed,
		CanSendPhotos:     allowed,
		CanSendVideos:     allowed,
		CanSendVideoNotes: allowed,
		CanSendVoiceNotes: allowed,
		CanSendPolls:      allowed,
		CanSendOther:      allowed,
		CanAddPreviews:    allowed,
	}
}

// Mute revokes all sending permissions for the member.
func (r *Restrictor) Mute(_ context.Context, chatID, userID int64) error {
	if err := r.restrict(chatID, userID, sendCapabilities(false)); err != nil {
		return fmt.Errorf("mute member %d in chat %d: %w", userID, chatID, err)
	}

	r.log.Info("muted member",
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
	)
	return nil
}

// Unmute restores all sending permissions for the member.
func (r *Restrictor) Unmute(_ context.Context, chatID, userID int64) error {
	if err := r.restrict(chatID, userID, sendCapabilities(true)); err != nil {
		return fmt.Errorf("unmute member %d in chat %d: %w", userID, chatID, err)
	}

	r.log.Info("unmuted member",
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
	)
	return nil
}

// IsPrivileged reports whether the member is the chat creator or an
// administrator. Privileged members cannot be restricted and skip verification.
func (r *Restrictor) IsPrivileged(_ context.Context, chatID, userID int64) (bool, error) {
	member, err := r.tb.ChatMemberOf(&telebot.Chat{ID: chatID}, &telebot.User{ID: userID})
	if err != nil {
		return false, fmt.Errorf("look up member %d in chat %d: %w", userID, chatID, err)
	}

	return member.Role == telebot.Creator || member.Role == telebot.Administrator, nil
}

func (r *Restrictor) restrict(chatID, userID int64, rights telebot.Rights) error {
	return r.tb.Restrict(&telebot.Chat{ID: chatID}, &telebot.ChatMember{
		User:   &telebot.User{ID: userID},
		Rights: rights,
	})
}
