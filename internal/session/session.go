// Package session manages ephemeral wizard session state keyed by the
// conversation a user runs the wizard in.
package session

import (
	"context"
	"errors"
	"time"
)

// Stage identifies which wizard stage owns the session.
type Stage string

const (
	// StageRules is the rule-pages walkthrough.
	StageRules Stage = "rules"
	// StageQuestions is the quiz.
	StageQuestions Stage = "questions"
)

// ErrSessionNotFound indicates that no session exists for the key.
var ErrSessionNotFound = errors.New("wizard session not found")

// Session is the in-flight wizard state for one user in one conversation.
// TargetChatID is the group the user is being verified for; ChatID is the
// private conversation the wizard screens are rendered into.
type Session struct {
	UserID       int64       `json:"user_id"`
	ChatID       int64       `json:"chat_id"`
	TargetChatID int64       `json:"target_chat_id"`
	Stage        Stage       `json:"stage"`
	CurrentStep  int         `json:"current_step"`
	Answers      map[int]int `json:"answers"`

	// Shape of the last rendered wizard message, used by the renderer to
	// decide between editing in place and resending.
	LastMessageID int  `json:"last_message_id"`
	LastHasPhoto  bool `json:"last_has_photo"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh rules-stage session.
func New(userID, chatID, targetChatID int64) *Session {
	return &Session{
		UserID:       userID,
		ChatID:       chatID,
		TargetChatID: targetChatID,
		Stage:        StageRules,
		Answers:      make(map[int]int),
	}
}

// ResetForQuestions rewinds the step counter and clears answers for quiz entry.
func (s *Session) ResetForQuestions() {
	s.Stage = StageQuestions
	s.CurrentStep = 0
	s.Answers = make(map[int]int)
}

// Store defines the persistence contract for wizard sessions.
type Store interface {
	// Load returns the session for the pair, or ErrSessionNotFound.
	Load(ctx context.Context, userID, chatID int64) (*Session, error)
	// Save persists the session.
	Save(ctx context.Context, sess *Session) error
	// Clear removes the session for the pair.
	Clear(ctx context.Context, userID, chatID int64) error
}
