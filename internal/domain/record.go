// Package domain holds the persisted data model of the gatekeeper bot.
package domain

import "time"

// VerificationRecord tracks the gate state of one member in one group chat.
// A record is created on the first join (or deep-link entry) and is never
// deleted; once IsMuted goes false the member stays verified for that chat.
type VerificationRecord struct {
	ID            int64
	UserID        int64
	ChatID        int64
	IsMuted       bool
	Attempts      int
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}

// MediaCacheEntry maps a local image path to the platform-assigned file handle.
type MediaCacheEntry struct {
	Path   string
	FileID string
}
