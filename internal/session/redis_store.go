package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPattern = "wizard:session:%d:%d"

// RedisStore persists wizard sessions in Redis with a TTL. Sessions that
// outlive the TTL are treated as stale and the user is asked to restart.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisStore initializes a Redis-backed session store.
func NewRedisStore(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisStore{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

// Load returns the stored session or ErrSessionNotFound when absent.
func (s *RedisStore) Load(ctx context.Context, userID, chatID int64) (*Session, error) {
	key := sessionKey(userID, chatID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}

		s.log.Error("failed to get session from redis", "user_id", userID, "chat_id", chatID, "error", err)
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		s.log.Error("failed to decode session", "user_id", userID, "chat_id", chatID, "error", err)
		return nil, err
	}

	if sess.Answers == nil {
		sess.Answers = make(map[int]int)
	}

	return &sess, nil
}

// Save persists the session under the store TTL.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Error("failed to encode session", "user_id", sess.UserID, "error", err)
		return err
	}

	key := sessionKey(sess.UserID, sess.ChatID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save session in redis", "user_id", sess.UserID, "error", err)
		return err
	}

	return nil
}

// Clear removes the stored session for the pair.
func (s *RedisStore) Clear(ctx context.Context, userID, chatID int64) error {
	key := sessionKey(userID, chatID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Error("failed to clear session", "user_id", userID, "chat_id", chatID, "error", err)
		return err
	}

	return nil
}

func sessionKey(userID, chatID int64) string {
	return fmt.Sprintf(sessionKeyPattern, userID, chatID)
}
