package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), testLogger(), time.Hour)
	ctx := context.Background()

	sess := New(123, 123, -1001234)
	sess.Stage = StageQuestions
	sess.CurrentStep = 2
	sess.Answers = map[int]int{0: 1, 1: 0}
	sess.LastMessageID = 42
	sess.LastHasPhoto = true

	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, 123, 123)
	require.NoError(t, err)

	assert.Equal(t, sess.UserID, loaded.UserID)
	assert.Equal(t, sess.TargetChatID, loaded.TargetChatID)
	assert.Equal(t, sess.Stage, loaded.Stage)
	assert.Equal(t, sess.CurrentStep, loaded.CurrentStep)
	assert.Equal(t, sess.Answers, loaded.Answers)
	assert.Equal(t, sess.LastMessageID, loaded.LastMessageID)
	assert.True(t, loaded.LastHasPhoto)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestRedisStore_LoadNotFound(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), testLogger(), time.Hour)

	sess, err := store.Load(context.Background(), 999, 999)
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_Clear(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), testLogger(), time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, New(1, 1, -100)))
	require.NoError(t, store.Clear(ctx, 1, 1))

	_, err := store.Load(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_KeyedPerConversation(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), testLogger(), time.Hour)
	ctx := context.Background()

	first := New(1, 10, -100)
	first.CurrentStep = 1
	second := New(1, 20, -200)
	second.CurrentStep = 5

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentStep)
	assert.Equal(t, int64(-100), loaded.TargetChatID)
}

func TestRedisStore_RepairsNilAnswers(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, testLogger(), time.Hour)
	ctx := context.Background()

	// Sessions written before any answer carry a null map in JSON.
	require.NoError(t, client.Set(ctx,
		"wizard:session:7:7",
		`{"user_id":7,"chat_id":7,"target_chat_id":-1,"stage":"rules","answers":null}`,
		time.Hour,
	).Err())

	loaded, err := store.Load(ctx, 7, 7)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Answers)
}
