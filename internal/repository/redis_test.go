package repository

import (
	"context"
	"testing"
	"time"

	"candypic/internal/config"
	"candypic/internal/conversation"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStateRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)
	require.NoError(t, Ping(context.Background(), client))

	repo := NewRedisStateRepository(client, time.Hour)
	ctx := context.Background()
	key := conversation.Key{ChatID: -100, UserID: 123}

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &conversation.State{
			Key:             key,
			Flow:            conversation.FlowWizard,
			Step:            conversation.StepClientName,
			Fields:          conversation.Wizard{EventType: "Custom", StartDate: "2025-12-20"}.Fields(),
			PromptMessageID: 42,
		}

		require.NoError(t, repo.SetState(ctx, state))
		assert.True(t, s.Exists("conversation:-100:123"))
		assert.Equal(t, time.Hour, s.TTL("conversation:-100:123"))

		got, err := repo.GetState(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.Step, got.Step)
		assert.Equal(t, state.Fields, got.Fields)
		assert.Equal(t, 42, got.PromptMessageID)
		assert.Equal(t, key, got.Key)
	})

	t.Run("GetNonExistentState", func(t *testing.T) {
		got, err := repo.GetState(ctx, conversation.Key{ChatID: 1, UserID: 999})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.ClearState(ctx, key))

		got, err := repo.GetState(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptedStateReadsAsAbsent", func(t *testing.T) {
		require.NoError(t, s.Set("conversation:5:6", `{"flow":"assign","step":"collecting","context":"garbage"}`))

		got, err := repo.GetState(ctx, conversation.Key{ChatID: 5, UserID: 6})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InvalidStateRejected", func(t *testing.T) {
		err := repo.SetState(ctx, &conversation.State{Key: key, Flow: "survey", Step: "x"})
		assert.Error(t, err)
	})

	t.Run("Expiry", func(t *testing.T) {
		state := &conversation.State{Key: key, Flow: conversation.FlowAssign, Step: conversation.StepCollecting, Fields: []string{"1"}}
		require.NoError(t, repo.SetState(ctx, state))
		s.FastForward(2 * time.Hour)

		got, err := repo.GetState(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisStateRepository_NilClient(t *testing.T) {
	repo := NewRedisStateRepository(nil, time.Hour)
	ctx := context.Background()
	key := conversation.Key{ChatID: 1, UserID: 1}

	_, err := repo.GetState(ctx, key)
	assert.Error(t, err)
	assert.Error(t, repo.SetState(ctx, &conversation.State{Key: key}))
	assert.Error(t, repo.ClearState(ctx, key))
}

func TestRedisStateRepository_Unavailable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	repo := NewRedisStateRepository(client, time.Hour)
	_, err = repo.GetState(context.Background(), conversation.Key{ChatID: 1, UserID: 1})
	assert.Error(t, err)
}
