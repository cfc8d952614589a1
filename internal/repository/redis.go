package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"candypic/internal/config"
	"candypic/internal/conversation"

	"github.com/redis/go-redis/v9"
)

// RedisStateRepository keeps conversation state in Redis with a TTL.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

type redisState struct {
	Flow            string    `json:"flow"`
	Step            string    `json:"step"`
	Context         string    `json:"context"`
	PromptMessageID int       `json:"prompt_message_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{
		client: client,
		ttl:    ttl,
	}
}

func stateKey(key conversation.Key) string {
	return fmt.Sprintf("conversation:%d:%d", key.ChatID, key.UserID)
}

func (r *RedisStateRepository) GetState(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, stateKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from redis: %w", err)
	}

	var stored redisState
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	state, ok := conversation.Restore(key, stored.Flow, stored.Step, stored.Context, stored.PromptMessageID, stored.UpdatedAt)
	if !ok {
		// unreadable state is treated as no state
		return nil, nil
	}
	return state, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, state *conversation.State) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := state.Validate(); err != nil {
		return err
	}
	encoded, err := state.Context()
	if err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(redisState{
		Flow:            string(state.Flow),
		Step:            string(state.Step),
		Context:         encoded,
		PromptMessageID: state.PromptMessageID,
		UpdatedAt:       state.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := r.client.Set(ctx, stateKey(state.Key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state in redis: %w", err)
	}

	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, key conversation.Key) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, stateKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete state from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client if there is one.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
