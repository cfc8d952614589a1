package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"candypic/internal/conversation"
	"candypic/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStateRepository reads and writes the primary store and switches to
// the durable fallback while the primary is failing. A primary miss is checked
// against the fallback, so sessions started during an outage survive recovery.
// Keys written or cleared only on the fallback are remembered, and their primary
// copy is dropped on the first read after recovery.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	stale     sync.Map // conversation.Key -> struct{}
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to database")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary is true while healthy, and once per recovery interval while down.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStateRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary state repository recovered")
	}
}

func (r *FailoverStateRepository) GetState(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	if r.usePrimary() {
		state, err := r.primary.GetState(ctx, key)
		if err == nil {
			r.recovered()
			if state == nil {
				r.stale.Delete(key)
			} else if !r.dropStale(ctx, key) {
				return state, nil
			}
			return r.fallback.GetState(ctx, key)
		}
		r.markDown(err)
	}

	return r.fallback.GetState(ctx, key)
}

// dropStale deletes the primary copy of a key that changed on the fallback
// while the primary was down. It reports whether the copy was stale.
func (r *FailoverStateRepository) dropStale(ctx context.Context, key conversation.Key) bool {
	if _, ok := r.stale.Load(key); !ok {
		return false
	}
	if err := r.primary.ClearState(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to drop stale primary state")
		return true
	}
	r.stale.Delete(key)
	return true
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *conversation.State) error {
	if r.usePrimary() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			r.recovered()
			r.stale.Delete(state.Key)
			return nil
		}
		r.markDown(err)
	}

	r.stale.Store(state.Key, struct{}{})
	return r.fallback.SetState(ctx, state)
}

// ClearState clears both stores so a session written during an outage cannot reappear.
func (r *FailoverStateRepository) ClearState(ctx context.Context, key conversation.Key) error {
	cleared := false
	if r.usePrimary() {
		if err := r.primary.ClearState(ctx, key); err != nil {
			r.markDown(err)
		} else {
			r.recovered()
			cleared = true
		}
	}
	if cleared {
		r.stale.Delete(key)
	} else {
		r.stale.Store(key, struct{}{})
	}

	return r.fallback.ClearState(ctx, key)
}
