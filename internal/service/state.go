package service

import (
	"context"
	"time"

	"candypic/internal/conversation"
	"candypic/internal/domain"

	"github.com/rs/zerolog"
)

// StateService loads and stores per-operator conversation state.
type StateService struct {
	stateRepo domain.StateRepository
	logger    *zerolog.Logger
}

func NewStateService(stateRepo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

func (s *StateService) GetState(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	state, err := s.stateRepo.GetState(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("failed to get conversation state")
		return nil, err
	}
	return state, nil
}

func (s *StateService) SaveState(ctx context.Context, state *conversation.State) error {
	state.UpdatedAt = time.Now()
	if err := s.stateRepo.SetState(ctx, state); err != nil {
		s.logger.Error().Err(err).
			Str("key", state.Key.String()).
			Str("step", string(state.Step)).
			Msg("failed to save conversation state")
		return err
	}
	return nil
}

func (s *StateService) ClearState(ctx context.Context, key conversation.Key) error {
	if err := s.stateRepo.ClearState(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("failed to clear conversation state")
		return err
	}
	return nil
}
