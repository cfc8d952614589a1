package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"candypic/internal/conversation"

	"github.com/rs/zerolog"
)

type conversationRow struct {
	ChatID          int64     `db:"chat_id"`
	UserID          int64     `db:"user_id"`
	Flow            string    `db:"flow"`
	Step            string    `db:"step"`
	Context         string    `db:"context"`
	PromptMessageID int       `db:"prompt_message_id"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ConversationRepository keeps flow state in the conversations table.
// Rows older than ttl read as absent.
type ConversationRepository struct {
	db     *DB
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewConversationRepository(db *DB, ttl time.Duration, logger *zerolog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, ttl: ttl, logger: logger}
}

func (r *ConversationRepository) GetState(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	var row conversationRow
	query := r.db.Rebind(`SELECT chat_id, user_id, flow, step, context, prompt_message_id, updated_at
		FROM conversations WHERE chat_id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &row, query, key.ChatID, key.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation %s: %w", key, err)
	}

	if r.ttl > 0 && time.Since(row.UpdatedAt) > r.ttl {
		if err := r.ClearState(ctx, key); err != nil {
			r.logger.Warn().Err(err).Str("conversation", key.String()).Msg("Failed to drop expired conversation")
		}
		return nil, nil
	}

	state, ok := conversation.Restore(key, row.Flow, row.Step, row.Context, row.PromptMessageID, row.UpdatedAt)
	if !ok {
		r.logger.Warn().Str("conversation", key.String()).Msg("Ignoring unreadable conversation state")
		return nil, nil
	}
	return state, nil
}

func (r *ConversationRepository) SetState(ctx context.Context, state *conversation.State) error {
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

	query := r.db.Rebind(`
		INSERT INTO conversations (chat_id, user_id, flow, step, context, prompt_message_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, user_id) DO UPDATE
		SET flow = excluded.flow, step = excluded.step, context = excluded.context,
			prompt_message_id = excluded.prompt_message_id, updated_at = excluded.updated_at`)
	_, err = r.db.ExecContext(ctx, query,
		state.Key.ChatID, state.Key.UserID, string(state.Flow), string(state.Step), encoded, state.PromptMessageID, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", state.Key, err)
	}
	return nil
}

func (r *ConversationRepository) ClearState(ctx context.Context, key conversation.Key) error {
	query := r.db.Rebind(`DELETE FROM conversations WHERE chat_id = ? AND user_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, key.ChatID, key.UserID); err != nil {
		return fmt.Errorf("clear conversation %s: %w", key, err)
	}
	return nil
}
