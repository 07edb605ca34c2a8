package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetSelection returns the saved current node of a conversation. ok is false
// when nothing was saved.
func (s *Store) GetSelection(ctx context.Context, conversationID string) (string, bool, error) {
	var node string
	err := s.pool.QueryRow(ctx, `
		SELECT current_node FROM branch_selections WHERE conversation_id = $1`,
		conversationID,
	).Scan(&node)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get selection: %w", err)
	}
	return node, true, nil
}

// SaveSelection records the current node of a conversation.
func (s *Store) SaveSelection(ctx context.Context, conversationID, nodeID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO branch_selections (conversation_id, current_node, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (conversation_id)
		DO UPDATE SET current_node = $2, updated_at = now()`,
		conversationID, nodeID,
	)
	if err != nil {
		return fmt.Errorf("upsert selection: %w", err)
	}
	return nil
}

// DeleteSelection forgets the saved selection of a conversation.
func (s *Store) DeleteSelection(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM branch_selections WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("delete selection: %w", err)
	}
	return nil
}
