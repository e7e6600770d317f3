// internal/conversation/store.go
// Package conversation persists turns and resolves how an incoming query
// continues an existing conversation.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"council-orchestrator/internal/common/database"
	commonerrors "council-orchestrator/internal/common/errors"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/models"
)

// foreignKeyViolation is the postgres class 23 code raised when a turn
// references a conversation row that does not exist.
const foreignKeyViolation = "23503"

// Store is the postgres-backed turn repository.
type Store struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewStore(db *database.PostgresClient, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "conversation-store"}),
	}
}

// CreateConversation inserts a conversation row. The id may be supplied by
// the client; a duplicate insert is treated as success so a concurrent
// first message does not fail the request.
func (s *Store) CreateConversation(ctx context.Context, id, userID, title string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		id, userID, title, time.Now().UTC())
	if err != nil {
		return commonerrors.NewConversationCreateFailedError(err)
	}
	return nil
}

// AddTurn inserts one turn and returns its generated id.
func (s *Store) AddTurn(ctx context.Context, turn models.ConversationTurn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	metadata, err := marshalMetadata(turn.Metadata)
	if err != nil {
		return "", commonerrors.NewTurnInsertFailedError(err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO conversation_turns (id, conversation_id, user_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.ConversationID, turn.UserID, string(turn.Role), turn.Content, metadata, time.Now().UTC())
	if err != nil {
		return "", commonerrors.NewTurnInsertFailedError(err)
	}
	return turn.ID, nil
}

// DeleteTurn removes one turn by id.
func (s *Store) DeleteTurn(ctx context.Context, turnID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM conversation_turns WHERE id = $1`, turnID); err != nil {
		return commonerrors.NewTurnDeleteFailedError(err)
	}
	return nil
}

// RecentTurns returns up to limit most recent turns, oldest first. The
// query fetches newest-first for index locality and the slice is reversed
// before returning.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, user_id, role, content, metadata, created_at
		FROM conversation_turns
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, commonerrors.NewHistoryFetchFailedError(err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var role string
		var metadata []byte
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.UserID, &role, &turn.Content, &metadata, &turn.CreatedAt); err != nil {
			return nil, commonerrors.NewHistoryFetchFailedError(err)
		}
		turn.Role = models.TurnRole(role)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &turn.Metadata); err != nil {
				s.logger.Warn("skipping unreadable turn metadata", map[string]interface{}{
					"turnID": turn.ID,
					"error":  err.Error(),
				})
			}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewHistoryFetchFailedError(err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// IsForeignKeyViolation reports whether err is a postgres FK violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == foreignKeyViolation
	}
	return false
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}
