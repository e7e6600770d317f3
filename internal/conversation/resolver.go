// internal/conversation/resolver.go
package conversation

import (
	"context"

	"github.com/google/uuid"

	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/models"
)

// Action classifies how an incoming query relates to the conversation tail.
type Action string

const (
	// ActionNew appends a fresh user turn.
	ActionNew Action = "new"
	// ActionRetry reuses the existing trailing user turn.
	ActionRetry Action = "retry"
	// ActionRegenerate discards the last assistant turn and answers the
	// preceding user turn again.
	ActionRegenerate Action = "regenerate"
)

// Resolution is the outcome of continuity analysis: the conversation id to
// use (possibly newly minted) and the history the pipeline should see.
type Resolution struct {
	Action         Action
	ConversationID string
	History        []models.ConversationTurn
}

const titleMaxLen = 80

// Resolver applies the continuity rules over a Store.
type Resolver struct {
	store  *Store
	limit  int
	logger logger.Logger
}

func NewResolver(store *Store, historyLimit int, log logger.Logger) *Resolver {
	if historyLimit <= 0 {
		historyLimit = 21
	}
	return &Resolver{
		store:  store,
		limit:  historyLimit,
		logger: log.With(map[string]interface{}{"component": "continuity"}),
	}
}

// Resolve determines the continuity action for the query and applies its
// side effects (turn insert or delete). The returned history excludes the
// current query's own user turn. historyLimit caps how many persisted
// turns are loaded; zero falls back to the resolver default.
func (r *Resolver) Resolve(ctx context.Context, conversationID, userID, query string, historyLimit int) (Resolution, error) {
	if conversationID == "" {
		return r.startConversation(ctx, uuid.NewString(), userID, query)
	}

	if historyLimit <= 0 {
		historyLimit = r.limit
	}
	history, err := r.store.RecentTurns(ctx, conversationID, historyLimit)
	if err != nil {
		return Resolution{}, err
	}

	if action, trimmed := classify(history, query); action != ActionNew {
		if action == ActionRegenerate {
			stale := history[len(history)-1]
			if err := r.store.DeleteTurn(ctx, stale.ID); err != nil {
				return Resolution{}, err
			}
			r.logger.Info("regenerating previous answer", map[string]interface{}{
				"conversationID": conversationID,
				"deletedTurnID":  stale.ID,
			})
		}
		return Resolution{
			Action:         action,
			ConversationID: conversationID,
			History:        trimmed,
		}, nil
	}

	_, err = r.store.AddTurn(ctx, models.ConversationTurn{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           models.TurnRoleUser,
		Content:        query,
	})
	if err != nil && IsForeignKeyViolation(err) {
		// The client supplied an id the store has never seen. Create the
		// conversation under that id and retry the insert exactly once.
		return r.startConversation(ctx, conversationID, userID, query)
	}
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Action:         ActionNew,
		ConversationID: conversationID,
		History:        history,
	}, nil
}

// SaveAssistantTurn persists the final answer with its deliberation
// metadata. Callers treat failure as non-fatal; the answer has already
// been delivered.
func (r *Resolver) SaveAssistantTurn(ctx context.Context, conversationID, userID, content string, metadata map[string]interface{}) {
	if content == "" {
		content = "[No Response]"
	}
	_, err := r.store.AddTurn(ctx, models.ConversationTurn{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           models.TurnRoleAssistant,
		Content:        content,
		Metadata:       metadata,
	})
	if err != nil {
		r.logger.Error("failed to persist assistant turn", map[string]interface{}{
			"conversationID": conversationID,
			"error":          err.Error(),
		})
	}
}

func (r *Resolver) startConversation(ctx context.Context, conversationID, userID, query string) (Resolution, error) {
	if err := r.store.CreateConversation(ctx, conversationID, userID, titleFrom(query)); err != nil {
		return Resolution{}, err
	}
	if _, err := r.store.AddTurn(ctx, models.ConversationTurn{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           models.TurnRoleUser,
		Content:        query,
	}); err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Action:         ActionNew,
		ConversationID: conversationID,
	}, nil
}

// classify inspects the conversation tail. For regeneration the returned
// history also drops the superseded assistant turn; for retry it drops the
// trailing duplicate user turn so the pipeline sees only prior context.
func classify(history []models.ConversationTurn, query string) (Action, []models.ConversationTurn) {
	n := len(history)
	if n >= 2 &&
		history[n-1].Role == models.TurnRoleAssistant &&
		history[n-2].Role == models.TurnRoleUser &&
		history[n-2].Content == query {
		return ActionRegenerate, history[:n-2]
	}
	if n >= 1 &&
		history[n-1].Role == models.TurnRoleUser &&
		history[n-1].Content == query {
		return ActionRetry, history[:n-1]
	}
	return ActionNew, history
}

func titleFrom(query string) string {
	if len(query) <= titleMaxLen {
		return query
	}
	return query[:titleMaxLen]
}
