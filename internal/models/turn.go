// internal/models/turn.go
package models

import "time"

// TurnRole distinguishes who authored a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one persisted message. Turns are never mutated;
// regeneration deletes the superseded assistant turn and appends a new one.
type ConversationTurn struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversationId"`
	UserID         string                 `json:"userId"`
	Role           TurnRole               `json:"role"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}
