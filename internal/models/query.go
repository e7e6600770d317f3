// internal/models/query.go
package models

// Mode selects how much of the deliberation pipeline runs for a query.
// fast and balanced skip the council and synthesize directly from
// retrieved context; research convenes the full council.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeResearch Mode = "research"
)

// ParseMode maps a client-supplied string to a Mode, defaulting to research.
func ParseMode(s string) Mode {
	switch s {
	case string(ModeFast):
		return ModeFast
	case string(ModeBalanced):
		return ModeBalanced
	default:
		return ModeResearch
	}
}

// Query is a single inbound user request. Immutable once received.
type Query struct {
	Text           string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	Mode           Mode   `json:"mode"`
	WebSearch      bool   `json:"webSearch"`
	ContextWindow  int    `json:"contextWindow"`
}

// HistoryLimit returns how many persisted turns the context window covers.
// Each window unit is one user/assistant pair, plus one extra slot so a
// trailing unanswered user turn is included.
func (q Query) HistoryLimit() int {
	w := q.ContextWindow
	if w < 1 {
		w = 1
	}
	if w > 50 {
		w = 50
	}
	return w*2 + 1
}
