// internal/models/routing.go
package models

// Collection names a retrieval index. Scores are comparable only within a
// single collection.
type Collection string

const (
	CollectionStatutes Collection = "statutes"
	CollectionCases    Collection = "cases"
)

// IntentSet records which collections the clerk judged relevant.
type IntentSet struct {
	Statutes bool `json:"statutes"`
	Cases    bool `json:"cases"`
}

// AllIntents is the fail-open default: search everything.
func AllIntents() IntentSet {
	return IntentSet{Statutes: true, Cases: true}
}

func (s IntentSet) Empty() bool {
	return !s.Statutes && !s.Cases
}

// RoutingDecision is the clerk's verdict for one query. Exactly one is
// produced per request. DirectAnswer is set only when InScope is false.
type RoutingDecision struct {
	RewrittenQuery string    `json:"rewrittenQuery"`
	InScope        bool      `json:"inScope"`
	DirectAnswer   string    `json:"directAnswer,omitempty"`
	Intents        IntentSet `json:"intents"`
}
