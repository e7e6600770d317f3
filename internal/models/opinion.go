// internal/models/opinion.go
package models

// ExpertOpinion is one council member's submission. A member that failed
// or timed out produces no opinion at all; there is no error variant.
type ExpertOpinion struct {
	Role          string `json:"role"`
	Model         string `json:"model"`
	Text          string `json:"opinion"`
	UsedWebSearch bool   `json:"usedWebSearch,omitempty"`
}

// DeliberationResult is the fully assembled outcome of one request.
// Opinions appear in completion order, not launch order.
type DeliberationResult struct {
	FinalAnswer string          `json:"finalAnswer"`
	Opinions    []ExpertOpinion `json:"opinions"`
	FollowUps   []string        `json:"followUps,omitempty"`
}
