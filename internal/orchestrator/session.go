// internal/orchestrator/session.go
package orchestrator

import (
	"context"

	"council-orchestrator/internal/models"
)

// session owns all per-request state. Everything a request accumulates
// lives here, so the pipeline needs no globals and no locks beyond the
// output channel itself.
type session struct {
	query   models.Query
	out     chan<- models.StreamEvent
	ctx     context.Context
	stopped bool

	conversationID string
	logs           []string
	chunks         []models.RetrievedDocument
	opinions       []models.ExpertOpinion
	answer         string
	followUps      []string
}

// send writes one event, recording it in the session state. It returns
// false once the consumer is gone; the pipeline unwinds without emitting
// anything further.
func (s *session) send(ev models.StreamEvent) bool {
	if s.stopped {
		return false
	}
	// Check cancellation before racing it against a ready consumer, so a
	// dead request never keeps emitting.
	select {
	case <-s.ctx.Done():
		s.stopped = true
		return false
	default:
	}
	select {
	case s.out <- ev:
	case <-s.ctx.Done():
		s.stopped = true
		return false
	}

	switch ev.Kind {
	case models.EventLog:
		s.logs = append(s.logs, ev.Text)
	case models.EventChunks:
		s.chunks = ev.Documents
	case models.EventOpinion:
		if ev.Opinion != nil {
			s.opinions = append(s.opinions, *ev.Opinion)
		}
	case models.EventFollowup:
		s.followUps = ev.FollowUps
	case models.EventData:
		if ev.Err == "" {
			s.answer = ev.Answer
		}
	}
	return true
}

func (s *session) log(text string) bool {
	return s.send(models.LogEvent(text))
}

// metadata assembles the assistant-turn payload persisted with the final
// answer. The shape is what the conversation UI reads back.
func (s *session) metadata() map[string]interface{} {
	chunks := s.chunks
	if chunks == nil {
		chunks = []models.RetrievedDocument{}
	}
	opinions := s.opinions
	if opinions == nil {
		opinions = []models.ExpertOpinion{}
	}
	meta := map[string]interface{}{
		"logs":             s.logs,
		"chunks":           chunks,
		"council_opinions": opinions,
	}
	if len(s.followUps) > 0 {
		meta["follow_ups"] = s.followUps
	}
	return meta
}
