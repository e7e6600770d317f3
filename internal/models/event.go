// internal/models/event.go
package models

import "encoding/json"

// EventKind tags a StreamEvent for the line-delimited wire format.
type EventKind string

const (
	EventLog      EventKind = "log"
	EventChunks   EventKind = "chunks"
	EventOpinion  EventKind = "opinion"
	EventToken    EventKind = "token"
	EventFollowup EventKind = "followup"
	EventData     EventKind = "data"
)

// StreamEvent is the wire representation of orchestrator progress. It is
// consumed by the transport layer and never stored directly; the fields
// other than Kind are populated per kind.
type StreamEvent struct {
	Kind      EventKind
	Text      string
	Documents []RetrievedDocument
	Opinion   *ExpertOpinion
	FollowUps []string
	Answer    string
	Err       string
}

func LogEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventLog, Text: text}
}

func ChunksEvent(docs []RetrievedDocument) StreamEvent {
	return StreamEvent{Kind: EventChunks, Documents: docs}
}

func OpinionEvent(op ExpertOpinion) StreamEvent {
	return StreamEvent{Kind: EventOpinion, Opinion: &op}
}

func TokenEvent(fragment string) StreamEvent {
	return StreamEvent{Kind: EventToken, Text: fragment}
}

func FollowupEvent(questions []string) StreamEvent {
	return StreamEvent{Kind: EventFollowup, FollowUps: questions}
}

func AnswerEvent(answer string) StreamEvent {
	return StreamEvent{Kind: EventData, Answer: answer}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventData, Err: message}
}

// Terminal reports whether this event closes the stream. Exactly one
// terminal event is emitted per request, except on true cancellation.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventData
}

// Encode renders the event as one wire line (without trailing newline).
func (e StreamEvent) Encode() string {
	switch e.Kind {
	case EventLog:
		return "log: " + e.Text
	case EventChunks:
		docs := e.Documents
		if docs == nil {
			docs = []RetrievedDocument{}
		}
		payload, _ := json.Marshal(docs)
		return "chunks: " + string(payload)
	case EventOpinion:
		payload, _ := json.Marshal(e.Opinion)
		return "opinion: " + string(payload)
	case EventToken:
		payload, _ := json.Marshal(e.Text)
		return "token: " + string(payload)
	case EventFollowup:
		payload, _ := json.Marshal(e.FollowUps)
		return "followup: " + string(payload)
	case EventData:
		if e.Err != "" {
			payload, _ := json.Marshal(map[string]string{"error": e.Err})
			return "data: " + string(payload)
		}
		payload, _ := json.Marshal(map[string]string{"answer": e.Answer})
		return "data: " + string(payload)
	}
	return ""
}
