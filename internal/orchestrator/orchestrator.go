// internal/orchestrator/orchestrator.go
// Package orchestrator drives one deliberation per request: continuity,
// routing, retrieval, the council, and the streaming synthesis pass.
package orchestrator

import (
	"context"
	"time"

	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/common/metrics"
	"council-orchestrator/internal/common/observability"
	"council-orchestrator/internal/conversation"
	"council-orchestrator/internal/models"
)

// councilUnavailableMessage is shown when every council member absented.
// The wording is fixed; clients match on it.
const councilUnavailableMessage = "The AI Council could not convene due to high traffic (Rate Limits). Please try again later."

const defaultDirectAnswer = "I can only help with legal research questions. Could you rephrase your question in a legal context?"

// Router produces exactly one routing decision per request.
type Router interface {
	ClassifyAndRoute(ctx context.Context, query string, history []models.ConversationTurn, webSearch bool, mode models.Mode) models.RoutingDecision
}

// Retriever fans out the collection searches and merges the hits.
type Retriever interface {
	Retrieve(ctx context.Context, query string, intents models.IntentSet, mode models.Mode) []models.RetrievedDocument
}

// Council convenes the expert roles and yields opinions in completion order.
type Council interface {
	Convene(ctx context.Context, query string, docs []models.RetrievedDocument) <-chan models.ExpertOpinion
}

// Synthesizer runs the chairman's streaming pass.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, docs []models.RetrievedDocument, opinions []models.ExpertOpinion, emit func(models.StreamEvent)) (answer string, followUps []string, err error)
}

// Continuity resolves conversation state and persists turns.
type Continuity interface {
	Resolve(ctx context.Context, conversationID, userID, query string, historyLimit int) (conversation.Resolution, error)
	SaveAssistantTurn(ctx context.Context, conversationID, userID, content string, metadata map[string]interface{})
}

type Orchestrator struct {
	router      Router
	retriever   Retriever
	council     Council
	synthesizer Synthesizer
	continuity  Continuity
	obs         *observability.Observability
	logger      logger.Logger
}

func New(router Router, retriever Retriever, council Council, synthesizer Synthesizer, continuity Continuity, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		router:      router,
		retriever:   retriever,
		council:     council,
		synthesizer: synthesizer,
		continuity:  continuity,
		obs:         obs,
		logger:      log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Deliberate runs the full pipeline and streams progress events. The
// returned channel closes after the terminal data event, or without one if
// the context is cancelled first.
func (o *Orchestrator) Deliberate(ctx context.Context, q models.Query) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		start := time.Now()
		s := &session{query: q, out: out, ctx: ctx}
		status := o.run(ctx, s)
		metrics.DeliberationsTotal.WithLabelValues(string(q.Mode), status).Inc()
		metrics.DeliberationDuration.WithLabelValues(string(q.Mode)).Observe(time.Since(start).Seconds())
		o.obs.RecordDeliberation(ctx, string(q.Mode), status)
		o.obs.RecordDeliberationDuration(ctx, time.Since(start), string(q.Mode))
	}()
	return out
}

// run returns the outcome label used for metrics. Every path except true
// cancellation ends with exactly one terminal data event.
func (o *Orchestrator) run(ctx context.Context, s *session) string {
	resolution, err := o.continuity.Resolve(ctx, s.query.ConversationID, s.query.UserID, s.query.Text, s.query.HistoryLimit())
	if err != nil {
		if ctx.Err() != nil {
			return "cancelled"
		}
		o.logger.Error("continuity resolution failed", map[string]interface{}{"error": err.Error()})
		s.send(models.ErrorEvent("Your conversation could not be loaded. Please try again."))
		return "error"
	}
	s.conversationID = resolution.ConversationID
	if resolution.Action != conversation.ActionNew {
		o.logger.Info("continuing conversation", map[string]interface{}{
			"conversationID": resolution.ConversationID,
			"action":         string(resolution.Action),
		})
	}

	if !s.log("The Clerk is reviewing your query...") {
		return "cancelled"
	}
	decision := o.router.ClassifyAndRoute(ctx, s.query.Text, resolution.History, s.query.WebSearch, s.query.Mode)

	if !decision.InScope {
		answer := decision.DirectAnswer
		if answer == "" {
			answer = defaultDirectAnswer
		}
		if !s.send(models.AnswerEvent(answer)) {
			return "cancelled"
		}
		o.persist(ctx, s)
		return "out_of_scope"
	}

	var docs []models.RetrievedDocument
	if !decision.Intents.Empty() {
		if !s.log("Searching the law library...") {
			return "cancelled"
		}
		docs = o.retriever.Retrieve(ctx, decision.RewrittenQuery, decision.Intents, s.query.Mode)
		if !s.send(models.ChunksEvent(docs)) {
			return "cancelled"
		}
	}

	var opinions []models.ExpertOpinion
	if s.query.Mode == models.ModeResearch {
		if !s.log("The Council is deliberating...") {
			return "cancelled"
		}
		for opinion := range o.council.Convene(ctx, decision.RewrittenQuery, docs) {
			if !s.send(models.OpinionEvent(opinion)) {
				return "cancelled"
			}
		}
		opinions = s.opinions
		o.obs.RecordOpinions(ctx, len(opinions))

		if len(opinions) == 0 {
			if ctx.Err() != nil {
				o.persist(ctx, s)
				return "cancelled"
			}
			o.logger.Warn("council produced no opinions", map[string]interface{}{
				"conversationID": s.conversationID,
			})
			if !s.send(models.ErrorEvent(councilUnavailableMessage)) {
				return "cancelled"
			}
			o.persist(ctx, s)
			return "council_empty"
		}
	}

	if !s.log("The Chairman is drafting the final answer...") {
		return "cancelled"
	}
	answer, followUps, err := o.synthesizer.Synthesize(ctx, decision.RewrittenQuery, docs, opinions, func(ev models.StreamEvent) {
		s.send(ev)
	})
	if err != nil {
		if ctx.Err() == context.Canceled {
			o.persist(ctx, s)
			return "cancelled"
		}
		o.logger.Error("synthesis failed", map[string]interface{}{"error": err.Error()})
		s.send(models.ErrorEvent("The final answer could not be drafted. Please try again."))
		o.persist(ctx, s)
		return "error"
	}
	s.followUps = followUps

	if !s.send(models.AnswerEvent(answer)) {
		o.persist(ctx, s)
		return "cancelled"
	}
	o.persist(ctx, s)
	return "success"
}

// persist writes the assistant turn regardless of how the request ended.
// It runs on a context detached from the request so a client disconnect
// does not lose the turn.
func (o *Orchestrator) persist(ctx context.Context, s *session) {
	if s.conversationID == "" {
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	o.continuity.SaveAssistantTurn(persistCtx, s.conversationID, s.query.UserID, s.answer, s.metadata())
}
