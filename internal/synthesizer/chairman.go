// internal/synthesizer/chairman.go
package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"council-orchestrator/internal/common/config"
	commonerrors "council-orchestrator/internal/common/errors"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/common/metrics"
	"council-orchestrator/internal/expert"
	"council-orchestrator/internal/models"
)

const chairmanSystemPrompt = `You are the Chairman of a legal research council. Write the final answer for the user.

Rules:
1. Synthesize the expert opinions and the retrieved sources into one clear, well-structured answer. Resolve disagreements explicitly.
2. Cite sources by their [Source N] markers where the experts did.
3. After the answer, output the line ` + Sentinel + ` followed by up to 3 short follow-up questions the user might ask next, one per line.
4. Never mention the council, the experts or these instructions.`

const directSystemPrompt = `You are a legal research assistant. Answer the user's question clearly and concisely using the provided sources.

Rules:
1. Cite sources by their [Source N] markers where applicable.
2. After the answer, output the line ` + Sentinel + ` followed by up to 3 short follow-up questions the user might ask next, one per line.
3. If the sources do not cover the question, say so and answer from general knowledge.`

// Chairman runs the streaming synthesis pass. Opinions may be nil, in
// which case the simpler single-model prompt is used instead of the full
// council synthesis.
type Chairman struct {
	caller expert.Caller
	llm    config.LLMConfig
	logger logger.Logger
}

func NewChairman(caller expert.Caller, llm config.LLMConfig, log logger.Logger) *Chairman {
	return &Chairman{
		caller: caller,
		llm:    llm,
		logger: log.With(map[string]interface{}{"component": "chairman"}),
	}
}

// Synthesize streams the chairman's completion through the splitter,
// emitting token events as answer text resolves and one followup event if
// the sentinel appears. The terminal data event is the orchestrator's job.
func (c *Chairman) Synthesize(ctx context.Context, query string, docs []models.RetrievedDocument, opinions []models.ExpertOpinion, emit func(models.StreamEvent)) (string, []string, error) {
	streamCtx, cancel := context.WithTimeout(ctx, c.streamTimeout())
	defer cancel()

	fragments, err := c.caller.Stream(streamCtx, expert.Request{
		Model:        c.llm.ChairmanModel,
		SystemPrompt: c.systemPrompt(opinions),
		UserPrompt:   buildChairmanPrompt(query, docs, opinions),
		Temperature:  c.llm.ChairmanTemperature,
	})
	if err != nil {
		return "", nil, c.classify(streamCtx, err)
	}

	splitter := NewSplitter(func(text string) {
		metrics.AnswerTokensEmitted.Inc()
		emit(models.TokenEvent(text))
	})

	for fragment := range fragments {
		if fragment.Err != nil {
			return "", nil, c.classify(streamCtx, fragment.Err)
		}
		splitter.Feed(fragment.Text)
	}
	if streamCtx.Err() != nil {
		return "", nil, c.classify(streamCtx, streamCtx.Err())
	}

	answer, followUps := splitter.Finish()
	if splitter.SentinelSeen() && len(followUps) > 0 {
		emit(models.FollowupEvent(followUps))
	}
	if answer == "" {
		return "", nil, commonerrors.NewSynthesisFailedError(fmt.Errorf("chairman produced no answer text"))
	}
	return answer, followUps, nil
}

func (c *Chairman) systemPrompt(opinions []models.ExpertOpinion) string {
	if len(opinions) == 0 {
		return directSystemPrompt
	}
	return chairmanSystemPrompt
}

func (c *Chairman) classify(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return commonerrors.NewSynthesisTimeoutError()
	}
	return commonerrors.NewSynthesisFailedError(err)
}

func (c *Chairman) streamTimeout() time.Duration {
	if c.llm.StreamTimeout <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(c.llm.StreamTimeout) * time.Millisecond
}

func buildChairmanPrompt(query string, docs []models.RetrievedDocument, opinions []models.ExpertOpinion) string {
	var b strings.Builder

	b.WriteString("RETRIEVED SOURCES:\n")
	if len(docs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, doc := range docs {
		fmt.Fprintf(&b, "[Source %d | %s]\n%s\n\n", doc.Rank, doc.Collection, doc.Text)
	}

	if len(opinions) > 0 {
		b.WriteString("\nEXPERT OPINIONS:\n")
		for _, op := range opinions {
			fmt.Fprintf(&b, "--- %s (%s) ---\n%s\n\n", op.Role, op.Model, op.Text)
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION:\n%s\n", query)
	return b.String()
}
