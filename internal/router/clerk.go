// internal/router/clerk.go
// Package router implements the clerk: contextual query rewriting,
// in-scope classification and retrieval source selection.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/expert"
	"council-orchestrator/internal/models"
)

const clerkSystemPrompt = `You are the Clerk of a legal research council. For every user query you must return a single JSON object with exactly these fields:
{
  "rewritten_query": "<the query rewritten as a standalone question using the conversation history>",
  "is_legal": <true if the query concerns law, legal rights, procedures or disputes>,
  "direct_answer": "<a short courteous reply, ONLY when is_legal is false, otherwise null>",
  "search_intents": ["search_statutes" | "search_cases" | "search_both"]
}
Return ONLY the JSON object. Do not add commentary.`

// clerkSchema is the strict contract for the extracted JSON object.
// Anything that fails validation is treated the same as a parse failure.
const clerkSchema = `{
  "type": "object",
  "properties": {
    "rewritten_query": {"type": "string"},
    "is_legal": {"type": "boolean"},
    "direct_answer": {"type": ["string", "null"]},
    "search_intents": {
      "type": "array",
      "items": {"type": "string", "enum": ["search_statutes", "search_cases", "search_both"]}
    }
  },
  "required": ["rewritten_query", "is_legal"]
}`

type clerkPayload struct {
	RewrittenQuery string   `json:"rewritten_query"`
	IsLegal        bool     `json:"is_legal"`
	DirectAnswer   *string  `json:"direct_answer"`
	SearchIntents  []string `json:"search_intents"`
}

// Clerk issues one routing call per query and never fails the request: on
// any parse, schema or backend failure it fails open to full-scope routing.
type Clerk struct {
	caller expert.Caller
	llm    config.LLMConfig
	cache  *Cache
	schema *gojsonschema.Schema
	logger logger.Logger
}

func NewClerk(caller expert.Caller, llm config.LLMConfig, cache *Cache, log logger.Logger) *Clerk {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(clerkSchema))
	if err != nil {
		// The schema is a compile-time constant; failing to parse it is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("router: invalid clerk schema: %v", err))
	}
	return &Clerk{
		caller: caller,
		llm:    llm,
		cache:  cache,
		schema: schema,
		logger: log.With(map[string]interface{}{"component": "clerk"}),
	}
}

// ClassifyAndRoute produces exactly one RoutingDecision for the query.
func (c *Clerk) ClassifyAndRoute(ctx context.Context, query string, history []models.ConversationTurn, webSearch bool, mode models.Mode) models.RoutingDecision {
	if decision, ok := c.cache.Get(ctx, query, history, webSearch, mode); ok {
		c.logger.Debug("routing decision served from cache", map[string]interface{}{
			"query": query,
		})
		return decision
	}

	temperature := c.llm.ClerkTemperature
	if webSearch {
		temperature = c.llm.ClerkSearchTemperature
	}

	raw, err := c.caller.Call(ctx, expert.Request{
		Model:        c.llm.ClerkModel,
		SystemPrompt: clerkSystemPrompt,
		UserPrompt:   c.buildUserPrompt(query, history, mode),
		Temperature:  temperature,
		WebSearch:    webSearch,
	})
	if err != nil {
		c.logger.Warn("clerk call failed, failing open", map[string]interface{}{
			"error": err.Error(),
		})
		return failOpen(query)
	}

	decision, err := c.parseDecision(raw, query, mode)
	if err != nil {
		c.logger.Warn("clerk response unusable, failing open", map[string]interface{}{
			"error": err.Error(),
			"raw":   truncate(raw, 200),
		})
		return failOpen(query)
	}

	c.cache.Put(ctx, query, history, webSearch, mode, decision)

	c.logger.Info("routing decision", map[string]interface{}{
		"inScope":   decision.InScope,
		"statutes":  decision.Intents.Statutes,
		"cases":     decision.Intents.Cases,
		"rewritten": decision.RewrittenQuery,
	})
	return decision
}

func (c *Clerk) buildUserPrompt(query string, history []models.ConversationTurn, mode models.Mode) string {
	historyText := "NO PREVIOUS HISTORY"
	if len(history) > 0 {
		var lines []string
		for _, turn := range history {
			lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(turn.Role)), turn.Content))
		}
		historyText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`HISTORY:
%s

CURRENT QUERY:
%s

USER SETTING:
Mode: %s
(If Mode is RESEARCH, bias towards "search_both" to ensure comprehensive coverage unless the query is completely unrelated to case law.)`,
		historyText, query, strings.ToUpper(string(mode)))
}

func (c *Clerk) parseDecision(raw, query string, mode models.Mode) (models.RoutingDecision, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return models.RoutingDecision{}, err
	}

	result, err := c.schema.Validate(gojsonschema.NewStringLoader(obj))
	if err != nil {
		return models.RoutingDecision{}, err
	}
	if !result.Valid() {
		return models.RoutingDecision{}, fmt.Errorf("schema violation: %v", result.Errors())
	}

	var payload clerkPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return models.RoutingDecision{}, err
	}

	decision := models.RoutingDecision{
		RewrittenQuery: strings.TrimSpace(payload.RewrittenQuery),
		InScope:        payload.IsLegal,
	}
	if decision.RewrittenQuery == "" {
		decision.RewrittenQuery = query
	}
	if !payload.IsLegal {
		if payload.DirectAnswer != nil {
			decision.DirectAnswer = strings.TrimSpace(*payload.DirectAnswer)
		}
		return decision, nil
	}

	for _, intent := range payload.SearchIntents {
		switch intent {
		case "search_statutes":
			decision.Intents.Statutes = true
		case "search_cases":
			decision.Intents.Cases = true
		case "search_both":
			decision.Intents = models.AllIntents()
		}
	}
	// A legal query with no usable intent still gets searched everywhere.
	if decision.Intents.Empty() {
		decision.Intents = models.AllIntents()
	}
	if mode == models.ModeResearch {
		decision.Intents = models.AllIntents()
	}
	return decision, nil
}

// failOpen is the safety default: never silently drop a possibly relevant
// query.
func failOpen(query string) models.RoutingDecision {
	return models.RoutingDecision{
		RewrittenQuery: query,
		InScope:        true,
		Intents:        models.AllIntents(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
