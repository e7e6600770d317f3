// internal/council/dispatcher.go
// Package council fans a query out to the configured expert roles and
// collects their opinions in completion order.
package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/common/metrics"
	"council-orchestrator/internal/expert"
	"council-orchestrator/internal/models"
)

// Dispatcher launches one goroutine per council role. Each role sees only
// the slice of retrieved context its configuration names.
type Dispatcher struct {
	caller expert.Caller
	llm    config.LLMConfig
	cfg    config.CouncilConfig
	logger logger.Logger
}

func NewDispatcher(caller expert.Caller, llm config.LLMConfig, cfg config.CouncilConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		caller: caller,
		llm:    llm,
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "council"}),
	}
}

// Convene starts all roles and returns a channel that yields opinions as
// each member finishes. The channel closes once every member has either
// submitted an opinion or failed. Roles whose configured context slice is
// empty are skipped rather than asked to opine on nothing.
func (d *Dispatcher) Convene(ctx context.Context, query string, docs []models.RetrievedDocument) <-chan models.ExpertOpinion {
	out := make(chan models.ExpertOpinion)
	var wg sync.WaitGroup

	for _, role := range d.cfg.Roles {
		contextText := renderContext(selectDocuments(docs, role.Context))
		if contextText == "" && !role.WebSearch {
			d.logger.Info("skipping council member with no context", map[string]interface{}{
				"role": role.Name,
			})
			continue
		}

		wg.Add(1)
		go func(role config.RoleConfig, contextText string) {
			defer wg.Done()
			opinion, ok := d.askMember(ctx, role, query, contextText)
			if !ok {
				return
			}
			select {
			case out <- opinion:
			case <-ctx.Done():
			}
		}(role, contextText)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (d *Dispatcher) askMember(ctx context.Context, role config.RoleConfig, query, contextText string) (models.ExpertOpinion, bool) {
	memberCtx, cancel := context.WithTimeout(ctx, d.memberTimeout())
	defer cancel()

	start := time.Now()
	text, err := d.caller.Call(memberCtx, expert.Request{
		Model:        role.Model,
		SystemPrompt: role.SystemPrompt,
		UserPrompt:   buildMemberPrompt(query, contextText),
		Temperature:  d.llm.CouncilTemperature,
		WebSearch:    role.WebSearch,
	})
	metrics.ExpertCallDuration.WithLabelValues(role.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ExpertCallsTotal.WithLabelValues(role.Name, "error").Inc()
		d.logger.Warn("council member failed", map[string]interface{}{
			"role":  role.Name,
			"model": role.Model,
			"error": err.Error(),
		})
		return models.ExpertOpinion{}, false
	}

	metrics.ExpertCallsTotal.WithLabelValues(role.Name, "success").Inc()
	d.logger.Info("council member responded", map[string]interface{}{
		"role":     role.Name,
		"duration": time.Since(start).String(),
	})
	return models.ExpertOpinion{
		Role:          role.Name,
		Model:         role.Model,
		Text:          strings.TrimSpace(text),
		UsedWebSearch: role.WebSearch,
	}, true
}

func (d *Dispatcher) memberTimeout() time.Duration {
	if d.cfg.Timeout <= 0 {
		return 90 * time.Second
	}
	return time.Duration(d.cfg.Timeout) * time.Millisecond
}

// selectDocuments filters the merged result set down to the slice a role
// is configured to see.
func selectDocuments(docs []models.RetrievedDocument, roleContext string) []models.RetrievedDocument {
	switch roleContext {
	case "statutes":
		return filterByCollection(docs, models.CollectionStatutes)
	case "cases":
		return filterByCollection(docs, models.CollectionCases)
	default:
		return docs
	}
}

func filterByCollection(docs []models.RetrievedDocument, collection models.Collection) []models.RetrievedDocument {
	var filtered []models.RetrievedDocument
	for _, doc := range docs {
		if doc.Collection == collection {
			filtered = append(filtered, doc)
		}
	}
	return filtered
}

func renderContext(docs []models.RetrievedDocument) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&b, "[Source %d | %s | score %.3f]\n%s\n\n", doc.Rank, doc.Collection, doc.Score, doc.Text)
	}
	return strings.TrimSpace(b.String())
}

func buildMemberPrompt(query, contextText string) string {
	if contextText == "" {
		contextText = "NO RETRIEVED CONTEXT. Rely on your own knowledge and web search results."
	}
	return fmt.Sprintf(`RETRIEVED CONTEXT:
%s

QUESTION:
%s

Give your professional opinion grounded in the context above. Cite sources by their [Source N] markers where applicable.`, contextText, query)
}
