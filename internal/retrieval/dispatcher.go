// internal/retrieval/dispatcher.go
package retrieval

import (
	"context"
	"sync"
	"time"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/common/metrics"
	"council-orchestrator/internal/models"
)

// Dispatcher fans one rewritten query out to the selected collections and
// merges the hits. Retrieval never fails the request: a collection that
// errors or times out contributes an empty set.
type Dispatcher struct {
	searcher Searcher
	cfg      config.RetrievalConfig
	logger   logger.Logger
}

func NewDispatcher(searcher Searcher, cfg config.RetrievalConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		searcher: searcher,
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "retrieval"}),
	}
}

// Retrieve runs the selected collection searches concurrently and returns
// the merged, renumbered document list. Merge order is fixed (statutes
// before cases) so downstream prompts are deterministic for a given set of
// results.
func (d *Dispatcher) Retrieve(ctx context.Context, query string, intents models.IntentSet, mode models.Mode) []models.RetrievedDocument {
	collections := make([]models.Collection, 0, 2)
	if intents.Statutes {
		collections = append(collections, models.CollectionStatutes)
	}
	if intents.Cases {
		collections = append(collections, models.CollectionCases)
	}
	if len(collections) == 0 {
		return nil
	}

	topK := d.cfg.TopK
	if mode == models.ModeFast && d.cfg.FastTopK > 0 {
		topK = d.cfg.FastTopK
	}
	if topK <= 0 {
		topK = 5
	}

	results := make([][]models.RetrievedDocument, len(collections))
	var wg sync.WaitGroup
	for i, collection := range collections {
		wg.Add(1)
		go func(i int, collection models.Collection) {
			defer wg.Done()
			results[i] = d.searchOne(ctx, collection, query, topK)
		}(i, collection)
	}
	wg.Wait()

	merged := models.MergeDocuments(results...)
	d.logger.Info("retrieval complete", map[string]interface{}{
		"collections": len(collections),
		"documents":   len(merged),
	})
	return merged
}

func (d *Dispatcher) searchOne(ctx context.Context, collection models.Collection, query string, topK int) []models.RetrievedDocument {
	searchCtx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	docs, err := d.searcher.Search(searchCtx, collection, query, topK)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(string(collection), "error").Inc()
		d.logger.Warn("collection search failed, degrading to empty results", map[string]interface{}{
			"collection": string(collection),
			"error":      err.Error(),
		})
		return nil
	}
	metrics.SearchQueriesTotal.WithLabelValues(string(collection), "success").Inc()
	return docs
}

func (d *Dispatcher) timeout() time.Duration {
	if d.cfg.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.cfg.Timeout) * time.Millisecond
}
