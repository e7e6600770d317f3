// internal/retrieval/search.go
// Package retrieval performs vector search against the document indexes
// and merges per-collection result sets for the council.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/database"
	commonerrors "council-orchestrator/internal/common/errors"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/expert"
	"council-orchestrator/internal/models"
)

// Searcher runs a single-collection kNN query.
type Searcher interface {
	Search(ctx context.Context, collection models.Collection, query string, topK int) ([]models.RetrievedDocument, error)
}

// VectorSearch embeds the query once per call and issues a kNN search
// against the index configured for the collection.
type VectorSearch struct {
	es       *database.ElasticsearchClient
	embedder expert.Embedder
	cfg      config.RetrievalConfig
	logger   logger.Logger
}

func NewVectorSearch(es *database.ElasticsearchClient, embedder expert.Embedder, cfg config.RetrievalConfig, log logger.Logger) *VectorSearch {
	return &VectorSearch{
		es:       es,
		embedder: embedder,
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "vector-search"}),
	}
}

type knnQuery struct {
	KNN    knnClause `json:"knn"`
	Size   int       `json:"size"`
	Source []string  `json:"_source"`
}

type knnClause struct {
	Field         string    `json:"field"`
	QueryVector   []float32 `json:"query_vector"`
	K             int       `json:"k"`
	NumCandidates int       `json:"num_candidates"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Text     string                 `json:"text"`
				Metadata map[string]interface{} `json:"metadata"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (v *VectorSearch) Search(ctx context.Context, collection models.Collection, query string, topK int) ([]models.RetrievedDocument, error) {
	vector, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, commonerrors.NewEmbeddingFailedError(err)
	}

	index := v.indexFor(collection)
	body, err := json.Marshal(knnQuery{
		KNN: knnClause{
			Field:         "embedding",
			QueryVector:   vector,
			K:             topK,
			NumCandidates: topK * 10,
		},
		Size:   topK,
		Source: []string{"text", "metadata"},
	})
	if err != nil {
		return nil, commonerrors.NewSearchQueryFailedError(string(collection), err)
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, v.es.Client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewSearchTimeoutError(string(collection))
		}
		return nil, commonerrors.NewSearchQueryFailedError(string(collection), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		payload, _ := io.ReadAll(res.Body)
		return nil, commonerrors.NewSearchQueryFailedError(string(collection),
			fmt.Errorf("elasticsearch %s: %s", res.Status(), string(payload)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, commonerrors.NewSearchQueryFailedError(string(collection), err)
	}

	docs := make([]models.RetrievedDocument, 0, len(parsed.Hits.Hits))
	for i, hit := range parsed.Hits.Hits {
		docs = append(docs, models.RetrievedDocument{
			Rank:       i + 1,
			Score:      hit.Score,
			Text:       hit.Source.Text,
			Collection: collection,
			Metadata:   hit.Source.Metadata,
		})
	}
	return docs, nil
}

func (v *VectorSearch) indexFor(collection models.Collection) string {
	if collection == models.CollectionCases {
		return v.cfg.CasesIndex
	}
	return v.cfg.StatutesIndex
}
