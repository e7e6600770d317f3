// internal/models/document.go
package models

// RetrievedDocument is one search hit. Rank is collection-relative when it
// leaves a searcher and reassigned globally after collections are merged.
type RetrievedDocument struct {
	Rank       int                    `json:"rank"`
	Score      float64                `json:"score"`
	Text       string                 `json:"text"`
	Collection Collection             `json:"collection"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MergeDocuments concatenates per-collection result sets and renumbers
// ranks 1..N across the merged sequence. No cross-collection score
// normalization happens here.
func MergeDocuments(sets ...[]RetrievedDocument) []RetrievedDocument {
	total := 0
	for _, set := range sets {
		total += len(set)
	}
	merged := make([]RetrievedDocument, 0, total)
	for _, set := range sets {
		merged = append(merged, set...)
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}
