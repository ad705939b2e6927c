package models

import "time"

// AcceptedBatch is the upload stage's output. Inputs keep their original
// index; Failures are validation results at their original index.
type AcceptedBatch struct {
	Total    int
	Inputs   []ImageInput
	Failures []AnalysisResult
}

type BatchResult struct {
	Results     []AnalysisResult `json:"results"`
	Total       int              `json:"total"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	ProcessedAt time.Time        `json:"processed_at"`
}

// NewBatchResult tallies results that are already index-aligned.
func NewBatchResult(results []AnalysisResult) *BatchResult {
	if results == nil {
		results = []AnalysisResult{}
	}

	batch := &BatchResult{
		Results:     results,
		Total:       len(results),
		ProcessedAt: time.Now(),
	}
	for _, r := range results {
		if r.Succeeded() {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	return batch
}
