package memory

import (
	"fmt"
	"sort"
	"time"
)

// FormatDocument renders a record into the text form the index embeds.
// Anchoring the date in the document lets time-qualified queries rank
// the right day higher.
func FormatDocument(rec InteractionRecord) string {
	return fmt.Sprintf("Instruction on %s: %s", rec.Date, rec.Instruction)
}

type indexEntry struct {
	record InteractionRecord
	text   string
	vector []float32
}

// userIndex is an immutable snapshot of one user's embedded history.
// Built in batch and swapped in whole, never mutated in place.
type userIndex struct {
	builtAt time.Time
	entries []indexEntry
}

// search scores every entry against the query vector and returns the top k
// results ordered by score descending. Ties go to the more recent record.
func (ix *userIndex) search(query []float32, k int) []SearchResult {
	results := make([]SearchResult, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, SearchResult{
			Record: e.record,
			Text:   e.text,
			Score:  CosineSimilarity(query, e.vector),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.RequestIndex > results[j].Record.RequestIndex
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}
