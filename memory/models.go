// Package memory implements the per-user interaction log and its similarity
// index. History is the source of truth; the index is an in-process cache
// rebuilt in batch from history and replaced atomically.
package memory

import (
	"time"
)

// InteractionRecord is one logged user instruction. Records are immutable
// once appended; RequestIndex is monotonic per user and orders the history
// together with the timestamp.
type InteractionRecord struct {
	Instruction  string    `json:"instruction"`
	RequestIndex int       `json:"request_idx"`
	Date         string    `json:"date"` // YYYY-MM-DD day of At
	At           time.Time `json:"at"`
}

// Profile maps a preference theme (e.g. "movie_genre") to the values the
// profiler derived for it. Never user-authored; replaced wholesale by each
// profiling run.
type Profile map[string][]string

// UserMemory is the per-user persistence document: the full history in
// append order plus the derived profile. It round-trips losslessly through
// the store and through JSON export/import.
type UserMemory struct {
	UserID    string              `json:"user_id"`
	History   []InteractionRecord `json:"history"`
	Profile   Profile             `json:"profile,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NextRequestIndex returns the index the next appended record receives.
func (m *UserMemory) NextRequestIndex() int {
	if len(m.History) == 0 {
		return 0
	}
	return m.History[len(m.History)-1].RequestIndex + 1
}

// SearchResult pairs a history record with its similarity score against a
// query. Text is the indexed document form of the record.
type SearchResult struct {
	Record InteractionRecord `json:"record"`
	Text   string            `json:"text"`
	Score  float64           `json:"score"`
}
