package profiler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/memory"
	"github.com/hearthlabs/hearth/oracle"
)

// fakeStore is a minimal in-memory memory.Store for wiring a real bank.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]*memory.UserMemory
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*memory.UserMemory)}
}

func (s *fakeStore) Load(_ context.Context, userID string) (*memory.UserMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, memory.NewNotFoundError(userID)
	}
	cp := *doc
	cp.History = append([]memory.InteractionRecord(nil), doc.History...)
	return &cp, nil
}

func (s *fakeStore) Save(_ context.Context, doc *memory.UserMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	cp.History = append([]memory.InteractionRecord(nil), doc.History...)
	s.docs[doc.UserID] = &cp
	return nil
}

func (s *fakeStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for id := range s.docs {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// noEmbed satisfies memory.Embedder; the profiler never embeds.
type noEmbed struct{}

func (noEmbed) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1}, nil
}

// scriptedSummarizer replays canned replies in order and records every
// prompt it was given. failAt > 0 makes that call number fail.
type scriptedSummarizer struct {
	replies []string
	calls   []string
	failAt  int
}

func (s *scriptedSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	s.calls = append(s.calls, prompt)
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return "", oracle.NewSummarizeError("scripted", errors.New("model down"))
	}
	if len(s.replies) == 0 {
		return "a generic preference summary", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func newTestProfiler(t *testing.T, llm Summarizer) (*Profiler, *memory.Bank) {
	t.Helper()
	bank := memory.NewBank(newFakeStore(), noEmbed{}, zerolog.Nop())
	return New(bank, llm, zerolog.Nop()), bank
}

func seed(t *testing.T, bank *memory.Bank, userID, instruction string, day int, hour int) {
	t.Helper()
	at := time.Date(2025, 7, day, hour, 0, 0, 0, time.UTC)
	if _, err := bank.Append(context.Background(), userID, instruction, at); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

const aggregateReply = `{
  "sports": ["tennis"],
  "favorite_teams": [],
  "shows_genre": [],
  "movie_genre": ["comedy", "science fiction"],
  "favorite_shows": [],
  "favorite_movies": [],
  "genre_to_avoid": ["horror"]
}`

func TestProfilerSummarizeDay(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedSummarizer{replies: []string{"  amal likes science fiction movies.  "}}
	p, bank := newTestProfiler(t, llm)

	seed(t, bank, "amal", "Recommend a science fiction movie", 14, 9)
	seed(t, bank, "amal", "Add Dune to my watchlist", 14, 20)
	seed(t, bank, "amal", "Play a comedy", 15, 9)

	s, err := p.SummarizeDay(ctx, "amal", "2025-07-14")
	if err != nil {
		t.Fatalf("SummarizeDay: %v", err)
	}
	if s.Date != "2025-07-14" {
		t.Fatalf("date = %q", s.Date)
	}
	if s.Summary != "amal likes science fiction movies." {
		t.Fatalf("summary not trimmed: %q", s.Summary)
	}

	if len(llm.calls) != 1 {
		t.Fatalf("summarizer called %d times, want 1", len(llm.calls))
	}
	prompt := llm.calls[0]
	if !strings.Contains(prompt, "Recommend a science fiction movie") ||
		!strings.Contains(prompt, "Add Dune to my watchlist") {
		t.Fatalf("prompt missing that day's instructions:\n%s", prompt)
	}
	if strings.Contains(prompt, "Play a comedy") {
		t.Fatalf("prompt leaked another day's instruction:\n%s", prompt)
	}
	if !strings.Contains(prompt, "amal's preferences are:") {
		t.Fatalf("prompt missing the completion cue:\n%s", prompt)
	}
}

func TestProfilerSummarizeDayNoData(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedSummarizer{}
	p, bank := newTestProfiler(t, llm)

	seed(t, bank, "amal", "Play a comedy", 15, 9)

	if _, err := p.SummarizeDay(ctx, "amal", "2025-07-14"); !errors.Is(err, ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
	if _, err := p.SummarizeDay(ctx, "nobody", "2025-07-14"); !errors.Is(err, ErrNoData) {
		t.Fatalf("error for unknown user = %v, want ErrNoData", err)
	}
	if len(llm.calls) != 0 {
		t.Fatalf("summarizer called %d times for empty days, want 0", len(llm.calls))
	}
}

func TestProfilerAggregate(t *testing.T) {
	ctx := context.Background()
	reply := `Here is the profile you asked for:
` + "```json\n" + `{
  "sports": ["tennis", "  "],
  "favorite_teams": "Arsenal",
  "movie_genre": ["comedy"],
  "mood": ["cheerful"]
}` + "\n```"
	llm := &scriptedSummarizer{replies: []string{reply}}
	p, _ := newTestProfiler(t, llm)

	summaries := []DailySummary{
		{Date: "2025-07-14", Summary: "likes science fiction"},
		{Date: "2025-07-15", Summary: "prefers comedy now"},
	}
	profile, err := p.Aggregate(ctx, "amal", summaries)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	prompt := llm.calls[0]
	first := strings.Index(prompt, "At 2025-07-14, the user preferences are likes science fiction")
	second := strings.Index(prompt, "At 2025-07-15, the user preferences are prefers comedy now")
	if first < 0 || second < 0 {
		t.Fatalf("prompt missing dated summary lines:\n%s", prompt)
	}
	if first > second {
		t.Fatal("summaries out of chronological order in the prompt")
	}

	// Contract enforcement: fences tolerated, blanks dropped, a lone
	// string promoted, unknown keys discarded, missing themes empty.
	if got := profile["sports"]; len(got) != 1 || got[0] != "tennis" {
		t.Fatalf("sports = %v", got)
	}
	if got := profile["favorite_teams"]; len(got) != 1 || got[0] != "Arsenal" {
		t.Fatalf("favorite_teams = %v", got)
	}
	if _, ok := profile["mood"]; ok {
		t.Fatal("unknown theme survived")
	}
	if got, ok := profile["genre_to_avoid"]; !ok || len(got) != 0 {
		t.Fatalf("genre_to_avoid = %v, want present and empty", got)
	}
}

func TestProfilerAggregateUnparseable(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedSummarizer{replies: []string{"I cannot produce a profile for this user."}}
	p, _ := newTestProfiler(t, llm)

	_, err := p.Aggregate(ctx, "amal", []DailySummary{{Date: "2025-07-14", Summary: "x"}})
	if !oracle.IsOracleError(err) {
		t.Fatalf("error = %v, want oracle error", err)
	}
}

func TestProfilerRefreshProfile(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedSummarizer{replies: []string{
		"amal asked for science fiction twice",
		"amal asked for a comedy",
		aggregateReply,
	}}
	p, bank := newTestProfiler(t, llm)

	seed(t, bank, "amal", "Recommend a science fiction movie", 14, 9)
	seed(t, bank, "amal", "Another science fiction movie please", 14, 21)
	seed(t, bank, "amal", "Actually, play a comedy tonight", 15, 19)

	profile, err := p.RefreshProfile(ctx, "amal")
	if err != nil {
		t.Fatalf("RefreshProfile: %v", err)
	}

	// One summarize call per active day plus the aggregation call.
	if len(llm.calls) != 3 {
		t.Fatalf("summarizer called %d times, want 3", len(llm.calls))
	}
	if !strings.Contains(llm.calls[0], "Recommend a science fiction movie") {
		t.Fatalf("first call should cover 2025-07-14:\n%s", llm.calls[0])
	}
	if !strings.Contains(llm.calls[1], "Actually, play a comedy tonight") {
		t.Fatalf("second call should cover 2025-07-15:\n%s", llm.calls[1])
	}
	if !strings.Contains(llm.calls[2], "At 2025-07-14, the user preferences are amal asked for science fiction twice") {
		t.Fatalf("aggregate call missing the first day's line:\n%s", llm.calls[2])
	}

	if got := profile["movie_genre"]; len(got) != 2 || got[0] != "comedy" {
		t.Fatalf("movie_genre = %v", got)
	}

	stored, err := bank.Profile(ctx, "amal")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got := stored["genre_to_avoid"]; len(got) != 1 || got[0] != "horror" {
		t.Fatalf("stored profile = %v", stored)
	}
}

func TestProfilerRefreshProfileNoData(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProfiler(t, &scriptedSummarizer{})

	if _, err := p.RefreshProfile(ctx, "nobody"); !errors.Is(err, ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
}

func TestProfilerRefreshAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	// First user needs 2 calls (one day + aggregate); fail the first call
	// so user one never profiles, then let user two's 2 calls succeed.
	llm := &scriptedSummarizer{
		failAt: 1,
		replies: []string{
			"dmitri follows tennis",
			aggregateReply,
		},
	}
	p, bank := newTestProfiler(t, llm)

	seed(t, bank, "amal", "Recommend a science fiction movie", 14, 9)
	seed(t, bank, "dmitri", "Show me tennis highlights", 14, 9)

	if err := p.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	amal, err := bank.Profile(ctx, "amal")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if len(amal) != 0 {
		t.Fatalf("failed user should have no profile, got %v", amal)
	}

	dmitri, err := bank.Profile(ctx, "dmitri")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got := dmitri["sports"]; len(got) != 1 || got[0] != "tennis" {
		t.Fatalf("dmitri's profile = %v", dmitri)
	}
}
