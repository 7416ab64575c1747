// Package profiler derives per-user preference profiles from interaction
// history: one summary per active day, then an aggregation pass where the
// most recent mention of a preference wins.
package profiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/hearthlabs/hearth/memory"
	"github.com/hearthlabs/hearth/oracle"
)

// ErrNoData means the requested day, or the whole user, has no
// interactions to summarize.
var ErrNoData = errors.New("no interactions to summarize")

// Themes are the preference dimensions every profile carries. The
// aggregation prompt pins the model to exactly these keys.
var Themes = []string{
	"sports",
	"favorite_teams",
	"shows_genre",
	"movie_genre",
	"favorite_shows",
	"favorite_movies",
	"genre_to_avoid",
}

// Summarizer produces free-form text for a prompt. The oracle backends
// implement it; tests script it.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// DailySummary is the model's preference summary for one active day.
type DailySummary struct {
	Date    string `json:"date"`
	Summary string `json:"summary"`
}

// Profiler runs the two-stage summarize-then-aggregate pipeline over the
// memory bank.
type Profiler struct {
	bank   *memory.Bank
	llm    Summarizer
	logger zerolog.Logger
}

// New creates a Profiler over the given bank and summarizer.
func New(bank *memory.Bank, llm Summarizer, logger zerolog.Logger) *Profiler {
	return &Profiler{
		bank:   bank,
		llm:    llm,
		logger: logger.With().Str("component", "profiler").Logger(),
	}
}

// SummarizeDay summarizes one user's preferences from a single day's
// interactions, oldest first. Returns ErrNoData for a day with none.
func (p *Profiler) SummarizeDay(ctx context.Context, userID, date string) (DailySummary, error) {
	p.logger.Debug().
		Str("method", "SummarizeDay").
		Str("user_id", userID).
		Str("date", date).
		Msg("called")

	history, err := p.bank.History(ctx, userID)
	if err != nil {
		if memory.IsNotFoundError(err) {
			return DailySummary{}, fmt.Errorf("%w: user %q", ErrNoData, userID)
		}
		return DailySummary{}, err
	}

	var lines []string
	for _, rec := range history {
		if rec.Date == date {
			lines = append(lines, rec.Instruction)
		}
	}
	if len(lines) == 0 {
		return DailySummary{}, fmt.Errorf("%w: user %q on %s", ErrNoData, userID, date)
	}

	prompt := fmt.Sprintf(`Based on the following interactions, please summarize %[1]s's preferences. The history content:
%[2]s
%[1]s's preferences are:`, userID, strings.Join(lines, "\n"))

	out, err := p.llm.Summarize(ctx, prompt)
	if err != nil {
		return DailySummary{}, err
	}
	summary := strings.TrimSpace(out)
	if summary == "" {
		return DailySummary{}, oracle.NewParseError(fmt.Sprintf("empty summary for %s on %s", userID, date), nil)
	}
	return DailySummary{Date: date, Summary: summary}, nil
}

// Aggregate folds daily summaries, oldest first, into one themed profile.
// The ordering carries the recency rule: a later day's summary overrides an
// earlier one for the same theme.
func (p *Profiler) Aggregate(ctx context.Context, userID string, summaries []DailySummary) (memory.Profile, error) {
	p.logger.Debug().
		Str("method", "Aggregate").
		Str("user_id", userID).
		Int("days", len(summaries)).
		Msg("called")

	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: user %q", ErrNoData, userID)
	}

	var lines []string
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("At %s, the user preferences are %s", s.Date, s.Summary))
	}

	prompt := fmt.Sprintf(`The following is a dated record of the user's preferences, oldest first. When entries disagree, the most recent one wins.

%s

Summarize the user's current preferences as a JSON object with exactly these keys, each mapping to a list of strings:
{"sports": [], "favorite_teams": [], "shows_genre": [], "movie_genre": [], "favorite_shows": [], "favorite_movies": [], "genre_to_avoid": []}

Respond with the JSON object only. Do not include explanations or surrounding text.`, strings.Join(lines, "\n"))

	out, err := p.llm.Summarize(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseProfile(out)
}

// RefreshProfile recomputes and stores a user's profile from scratch:
// every active day summarized in chronological order, then aggregated,
// then written over whatever profile was there before.
func (p *Profiler) RefreshProfile(ctx context.Context, userID string) (memory.Profile, error) {
	p.logger.Debug().
		Str("method", "RefreshProfile").
		Str("user_id", userID).
		Msg("called")

	history, err := p.bank.History(ctx, userID)
	if err != nil {
		if memory.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: user %q", ErrNoData, userID)
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var days []string
	for _, rec := range history {
		if !seen[rec.Date] {
			seen[rec.Date] = true
			days = append(days, rec.Date)
		}
	}
	sort.Strings(days)
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: user %q", ErrNoData, userID)
	}

	var summaries []DailySummary
	for _, date := range days {
		s, err := p.SummarizeDay(ctx, userID, date)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				continue
			}
			return nil, err
		}
		summaries = append(summaries, s)
	}

	profile, err := p.Aggregate(ctx, userID, summaries)
	if err != nil {
		return nil, err
	}
	if err := p.bank.SetProfile(ctx, userID, profile); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("method", "RefreshProfile").
		Str("user_id", userID).
		Int("days", len(summaries)).
		Msg("profile refreshed")
	return profile, nil
}

// RefreshAll refreshes every user in the bank. Per-user failures are
// logged and skipped so one bad user cannot stall the sweep.
func (p *Profiler) RefreshAll(ctx context.Context) error {
	users, err := p.bank.Users(ctx)
	if err != nil {
		return err
	}
	for _, userID := range users {
		if _, err := p.RefreshProfile(ctx, userID); err != nil {
			if errors.Is(err, ErrNoData) {
				p.logger.Debug().
					Str("method", "RefreshAll").
					Str("user_id", userID).
					Msg("no interactions, skipping")
				continue
			}
			p.logger.Error().
				Str("method", "RefreshAll").
				Str("user_id", userID).
				Err(err).
				Msg("profile refresh failed")
		}
	}
	return nil
}

// parseProfile enforces the aggregation contract on model output: a JSON
// object keyed by the pinned themes. Lists are cleaned, lone strings are
// promoted to single-element lists, unknown keys are dropped.
func parseProfile(out string) (memory.Profile, error) {
	raw := extractJSON(out)
	if raw == "" {
		return nil, oracle.NewParseError("no JSON object in profile response", nil)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, oracle.NewParseError("profile response is not valid JSON", err)
	}

	profile := make(memory.Profile, len(Themes))
	for _, theme := range Themes {
		switch v := decoded[theme].(type) {
		case nil:
			profile[theme] = []string{}
		case string:
			profile[theme] = cleanValues([]interface{}{v})
		case []interface{}:
			profile[theme] = cleanValues(v)
		default:
			return nil, oracle.NewParseError(fmt.Sprintf("theme %q has unexpected type %T", theme, v), nil)
		}
	}
	return profile, nil
}

func cleanValues(in []interface{}) []string {
	return lo.FilterMap(in, func(v interface{}, _ int) (string, bool) {
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	})
}

// extractJSON returns the outermost {...} span of s, tolerating prose or
// code fences around the object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
