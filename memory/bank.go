package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTopK is the result count used when a search does not specify one.
const DefaultTopK = 5

// Bank coordinates history appends, index builds and searches for all
// users. Appends are serialized per user so request indexes stay monotonic
// under concurrency; reads never block appends for other users.
type Bank struct {
	store    Store
	embedder Embedder
	logger   zerolog.Logger

	userMu sync.Mutex
	locks  map[string]*sync.Mutex

	indexMu sync.RWMutex
	indexes map[string]*userIndex
}

// NewBank creates a Bank over the given store and embedder.
func NewBank(store Store, embedder Embedder, logger zerolog.Logger) *Bank {
	return &Bank{
		store:    store,
		embedder: embedder,
		logger:   logger.With().Str("component", "memory_bank").Logger(),
		locks:    make(map[string]*sync.Mutex),
		indexes:  make(map[string]*userIndex),
	}
}

// lockFor returns the append mutex for a user, creating it on first use.
func (b *Bank) lockFor(userID string) *sync.Mutex {
	b.userMu.Lock()
	defer b.userMu.Unlock()
	mu, ok := b.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		b.locks[userID] = mu
	}
	return mu
}

// Append logs one instruction for a user and returns the stored record.
// The record's request index is one past the user's current latest; the
// index does not pick the record up until the next build.
func (b *Bank) Append(ctx context.Context, userID, instruction string, at time.Time) (InteractionRecord, error) {
	b.logger.Debug().
		Str("method", "Append").
		Str("user_id", userID).
		Str("instruction", truncate(instruction, 40)).
		Msg("called")

	if strings.TrimSpace(userID) == "" {
		return InteractionRecord{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(instruction) == "" {
		return InteractionRecord{}, fmt.Errorf("instruction is empty")
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	mu := b.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	doc, err := b.store.Load(ctx, userID)
	if err != nil {
		if !IsNotFoundError(err) {
			return InteractionRecord{}, err
		}
		doc = &UserMemory{UserID: userID}
	}

	rec := InteractionRecord{
		Instruction:  instruction,
		RequestIndex: doc.NextRequestIndex(),
		Date:         at.Format("2006-01-02"),
		At:           at,
	}
	doc.History = append(doc.History, rec)
	doc.UpdatedAt = time.Now().UTC()

	if err := b.store.Save(ctx, doc); err != nil {
		return InteractionRecord{}, err
	}

	b.logger.Info().
		Str("method", "Append").
		Str("user_id", userID).
		Int("request_idx", rec.RequestIndex).
		Str("date", rec.Date).
		Msg("interaction recorded")
	return rec, nil
}

// BuildIndex embeds the user's full history and swaps the new index in
// atomically. A user with no history gets an empty index. On embedding
// failure the previous index, if any, stays in service.
func (b *Bank) BuildIndex(ctx context.Context, userID string) (int, error) {
	b.logger.Debug().
		Str("method", "BuildIndex").
		Str("user_id", userID).
		Msg("called")

	doc, err := b.store.Load(ctx, userID)
	if err != nil {
		if !IsNotFoundError(err) {
			return 0, err
		}
		doc = &UserMemory{UserID: userID}
	}

	ix := &userIndex{
		builtAt: time.Now().UTC(),
		entries: make([]indexEntry, 0, len(doc.History)),
	}
	for _, rec := range doc.History {
		text := FormatDocument(rec)
		vec, err := b.embedder.Embed(ctx, text)
		if err != nil {
			return 0, NewEmbedError(userID, err)
		}
		ix.entries = append(ix.entries, indexEntry{record: rec, text: text, vector: vec})
	}

	b.indexMu.Lock()
	b.indexes[userID] = ix
	b.indexMu.Unlock()

	b.logger.Info().
		Str("method", "BuildIndex").
		Str("user_id", userID).
		Int("documents", len(ix.entries)).
		Msg("index built")
	return len(ix.entries), nil
}

// BuildAllIndexes rebuilds the index for every known user. Returns the
// per-user document counts; stops at the first failure.
func (b *Bank) BuildAllIndexes(ctx context.Context) (map[string]int, error) {
	users, err := b.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(users))
	for _, userID := range users {
		n, err := b.BuildIndex(ctx, userID)
		if err != nil {
			return counts, err
		}
		counts[userID] = n
	}
	return counts, nil
}

// Search returns the k most similar history records for a user's query,
// scored against the index as of its last build. Records appended since
// then are not visible. Fails if the user's index was never built.
func (b *Bank) Search(ctx context.Context, userID, query string, k int) ([]SearchResult, error) {
	b.logger.Debug().
		Str("method", "Search").
		Str("user_id", userID).
		Str("query", truncate(query, 40)).
		Int("top_k", k).
		Msg("called")

	if k <= 0 {
		k = DefaultTopK
	}

	b.indexMu.RLock()
	ix, ok := b.indexes[userID]
	b.indexMu.RUnlock()
	if !ok {
		return nil, NewIndexNotBuiltError(userID)
	}

	qvec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewEmbedError(userID, err)
	}
	return ix.search(qvec, k), nil
}

// Contains reports whether any of the user's instructions contains the
// given substring. Scans the stored history directly, so it sees appends
// the index has not picked up yet. Unknown users report false.
func (b *Bank) Contains(ctx context.Context, userID, substr string) (bool, error) {
	doc, err := b.store.Load(ctx, userID)
	if err != nil {
		if IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	for _, rec := range doc.History {
		if strings.Contains(rec.Instruction, substr) {
			return true, nil
		}
	}
	return false, nil
}

// History returns the user's full history in append order.
func (b *Bank) History(ctx context.Context, userID string) ([]InteractionRecord, error) {
	doc, err := b.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.History, nil
}

// Profile returns the user's derived profile. Unknown users and users who
// have never been profiled report an empty profile.
func (b *Bank) Profile(ctx context.Context, userID string) (Profile, error) {
	doc, err := b.store.Load(ctx, userID)
	if err != nil {
		if IsNotFoundError(err) {
			return Profile{}, nil
		}
		return nil, err
	}
	if doc.Profile == nil {
		return Profile{}, nil
	}
	return doc.Profile, nil
}

// SetProfile replaces the user's profile wholesale. Creates the document
// if the user has no history yet.
func (b *Bank) SetProfile(ctx context.Context, userID string, p Profile) error {
	mu := b.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	doc, err := b.store.Load(ctx, userID)
	if err != nil {
		if !IsNotFoundError(err) {
			return err
		}
		doc = &UserMemory{UserID: userID}
	}
	doc.Profile = p
	doc.UpdatedAt = time.Now().UTC()
	if err := b.store.Save(ctx, doc); err != nil {
		return err
	}

	b.logger.Info().
		Str("method", "SetProfile").
		Str("user_id", userID).
		Int("themes", len(p)).
		Msg("profile replaced")
	return nil
}

// Users returns all user IDs with a memory document.
func (b *Bank) Users(ctx context.Context) ([]string, error) {
	return b.store.ListUsers(ctx)
}

// bankExport is the wire shape of a full-bank snapshot.
type bankExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Users      []*UserMemory `json:"users"`
}

// ExportJSON serializes every user document into one snapshot blob.
func (b *Bank) ExportJSON(ctx context.Context) ([]byte, error) {
	users, err := b.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(users)

	out := bankExport{ExportedAt: time.Now().UTC()}
	for _, userID := range users {
		doc, err := b.store.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		out.Users = append(out.Users, doc)
	}
	return json.MarshalIndent(out, "", "  ")
}

// ImportJSON restores user documents from a snapshot blob, replacing any
// existing document for the same user. Indexes are not rebuilt.
func (b *Bank) ImportJSON(ctx context.Context, data []byte) (int, error) {
	var in bankExport
	if err := json.Unmarshal(data, &in); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}
	for _, doc := range in.Users {
		if doc == nil || doc.UserID == "" {
			return 0, fmt.Errorf("snapshot contains a document without a user id")
		}
		mu := b.lockFor(doc.UserID)
		mu.Lock()
		err := b.store.Save(ctx, doc)
		mu.Unlock()
		if err != nil {
			return 0, err
		}
	}

	b.logger.Info().
		Str("method", "ImportJSON").
		Int("users", len(in.Users)).
		Msg("snapshot imported")
	return len(in.Users), nil
}

// truncate shortens a string for log safety.
func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n]) + "..."
	}
	return s
}
