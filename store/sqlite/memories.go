package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/memory"
)

// MemoryStore implements memory.Store on SQLite, one row per user with the
// history and profile as JSON columns.
type MemoryStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewMemoryStore creates a MemoryStore over an open, migrated DB.
func NewMemoryStore(db *sql.DB, logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		db:     db,
		logger: logger.With().Str("component", "memory_store").Logger(),
	}
}

func (s *MemoryStore) Load(ctx context.Context, userID string) (*memory.UserMemory, error) {
	query := builder().
		Select("history", "profile", "updated_at").
		From("user_memories").
		Where(sq.Eq{"user_id": userID})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var (
		historyJSON string
		profileJSON sql.NullString
		updatedAt   int64
	)
	err = s.db.QueryRowContext(ctx, queryStr, args...).Scan(&historyJSON, &profileJSON, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, memory.NewNotFoundError(userID)
		}
		return nil, memory.NewStoreUnavailableError("fetch user memory", err)
	}

	doc := &memory.UserMemory{
		UserID:    userID,
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(historyJSON), &doc.History); err != nil {
		return nil, memory.NewStoreUnavailableError("decode history", err)
	}
	if profileJSON.Valid && profileJSON.String != "" {
		if err := json.Unmarshal([]byte(profileJSON.String), &doc.Profile); err != nil {
			return nil, memory.NewStoreUnavailableError("decode profile", err)
		}
	}
	return doc, nil
}

func (s *MemoryStore) Save(ctx context.Context, doc *memory.UserMemory) error {
	history := doc.History
	if history == nil {
		history = []memory.InteractionRecord{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	var profileVal interface{}
	if doc.Profile != nil {
		profileJSON, err := json.Marshal(doc.Profile)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		profileVal = string(profileJSON)
	}

	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := builder().
		Insert("user_memories").
		Columns("user_id", "history", "profile", "updated_at").
		Values(doc.UserID, string(historyJSON), profileVal, updatedAt.UTC().Unix()).
		Suffix(`ON CONFLICT(user_id) DO UPDATE SET
			history = excluded.history,
			profile = excluded.profile,
			updated_at = excluded.updated_at`)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return memory.NewStoreUnavailableError("save user memory", err)
	}

	s.logger.Debug().
		Str("method", "Save").
		Str("user_id", doc.UserID).
		Int("records", len(doc.History)).
		Msg("document saved")
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]string, error) {
	query := builder().
		Select("user_id").
		From("user_memories").
		OrderBy("user_id ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, memory.NewStoreUnavailableError("list users", err)
	}
	defer rows.Close() //nolint:errcheck // Rows close error can be ignored

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, memory.NewStoreUnavailableError("scan user row", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.NewStoreUnavailableError("iterate user rows", err)
	}
	return users, nil
}
