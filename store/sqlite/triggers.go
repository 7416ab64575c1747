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

	"github.com/hearthlabs/hearth/trigger"
)

var triggerColumns = []string{
	"id", "owner", "description", "condition", "action",
	"status", "created_at", "fired_at", "expires_at",
}

// TriggerStore implements trigger.Store on SQLite. Status transitions are
// a single conditional UPDATE, so exactly one caller wins any race on the
// same trigger.
type TriggerStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewTriggerStore creates a TriggerStore over an open, migrated DB.
func NewTriggerStore(db *sql.DB, logger zerolog.Logger) *TriggerStore {
	return &TriggerStore{
		db:     db,
		logger: logger.With().Str("component", "trigger_store").Logger(),
	}
}

func (s *TriggerStore) Insert(ctx context.Context, t *trigger.Trigger) error {
	condJSON, err := json.Marshal(t.Condition)
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}

	var firedAt, expiresAt interface{}
	if t.FiredAt != nil {
		firedAt = t.FiredAt.UTC().Unix()
	}
	if t.ExpiresAt != nil {
		expiresAt = t.ExpiresAt.UTC().Unix()
	}

	query := builder().
		Insert("triggers").
		Columns(triggerColumns...).
		Values(t.ID, t.Owner, t.Description, string(condJSON), string(t.Action),
			string(t.Status), t.CreatedAt.UTC().Unix(), firedAt, expiresAt)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return trigger.NewStoreUnavailableError("insert trigger", err)
	}
	return nil
}

func (s *TriggerStore) Get(ctx context.Context, id string) (*trigger.Trigger, error) {
	query := builder().
		Select(triggerColumns...).
		From("triggers").
		Where(sq.Eq{"id": id})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}
	t, err := scanTrigger(s.db.QueryRowContext(ctx, queryStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, trigger.NewNotFoundError(id)
		}
		return nil, trigger.NewStoreUnavailableError("fetch trigger", err)
	}
	return t, nil
}

func (s *TriggerStore) List(ctx context.Context, filter trigger.Filter) ([]*trigger.Trigger, error) {
	query := builder().
		Select(triggerColumns...).
		From("triggers").
		OrderBy("created_at ASC", "id ASC")
	if filter.Owner != "" {
		query = query.Where(sq.Eq{"owner": filter.Owner})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"status": string(filter.Status)})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, trigger.NewStoreUnavailableError("list triggers", err)
	}
	defer rows.Close() //nolint:errcheck // Rows close error can be ignored

	var out []*trigger.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, trigger.NewStoreUnavailableError("scan trigger row", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, trigger.NewStoreUnavailableError("iterate trigger rows", err)
	}
	return out, nil
}

func (s *TriggerStore) Transition(ctx context.Context, id string, to trigger.Status, firedAt time.Time) (*trigger.Trigger, error) {
	query := builder().
		Update("triggers").
		Set("status", string(to)).
		Where(sq.Eq{"id": id, "status": string(trigger.StatusPending)})
	if to == trigger.StatusFired {
		query = query.Set("fired_at", firedAt.UTC().Unix())
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return nil, trigger.NewStoreUnavailableError("transition trigger", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, trigger.NewStoreUnavailableError("read rows affected", err)
	}

	if affected == 0 {
		// Either the trigger never existed or someone else already moved
		// it out of pending. Re-read to tell the two apart.
		t, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, trigger.NewStatusConflictError(id, t.Status)
	}

	s.logger.Debug().
		Str("method", "Transition").
		Str("trigger_id", id).
		Str("to", string(to)).
		Msg("status updated")
	return s.Get(ctx, id)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrigger(row scanner) (*trigger.Trigger, error) {
	var (
		t         trigger.Trigger
		condJSON  string
		actionStr string
		status    string
		createdAt int64
		firedAt   sql.NullInt64
		expiresAt sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Owner, &t.Description, &condJSON, &actionStr,
		&status, &createdAt, &firedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(condJSON), &t.Condition); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}
	t.Action = json.RawMessage(actionStr)
	t.Status = trigger.Status(status)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	if firedAt.Valid {
		at := time.Unix(firedAt.Int64, 0).UTC()
		t.FiredAt = &at
	}
	if expiresAt.Valid {
		at := time.Unix(expiresAt.Int64, 0).UTC()
		t.ExpiresAt = &at
	}
	return &t, nil
}
