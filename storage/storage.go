package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskboard-api/domain"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when a task does not exist or belongs to another
// user. The two cases are deliberately indistinguishable so that callers
// cannot probe for foreign task ids.
var ErrNotFound = errors.New("task not found or unauthorized")

const taskColumns = "id, title, description, state, color, position, created_at, updated_at"

// Store persists tasks in SQLite. All mutations fuse the ownership check into
// the statement itself (WHERE id = ? AND user_id = ?) instead of a separate
// read, so there is no window between authorization and mutation.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The pure-Go driver allows a single writer; one pooled connection also
	// serializes transactions within the process.
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ListTasks returns every task owned by userID, ordered by position with
// creation recency breaking ties (newest first, for legacy rows that never
// received a dense ordinal).
func (s *Store) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY position ASC, created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CreateTask inserts a task at the end of the owner's list. The next ordinal
// is computed and consumed inside one transaction so concurrent creates for
// the same owner cannot observe the same maximum.
func (s *Store) CreateTask(ctx context.Context, userID string, draft domain.Draft) (domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE user_id = ?",
		userID).Scan(&next); err != nil {
		return domain.Task{}, err
	}

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx,
		"INSERT INTO tasks (user_id, title, description, state, color, position, created_at, updated_at) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING "+taskColumns,
		userID, draft.Title, draft.Description, string(draft.State), string(draft.Color), next, now, now)
	task, err := scanTask(row)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask applies a sparse patch to the task. Only supplied fields appear
// in the SET clause; updated_at is always refreshed. A zero-row result maps
// to ErrNotFound whether the task is missing or owned by someone else.
func (s *Store) UpdateTask(ctx context.Context, userID string, taskID int64, patch domain.Patch) (domain.Task, error) {
	set := make([]string, 0, 5)
	args := make([]any, 0, 7)
	if patch.Title != nil {
		set = append(set, "title = ?")
		args = append(args, strings.TrimSpace(*patch.Title))
	}
	if patch.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.State != nil {
		set = append(set, "state = ?")
		args = append(args, string(*patch.State))
	}
	if patch.Color != nil {
		set = append(set, "color = ?")
		args = append(args, string(*patch.Color))
	}
	if len(set) == 0 {
		return domain.Task{}, domain.ErrNoFields
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), taskID, userID)

	row := s.db.QueryRowContext(ctx,
		"UPDATE tasks SET "+strings.Join(set, ", ")+" WHERE id = ? AND user_id = ? RETURNING "+taskColumns,
		args...)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask removes the task if it belongs to userID.
func (s *Store) DeleteTask(ctx context.Context, userID string, taskID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE id = ? AND user_id = ?", taskID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderTasks assigns position i+1 to ids[i] for every id owned by userID,
// all inside one transaction. Ids the caller does not own, or that no longer
// exist, are skipped rather than failing the batch; a task already at its
// target position keeps its updated_at. The owner's full refreshed list is
// returned so the caller can resync its view from one response.
func (s *Store) ReorderTasks(ctx context.Context, userID string, ids []int64) ([]domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE tasks SET position = ?, updated_at = ? WHERE id = ? AND user_id = ? AND position <> ?")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i+1, now, id, userID, i+1); err != nil {
			return nil, err
		}
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY position ASC, created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	tasks, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (domain.Task, error) {
	var t domain.Task
	err := r.Scan(&t.ID, &t.Title, &t.Description, &t.State, &t.Color, &t.Order, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
