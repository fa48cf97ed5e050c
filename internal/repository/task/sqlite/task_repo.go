// Package sqlite stores tasks in a single SQLite file using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"todoTree/internal/date"
	"todoTree/internal/logger"
	"todoTree/internal/migrations"
	"todoTree/internal/models/task"
	repo "todoTree/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	slowQuery  = 50 * time.Millisecond
	timeLayout = time.RFC3339Nano
	columns    = `id, user_id, parent_id, title, description, due_date, weight, completed, created_at, updated_at, version`
)

type Storage struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database file at path.
func New(ctx context.Context, path string) (*Storage, error) {
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("sqlite storage needs a file path, got %q", path)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		logger.Error("Repository: failed to open SQLite", err)
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps "database is locked" out of the picture
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("Repository: SQLite ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: opened SQLite database", zap.String("path", path))
	return &Storage{db: db, path: path}, nil
}

func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		logger.Warn("Repository: closing SQLite", zap.Error(err))
		return
	}
	logger.Info("Repository: closed SQLite database")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Migrate(ctx context.Context) error {
	db, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	return migrations.Up(ctx, db, migrations.SQLite)
}

func (s *Storage) Down(ctx context.Context) error {
	db, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	return migrations.Down(ctx, db, migrations.SQLite)
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()
	now := time.Now().UTC()

	query := `INSERT INTO tasks
				(id, user_id, parent_id, title, description, due_date, weight, completed, created_at, version)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`

	_, err := s.db.ExecContext(ctx, query,
		taskToCreate.ID.String(),
		taskToCreate.UserID.String(),
		nullUUID(taskToCreate.ParentID),
		taskToCreate.Title,
		taskToCreate.Description,
		nullDate(taskToCreate.DueDate),
		taskToCreate.Weight,
		taskToCreate.Completed,
		now.Format(timeLayout),
	)
	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("insert task: %w", err)
	}

	taskToCreate.CreatedAt = now
	taskToCreate.Version = 1
	observe("Create", start)
	return nil
}

// Update writes the editable fields when taskToUpdate.Version still matches.
// parent_id is left as stored.
func (s *Storage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	return s.update(ctx, taskToUpdate, false)
}

// UpdateAndMove is Update that also writes taskToUpdate.ParentID in the same
// statement.
func (s *Storage) UpdateAndMove(ctx context.Context, taskToUpdate *task.Task) error {
	return s.update(ctx, taskToUpdate, true)
}

func (s *Storage) update(ctx context.Context, taskToUpdate *task.Task, move bool) error {
	start := time.Now()
	now := time.Now().UTC()

	args := []any{
		taskToUpdate.Title,
		taskToUpdate.Description,
		nullDate(taskToUpdate.DueDate),
		taskToUpdate.Weight,
		taskToUpdate.Completed,
		now.Format(timeLayout),
	}
	setParent := ""
	if move {
		setParent = ", parent_id = ?"
		args = append(args, nullUUID(taskToUpdate.ParentID))
	}
	args = append(args, taskToUpdate.ID.String(), taskToUpdate.UserID.String(), taskToUpdate.Version)

	query := `UPDATE tasks
			SET title = ?,
				description = ?,
				due_date = ?,
				weight = ?,
				completed = ?,
				version = version + 1,
				updated_at = ?` + setParent + `
			WHERE id = ? AND user_id = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to update task", err, zap.Bool("move", move))
		return fmt.Errorf("update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	stored, err := s.GetByID(ctx, taskToUpdate.UserID, taskToUpdate.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		logger.Warn("Repository: version conflict on update",
			zap.String("task_id", taskToUpdate.ID.String()),
			zap.Int("expected_version", taskToUpdate.Version))
		return repo.ErrVersionConflict
	}

	taskToUpdate.ParentID = stored.ParentID
	taskToUpdate.CreatedAt = stored.CreatedAt
	taskToUpdate.UpdatedAt = stored.UpdatedAt
	taskToUpdate.Version = stored.Version
	observe("Update", start, zap.Bool("move", move))
	return nil
}

func (s *Storage) UpdateParent(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) error {
	start := time.Now()

	query := `UPDATE tasks
			SET parent_id = ?,
				version = version + 1,
				updated_at = ?
			WHERE id = ? AND user_id = ?`

	res, err := s.db.ExecContext(ctx, query,
		nullUUID(parentID), time.Now().UTC().Format(timeLayout), id.String(), userID.String())
	if err != nil {
		logger.Error("Repository: failed to move task", err)
		return fmt.Errorf("update parent: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return repo.ErrNotFound
	}

	observe("UpdateParent", start)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + ` FROM tasks WHERE id = ? AND user_id = ?`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id.String(), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err)
		return nil, fmt.Errorf("get task: %w", err)
	}

	observe("GetByID", start)
	return t, nil
}

func (s *Storage) ListByUser(ctx context.Context, userID uuid.UUID) ([]task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + ` FROM tasks WHERE user_id = ? ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		logger.Error("Repository: failed to list tasks", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: failed to scan task", err)
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	observe("ListByUser", start, zap.Int("rows", len(tasks)))
	return tasks, nil
}

// DeleteMany removes the ids inside one transaction; nothing is deleted if
// any id is missing.
func (s *Storage) DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id.String(), userID.String())
		if err != nil {
			logger.Error("Repository: failed to delete task", err, zap.String("task_id", id.String()))
			return fmt.Errorf("delete task: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return repo.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Repository: failed to commit delete", err)
		return fmt.Errorf("commit: %w", err)
	}

	observe("DeleteMany", start, zap.Int("rows", len(ids)))
	return nil
}

func (s *Storage) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM tasks GROUP BY user_id ORDER BY MIN(rowid)`)
	if err != nil {
		logger.Error("Repository: failed to list owners", err)
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	owners := []uuid.UUID{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t             task.Task
		id, userID    string
		parentID, due sql.NullString
		createdAt     string
		updatedAt     sql.NullString
	)
	err := row.Scan(&id, &userID, &parentID, &t.Title, &t.Description, &due,
		&t.Weight, &t.Completed, &createdAt, &updatedAt, &t.Version)
	if err != nil {
		return nil, err
	}

	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if t.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	if parentID.Valid {
		p, err := uuid.Parse(parentID.String)
		if err != nil {
			return nil, fmt.Errorf("parse parent_id: %w", err)
		}
		t.ParentID = &p
	}
	if due.Valid {
		d, err := date.Parse(due.String)
		if err != nil {
			return nil, fmt.Errorf("parse due_date: %w", err)
		}
		t.DueDate = &d
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if updatedAt.Valid {
		u, err := time.Parse(timeLayout, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		t.UpdatedAt = &u
	}
	return &t, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullDate(d *date.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func observe(op string, start time.Time, fields ...zap.Field) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: slow query",
			append([]zap.Field{zap.String("op", op), zap.Duration("ms", elapsed)}, fields...)...)
	}
}
