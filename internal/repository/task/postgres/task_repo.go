package postgres

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

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	slowQuery = 100 * time.Millisecond
	columns   = `id, user_id, parent_id, title, description, due_date, weight, completed, created_at, updated_at, version`
)

// Options tune the connection pool. Zero values keep the pgxpool defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	// ConnectRetries is how many times the first ping is retried with
	// exponential backoff before New gives up.
	ConnectRetries uint64
}

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse connection string", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	ping := func() error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("Repository: ping failed, retrying", zap.Error(err))
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.ConnectRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		pool.Close()
		logger.Error("Repository: PostgreSQL is unreachable", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: closed all PostgreSQL connections")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	logger.Debug("Repository: connection is stable")
	return nil
}

// Migrate applies the embedded schema over a dedicated connection.
func (s *Storage) Migrate(ctx context.Context) error {
	db, err := sql.Open("pgx", s.connString)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	return migrations.Up(ctx, db, migrations.Postgres)
}

// Down rolls the schema back.
func (s *Storage) Down(ctx context.Context) error {
	db, err := sql.Open("pgx", s.connString)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	return migrations.Down(ctx, db, migrations.Postgres)
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks
				(id, user_id, parent_id, title, description, due_date, weight, completed, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING created_at, version`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.ID,
		taskToCreate.UserID,
		taskToCreate.ParentID,
		taskToCreate.Title,
		taskToCreate.Description,
		toTime(taskToCreate.DueDate),
		taskToCreate.Weight,
		taskToCreate.Completed,
		time.Now(),
	).Scan(&taskToCreate.CreatedAt, &taskToCreate.Version)

	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("insert task: %w", err)
	}

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

	args := []any{
		taskToUpdate.Title,
		taskToUpdate.Description,
		toTime(taskToUpdate.DueDate),
		taskToUpdate.Weight,
		taskToUpdate.Completed,
		taskToUpdate.ID,
		taskToUpdate.UserID,
		taskToUpdate.Version,
	}
	setParent := ""
	if move {
		setParent = ", parent_id = $9"
		args = append(args, taskToUpdate.ParentID)
	}

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				due_date = $3,
				weight = $4,
				completed = $5,
				version = version + 1,
				updated_at = NOW()` + setParent + `
			WHERE id = $6 AND user_id = $7 AND version = $8
			RETURNING parent_id, created_at, updated_at, version`

	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&taskToUpdate.ParentID, &taskToUpdate.CreatedAt, &taskToUpdate.UpdatedAt, &taskToUpdate.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetByID(ctx, taskToUpdate.UserID, taskToUpdate.ID); getErr != nil {
				return getErr
			}
			logger.Warn("Repository: version conflict on update",
				zap.String("task_id", taskToUpdate.ID.String()),
				zap.Int("expected_version", taskToUpdate.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: failed to update task", err, zap.Bool("move", move))
		return fmt.Errorf("update task: %w", err)
	}

	observe("Update", start, zap.Bool("move", move))
	return nil
}

func (s *Storage) UpdateParent(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) error {
	start := time.Now()

	query := `UPDATE tasks
			SET parent_id = $1,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $2 AND user_id = $3`

	tag, err := s.pool.Exec(ctx, query, parentID, id, userID)
	if err != nil {
		logger.Error("Repository: failed to move task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("update parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	observe("UpdateParent", start)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + `
				FROM tasks
				WHERE id = $1 AND user_id = $2`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("get task: %w", err)
	}

	observe("GetByID", start)
	return t, nil
}

// ListByUser returns the user's tasks in insertion order.
func (s *Storage) ListByUser(ctx context.Context, userID uuid.UUID) ([]task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + `
				FROM tasks
				WHERE user_id = $1
				ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err, zap.Duration("ms", time.Since(start)))
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
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	observe("ListByUser", start, zap.Int("rows", len(tasks)))
	return tasks, nil
}

// DeleteMany removes the ids in the given order inside one transaction.
// If any id is missing nothing is deleted.
func (s *Storage) DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logger.Error("Repository: failed to begin transaction", err)
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range ids {
		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			logger.Error("Repository: failed to delete task", err, zap.String("task_id", id.String()))
			return fmt.Errorf("delete task: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repo.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: failed to commit delete", err)
		return fmt.Errorf("commit: %w", err)
	}

	observe("DeleteMany", start, zap.Int("rows", len(ids)))
	return nil
}

// ListOwners returns every user that owns at least one task, oldest first.
func (s *Storage) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, `SELECT user_id FROM tasks GROUP BY user_id ORDER BY MIN(seq)`)
	if err != nil {
		logger.Error("Repository: failed to list owners", err)
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	owners := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	observe("ListOwners", start)
	return owners, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	var due *time.Time
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.ParentID,
		&t.Title,
		&t.Description,
		&due,
		&t.Weight,
		&t.Completed,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	if due != nil {
		d := date.Of(*due, time.UTC)
		t.DueDate = &d
	}
	return t, nil
}

func toTime(d *date.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func observe(op string, start time.Time, fields ...zap.Field) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: slow query",
			append([]zap.Field{zap.String("op", op), zap.Duration("ms", elapsed)}, fields...)...)
	}
}
