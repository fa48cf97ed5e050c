package service

import (
	"context"
	"todoTree/internal/models/task"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	// UpdateAndMove is Update that also writes t.ParentID, as one write.
	UpdateAndMove(ctx context.Context, t *task.Task) error
	UpdateParent(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*task.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]task.Task, error)
	DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
	ListOwners(ctx context.Context) ([]uuid.UUID, error)
}
