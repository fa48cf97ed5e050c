package handlers

import (
	"context"
	"todoTree/internal/filter"
	"todoTree/internal/hierarchy"
	"todoTree/internal/models/task"
	"todoTree/internal/service"

	"github.com/google/uuid"
)

type Service interface {
	HealthCheck(ctx context.Context) error
	Snapshot(ctx context.Context, userID uuid.UUID) (*hierarchy.Snapshot, error)
	CreateTask(ctx context.Context, userID uuid.UUID, in service.NewTask) (*task.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (*hierarchy.Node, error)
	UpdateTask(ctx context.Context, userID, id uuid.UUID, parent *service.ParentChange, options ...task.Option) (*task.Task, error)
	DeleteTask(ctx context.Context, userID, id uuid.UUID) ([]uuid.UUID, error)
	ReparentTask(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) (*task.Task, error)
	FilteredTasks(ctx context.Context, userID uuid.UUID, f filter.Filters) ([]*hierarchy.Node, error)
}
