package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"todoTree/internal/date"
	"todoTree/internal/filter"
	"todoTree/internal/hierarchy"
	"todoTree/internal/logger"
	"todoTree/internal/models/task"
	"todoTree/internal/priority"
	repo "todoTree/internal/repository"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const MaxTitleLength = 255

var tracer = otel.Tracer("todoTree/internal/service")

// TaskService holds the business rules on top of a TaskRepository. Every
// read builds a fresh hierarchy.Snapshot; nothing is cached between calls.
type TaskService struct {
	repo    TaskRepository
	now     func() time.Time
	loc     *time.Location
	orphans hierarchy.OrphanPolicy
}

func NewTaskService(repo TaskRepository, opts ...Option) *TaskService {
	s := &TaskService{
		repo:    repo,
		now:     time.Now,
		loc:     time.Local,
		orphans: hierarchy.OrphansDrop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTask is the input of CreateTask. A zero Weight means the default.
type NewTask struct {
	Title       string
	Description string
	DueDate     *date.Date
	Weight      int
	ParentID    *uuid.UUID
	Completed   bool
}

// ParentChange asks UpdateTask to move the task. A nil ParentID makes it a
// root.
type ParentChange struct {
	ParentID *uuid.UUID
}

// Today is read once per call so every score in a snapshot agrees on it.
func (s *TaskService) Today() date.Date {
	return date.Of(s.now(), s.loc)
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", err)
	}
	return nil
}

func (s *TaskService) Snapshot(ctx context.Context, userID uuid.UUID) (snap *hierarchy.Snapshot, err error) {
	ctx, span := startSpan(ctx, "Snapshot", userID)
	defer func() { endSpan(span, err) }()

	return s.snapshot(ctx, userID)
}

func (s *TaskService) snapshot(ctx context.Context, userID uuid.UUID) (*hierarchy.Snapshot, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	snap := hierarchy.Build(tasks, s.Today(), hierarchy.WithOrphanPolicy(s.orphans))
	if len(snap.Detached) > 0 {
		logger.Debug("Service: tasks outside the forest",
			zap.String("user_id", userID.String()),
			zap.Int("count", len(snap.Detached)))
	}
	return snap, nil
}

func (s *TaskService) CreateTask(ctx context.Context, userID uuid.UUID, in NewTask) (created *task.Task, err error) {
	ctx, span := startSpan(ctx, "CreateTask", userID)
	defer func() { endSpan(span, err) }()

	t := &task.Task{
		ID:          uuid.New(),
		UserID:      userID,
		ParentID:    in.ParentID,
		Description: in.Description,
		DueDate:     in.DueDate,
		Weight:      in.Weight,
		Completed:   in.Completed,
	}
	t.Apply(task.WithTitle(in.Title))
	if t.Weight == 0 {
		t.Weight = priority.DefaultWeight
	}
	if err := validate(t); err != nil {
		return nil, err
	}

	if t.ParentID != nil {
		if _, err := s.repo.GetByID(ctx, userID, *t.ParentID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, reparentError(hierarchy.ErrParentNotFound, t.ID.String(), t.ParentID.String())
			}
			return nil, fmt.Errorf("get parent: %w", err)
		}
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	logger.Info("Service: task created",
		zap.String("task_id", t.ID.String()),
		zap.String("user_id", userID.String()))
	return t, nil
}

// GetTask returns the task with its subtree as of now.
func (s *TaskService) GetTask(ctx context.Context, userID, id uuid.UUID) (node *hierarchy.Node, err error) {
	ctx, span := startSpan(ctx, "GetTask", userID)
	defer func() { endSpan(span, err) }()

	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	node, ok := snap.Node(id)
	if !ok {
		logger.Info("Service: task not found", zap.String("target_id", id.String()))
		return nil, NewNotFound("task", id.String())
	}
	return node, nil
}

// UpdateTask applies options to the stored task. A non-nil parent is checked
// against the hierarchy rules before anything is written, and a move is
// stored together with the field changes.
func (s *TaskService) UpdateTask(ctx context.Context, userID, id uuid.UUID, parent *ParentChange, options ...task.Option) (updated *task.Task, err error) {
	ctx, span := startSpan(ctx, "UpdateTask", userID)
	defer func() { endSpan(span, err) }()

	current, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, mapRepoErr(err, id, "get task")
	}

	move := parent != nil && !sameParent(current.ParentID, parent.ParentID)
	if move {
		if err := s.checkReparent(ctx, userID, id, parent.ParentID); err != nil {
			return nil, err
		}
	}

	current.Apply(options...)
	if err := validate(current); err != nil {
		return nil, err
	}

	write := s.repo.Update
	if move {
		current.ParentID = nil
		if parent.ParentID != nil {
			p := *parent.ParentID
			current.ParentID = &p
		}
		write = s.repo.UpdateAndMove
	}
	if err := write(ctx, current); err != nil {
		return nil, mapRepoErr(err, id, "update task")
	}

	return current, nil
}

// DeleteTask removes the task and everything below it. The returned ids are
// in deletion order, leaves first.
func (s *TaskService) DeleteTask(ctx context.Context, userID, id uuid.UUID) (deleted []uuid.UUID, err error) {
	ctx, span := startSpan(ctx, "DeleteTask", userID)
	defer func() { endSpan(span, err) }()

	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	order := hierarchy.DeleteOrder(tasks, id)
	if len(order) == 0 {
		return nil, NewNotFound("task", id.String())
	}

	if err := s.repo.DeleteMany(ctx, userID, order); err != nil {
		return nil, mapRepoErr(err, id, "delete tasks")
	}

	span.SetAttributes(attribute.Int("tasks.deleted", len(order)))
	logger.Info("Service: task deleted",
		zap.String("task_id", id.String()),
		zap.Int("with_descendants", len(order)-1))
	return order, nil
}

// ReparentTask moves id under parentID, or to the top level when parentID is
// nil. The only write is a single parent update.
func (s *TaskService) ReparentTask(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) (moved *task.Task, err error) {
	ctx, span := startSpan(ctx, "ReparentTask", userID)
	defer func() { endSpan(span, err) }()

	if err := s.checkReparent(ctx, userID, id, parentID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateParent(ctx, userID, id, parentID); err != nil {
		return nil, mapRepoErr(err, id, "update parent")
	}

	moved, err = s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, mapRepoErr(err, id, "get task")
	}
	return moved, nil
}

// FilteredTasks applies f to the priority-sorted list.
func (s *TaskService) FilteredTasks(ctx context.Context, userID uuid.UUID, f filter.Filters) (nodes []*hierarchy.Node, err error) {
	ctx, span := startSpan(ctx, "FilteredTasks", userID)
	defer func() { endSpan(span, err) }()

	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filter.Apply(snap.Flat, f), nil
}

// Owners lists every user with at least one task.
func (s *TaskService) Owners(ctx context.Context) ([]uuid.UUID, error) {
	owners, err := s.repo.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

func (s *TaskService) checkReparent(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) error {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if err := hierarchy.CheckReparent(tasks, id, parentID); err != nil {
		target := ""
		if parentID != nil {
			target = parentID.String()
		}
		logger.Info("Service: move rejected",
			zap.String("task_id", id.String()),
			zap.String("parent_id", target),
			zap.Error(err))
		return reparentError(err, id.String(), target)
	}
	return nil
}

func validate(t *task.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return NewValidationError("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
	if !priority.ValidWeight(t.Weight) {
		return NewValidationError("weight", fmt.Sprintf("must be between %d and %d", priority.MinWeight, priority.MaxWeight))
	}
	return nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapRepoErr(err error, id uuid.UUID, op string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		logger.Info("Service: task not found", zap.String("target_id", id.String()))
		return NewNotFound("task", id.String())
	case errors.Is(err, repo.ErrVersionConflict):
		return NewVersionConflict(id.String())
	}
	return fmt.Errorf("%s: %w", op, err)
}

func startSpan(ctx context.Context, name string, userID uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "TaskService."+name,
		trace.WithAttributes(attribute.String("user.id", userID.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
