package inmemory

import (
	"context"
	"sync"
	"time"
	"todoTree/internal/logger"
	"todoTree/internal/models/task"
	repo "todoTree/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskStorage keeps tasks in memory in insertion order.
type TaskStorage struct {
	storage map[uuid.UUID]*task.Task
	mtx     *sync.RWMutex
	ids     []uuid.UUID
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: in-memory storage is healthy")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToCreate.CreatedAt = time.Now()
	taskToCreate.Version = 1

	stored := taskToCreate.Clone()
	s.storage[taskToCreate.ID] = &stored
	s.ids = append(s.ids, taskToCreate.ID)
	return nil
}

// Update overwrites the editable fields if taskToUpdate.Version matches the
// stored version. The stored parent is kept.
func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	return s.update(taskToUpdate, false)
}

// UpdateAndMove is Update that also takes taskToUpdate.ParentID.
func (s *TaskStorage) UpdateAndMove(ctx context.Context, taskToUpdate *task.Task) error {
	return s.update(taskToUpdate, true)
}

func (s *TaskStorage) update(taskToUpdate *task.Task, move bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.owned(taskToUpdate.UserID, taskToUpdate.ID)
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != taskToUpdate.Version {
		logger.Warn("Repository: version conflict on update",
			zap.String("task_id", taskToUpdate.ID.String()),
			zap.Int("expected_version", taskToUpdate.Version))
		return repo.ErrVersionConflict
	}

	now := time.Now()
	taskToUpdate.UpdatedAt = &now
	taskToUpdate.Version++
	taskToUpdate.CreatedAt = existing.CreatedAt
	if !move {
		taskToUpdate.ParentID = existing.ParentID
	}

	stored := taskToUpdate.Clone()
	s.storage[taskToUpdate.ID] = &stored
	return nil
}

func (s *TaskStorage) UpdateParent(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.owned(userID, id)
	if !ok {
		return repo.ErrNotFound
	}

	now := time.Now()
	if parentID != nil {
		p := *parentID
		existing.ParentID = &p
	} else {
		existing.ParentID = nil
	}
	existing.UpdatedAt = &now
	existing.Version++
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	existing, ok := s.owned(userID, id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := existing.Clone()
	return &cp, nil
}

// ListByUser returns copies so callers can treat the result as a snapshot.
func (s *TaskStorage) ListByUser(ctx context.Context, userID uuid.UUID) ([]task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []task.Task{}
	for _, id := range s.ids {
		t := s.storage[id]
		if t.UserID == userID {
			res = append(res, t.Clone())
		}
	}
	return res, nil
}

// DeleteMany removes all ids or none of them.
func (s *TaskStorage) DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		if _, ok := s.owned(userID, id); !ok {
			return repo.ErrNotFound
		}
	}

	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		delete(s.storage, id)
		drop[id] = struct{}{}
	}

	kept := s.ids[:0]
	for _, id := range s.ids {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.ids = kept
	return nil
}

func (s *TaskStorage) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	owners := []uuid.UUID{}
	for _, id := range s.ids {
		owner := s.storage[id].UserID
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	return owners, nil
}

// owned must be called with the lock held.
func (s *TaskStorage) owned(userID, id uuid.UUID) (*task.Task, bool) {
	t, ok := s.storage[id]
	if !ok || t.UserID != userID {
		return nil, false
	}
	return t, true
}
