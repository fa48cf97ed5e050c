package service_test

import (
	"context"
	"errors"
	"testing"
	"time"
	"todoTree/internal/date"
	"todoTree/internal/filter"
	"todoTree/internal/hierarchy"
	"todoTree/internal/models/task"
	"todoTree/internal/priority"
	"todoTree/internal/repository"
	"todoTree/internal/repository/task/inmemory"
	"todoTree/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository is a testify mock of the storage contract.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) Create(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) Update(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) UpdateAndMove(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) UpdateParent(ctx context.Context, userID, id uuid.UUID, parentID *uuid.UUID) error {
	args := m.Called(ctx, userID, id, parentID)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]task.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Task), args.Error(1)
}

func (m *MockTaskRepository) DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	args := m.Called(ctx, userID, ids)
	return args.Error(0)
}

func (m *MockTaskRepository) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)

var (
	user  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	clock = func() time.Time { return time.Date(2026, time.October, 16, 22, 30, 0, 0, time.UTC) }
)

func newService(repo service.TaskRepository, opts ...service.Option) *service.TaskService {
	return service.NewTaskService(repo, append([]service.Option{
		service.WithClock(clock),
		service.WithLocation(time.UTC),
	}, opts...)...)
}

func businessCode(t *testing.T, err error) string {
	t.Helper()
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	return busErr.Code
}

func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockTaskRepository)
		expectError bool
	}{
		{
			name: "success - health check passes",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("db connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			err := newService(mockRepo).HealthCheck(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "service health check")
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_Today_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	svc := newService(new(MockTaskRepository), service.WithLocation(tokyo))

	// 22:30 UTC is already the next morning in Tokyo
	assert.Equal(t, "2026-10-17", svc.Today().String())
}

func TestTaskService_CreateTask(t *testing.T) {
	ctx := context.Background()
	parentID := uuid.New()
	due := date.New(2026, time.October, 20)

	tests := []struct {
		name      string
		input     service.NewTask
		setupMock func(*MockTaskRepository)
		wantCode  string
		check     func(*testing.T, *task.Task)
	}{
		{
			name:  "success - weight defaults to 3",
			input: service.NewTask{Title: "  Buy milk  ", DueDate: &due},
			setupMock: func(m *MockTaskRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
					return t.Title == "Buy milk" && t.Weight == priority.DefaultWeight && t.UserID == user
				})).Return(nil)
			},
			check: func(t *testing.T, created *task.Task) {
				assert.NotEqual(t, uuid.Nil, created.ID)
				assert.Equal(t, "2026-10-20", created.DueDate.String())
			},
		},
		{
			name:  "success - under existing parent",
			input: service.NewTask{Title: "child", Weight: 5, ParentID: &parentID},
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByID", mock.Anything, user, parentID).Return(&task.Task{ID: parentID, UserID: user}, nil)
				m.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			check: func(t *testing.T, created *task.Task) {
				assert.Equal(t, parentID, *created.ParentID)
				assert.Equal(t, 5, created.Weight)
			},
		},
		{
			name:      "error - blank title",
			input:     service.NewTask{Title: "   "},
			setupMock: func(m *MockTaskRepository) {},
			wantCode:  service.CodeValidation,
		},
		{
			name:      "error - weight out of range",
			input:     service.NewTask{Title: "heavy", Weight: 9},
			setupMock: func(m *MockTaskRepository) {},
			wantCode:  service.CodeValidation,
		},
		{
			name:  "error - parent missing",
			input: service.NewTask{Title: "lost", ParentID: &parentID},
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByID", mock.Anything, user, parentID).Return(nil, repository.ErrNotFound)
			},
			wantCode: service.CodeParentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			created, err := newService(mockRepo).CreateTask(ctx, user, tt.input)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, businessCode(t, err))
				assert.Nil(t, created)
			} else {
				require.NoError(t, err)
				tt.check(t, created)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_CreateTask_StorageError(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := newService(mockRepo).CreateTask(context.Background(), user, service.NewTask{Title: "x"})

	require.Error(t, err)
	var busErr *service.BusinessError
	assert.False(t, errors.As(err, &busErr))
	assert.Contains(t, err.Error(), "disk full")
}

func TestTaskService_Snapshot(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)

	root, err := svc.CreateTask(ctx, user, service.NewTask{Title: "root", Weight: 2, DueDate: date.Ptr(svc.Today())})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, user, service.NewTask{Title: "child", Weight: 4, ParentID: &root.ID, DueDate: date.Ptr(svc.Today().AddDays(1))})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, uuid.New(), service.NewTask{Title: "someone else"})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, user)
	require.NoError(t, err)

	require.Len(t, snap.Roots, 1)
	assert.Equal(t, "root", snap.Roots[0].Title)
	require.Len(t, snap.Roots[0].Children, 1)
	assert.Equal(t, 4.0, snap.Roots[0].Children[0].Priority.Score)
	assert.Len(t, snap.Flat, 2)
	assert.Len(t, snap.DueSoon, 2)
	assert.Equal(t, "2026-10-16", snap.Today.String())
}

func TestTaskService_Snapshot_OrphanPolicy(t *testing.T) {
	ctx := context.Background()
	missing := uuid.New()
	orphan := task.Task{ID: uuid.New(), UserID: user, ParentID: &missing, Title: "orphan", Weight: 3}

	mockRepo := new(MockTaskRepository)
	mockRepo.On("ListByUser", mock.Anything, user).Return([]task.Task{orphan}, nil)

	dropped, err := newService(mockRepo).Snapshot(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, dropped.Roots)
	assert.Len(t, dropped.Flat, 1)

	promoted, err := newService(mockRepo, service.WithOrphanPolicy(hierarchy.OrphansPromote)).Snapshot(ctx, user)
	require.NoError(t, err)
	assert.Len(t, promoted.Roots, 1)
}

func TestTaskService_GetTask(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)

	parent, err := svc.CreateTask(ctx, user, service.NewTask{Title: "parent"})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, user, service.NewTask{Title: "child", ParentID: &parent.ID})
	require.NoError(t, err)

	node, err := svc.GetTask(ctx, user, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "parent", node.Title)
	assert.Len(t, node.Children, 1)

	_, err = svc.GetTask(ctx, uuid.New(), parent.ID)
	assert.Equal(t, service.CodeNotFound, businessCode(t, err))
}

func TestTaskService_UpdateTask(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)

	tk, err := svc.CreateTask(ctx, user, service.NewTask{Title: "draft", Weight: 1})
	require.NoError(t, err)

	due := date.New(2026, time.October, 18)
	updated, err := svc.UpdateTask(ctx, user, tk.ID, nil,
		task.WithTitle("final"),
		task.WithWeight(5),
		task.WithDueDate(due),
		task.WithCompleted(true),
	)
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, 5, updated.Weight)
	assert.True(t, updated.Completed)
	assert.Equal(t, 2, updated.Version)

	_, err = svc.UpdateTask(ctx, user, tk.ID, nil, task.WithWeight(0))
	assert.Equal(t, service.CodeValidation, businessCode(t, err))

	_, err = svc.UpdateTask(ctx, user, uuid.New(), nil, task.WithTitle("x"))
	assert.Equal(t, service.CodeNotFound, businessCode(t, err))
}

func TestTaskService_UpdateTask_MovesParent(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)

	a, err := svc.CreateTask(ctx, user, service.NewTask{Title: "A"})
	require.NoError(t, err)
	b, err := svc.CreateTask(ctx, user, service.NewTask{Title: "B", ParentID: &a.ID})
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, user, a.ID, &service.ParentChange{ParentID: &b.ID}, task.WithTitle("A2"))
	assert.Equal(t, service.CodeCycle, businessCode(t, err))

	unchanged, err := repo.GetByID(ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", unchanged.Title, "rejected move must not write the other fields")

	moved, err := svc.UpdateTask(ctx, user, b.ID, &service.ParentChange{}, task.WithTitle("B2"))
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, "B2", moved.Title)
}

func TestTaskService_UpdateTask_MoveIsOneWrite(t *testing.T) {
	a := task.Task{ID: uuid.New(), UserID: user, Title: "A", Weight: 3}
	b := task.Task{ID: uuid.New(), UserID: user, Title: "B", Weight: 3, Version: 1}

	mockRepo := new(MockTaskRepository)
	mockRepo.On("GetByID", mock.Anything, user, b.ID).Return(&b, nil).Once()
	mockRepo.On("ListByUser", mock.Anything, user).Return([]task.Task{a, b}, nil)
	mockRepo.On("UpdateAndMove", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
		return t.Title == "B2" && t.ParentID != nil && *t.ParentID == a.ID && t.Version == 1
	})).Return(nil).Once()

	moved, err := newService(mockRepo).UpdateTask(context.Background(), user, b.ID,
		&service.ParentChange{ParentID: &a.ID}, task.WithTitle("B2"))

	require.NoError(t, err)
	assert.Equal(t, a.ID, *moved.ParentID)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "UpdateParent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskService_UpdateTask_VersionConflict(t *testing.T) {
	id := uuid.New()
	mockRepo := new(MockTaskRepository)
	mockRepo.On("GetByID", mock.Anything, user, id).Return(&task.Task{ID: id, UserID: user, Title: "t", Weight: 3, Version: 1}, nil)
	mockRepo.On("Update", mock.Anything, mock.Anything).Return(repository.ErrVersionConflict)

	_, err := newService(mockRepo).UpdateTask(context.Background(), user, id, nil, task.WithTitle("new"))

	assert.Equal(t, service.CodeVersionConflict, businessCode(t, err))
	mockRepo.AssertExpectations(t)
}

func TestTaskService_DeleteTask_Cascades(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)

	a, err := svc.CreateTask(ctx, user, service.NewTask{Title: "A"})
	require.NoError(t, err)
	b, err := svc.CreateTask(ctx, user, service.NewTask{Title: "B", ParentID: &a.ID})
	require.NoError(t, err)
	c, err := svc.CreateTask(ctx, user, service.NewTask{Title: "C", ParentID: &b.ID})
	require.NoError(t, err)
	keep, err := svc.CreateTask(ctx, user, service.NewTask{Title: "keep"})
	require.NoError(t, err)

	deleted, err := svc.DeleteTask(ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID, b.ID, a.ID}, deleted)

	left, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, keep.ID, left[0].ID)

	_, err = svc.DeleteTask(ctx, user, a.ID)
	assert.Equal(t, service.CodeNotFound, businessCode(t, err))
}

func TestTaskService_DeleteTask_StorageFailure(t *testing.T) {
	id := uuid.New()
	mockRepo := new(MockTaskRepository)
	mockRepo.On("ListByUser", mock.Anything, user).Return([]task.Task{{ID: id, UserID: user, Title: "t"}}, nil)
	mockRepo.On("DeleteMany", mock.Anything, user, []uuid.UUID{id}).Return(errors.New("tx aborted"))

	_, err := newService(mockRepo).DeleteTask(context.Background(), user, id)

	assert.ErrorContains(t, err, "tx aborted")
	mockRepo.AssertExpectations(t)
}

func TestTaskService_ReparentTask(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)

	a, err := svc.CreateTask(ctx, user, service.NewTask{Title: "A"})
	require.NoError(t, err)
	b, err := svc.CreateTask(ctx, user, service.NewTask{Title: "B", ParentID: &a.ID})
	require.NoError(t, err)
	c, err := svc.CreateTask(ctx, user, service.NewTask{Title: "C", ParentID: &b.ID})
	require.NoError(t, err)
	d, err := svc.CreateTask(ctx, user, service.NewTask{Title: "D"})
	require.NoError(t, err)
	missing := uuid.New()

	tests := []struct {
		name     string
		id       uuid.UUID
		parent   *uuid.UUID
		wantCode string
	}{
		{name: "cycle", id: a.ID, parent: &c.ID, wantCode: service.CodeCycle},
		{name: "self", id: b.ID, parent: &b.ID, wantCode: service.CodeSelfParent},
		{name: "unknown parent", id: c.ID, parent: &missing, wantCode: service.CodeParentNotFound},
		{name: "unknown task", id: missing, parent: nil, wantCode: service.CodeNotFound},
		{name: "under another tree", id: c.ID, parent: &d.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReparentTask(ctx, user, tt.id, tt.parent)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, businessCode(t, err))
				return
			}
			assert.NoError(t, err)
		})
	}

	moved, err := repo.GetByID(ctx, user, c.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, *moved.ParentID)

	root, err := svc.ReparentTask(ctx, user, b.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
}

func TestTaskService_ReparentTask_SingleWrite(t *testing.T) {
	a := task.Task{ID: uuid.New(), UserID: user, Title: "A", Weight: 3}
	b := task.Task{ID: uuid.New(), UserID: user, Title: "B", Weight: 3}

	mockRepo := new(MockTaskRepository)
	mockRepo.On("ListByUser", mock.Anything, user).Return([]task.Task{a, b}, nil)
	mockRepo.On("UpdateParent", mock.Anything, user, b.ID, &a.ID).Return(nil).Once()
	mockRepo.On("GetByID", mock.Anything, user, b.ID).Return(&task.Task{ID: b.ID, ParentID: &a.ID}, nil)

	_, err := newService(mockRepo).ReparentTask(context.Background(), user, b.ID, &a.ID)

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTaskService_FilteredTasks(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewTaskStorage()
	svc := newService(repo)
	today := svc.Today()

	_, err := svc.CreateTask(ctx, user, service.NewTask{Title: "urgent", Weight: 5, DueDate: date.Ptr(today)})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, user, service.NewTask{Title: "done", Weight: 5, DueDate: date.Ptr(today), Completed: true})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, user, service.NewTask{Title: "someday", Weight: 1})
	require.NoError(t, err)

	f := filter.Default()
	f.ShowCompleted = false
	f.Levels = []priority.Level{priority.LevelHigh}

	nodes, err := svc.FilteredTasks(ctx, user, f)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "urgent", nodes[0].Title)
}

func TestTaskService_Owners(t *testing.T) {
	owners := []uuid.UUID{uuid.New(), uuid.New()}
	mockRepo := new(MockTaskRepository)
	mockRepo.On("ListOwners", mock.Anything).Return(owners, nil)

	got, err := newService(mockRepo).Owners(context.Background())

	require.NoError(t, err)
	assert.Equal(t, owners, got)
}
