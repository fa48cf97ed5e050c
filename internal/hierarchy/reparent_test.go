package hierarchy_test

import (
	"testing"
	"todoTree/internal/hierarchy"
	"todoTree/internal/models/task"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func chain() (a, b, c task.Task, all []task.Task) {
	a = newTask("A", nil)
	b = newTask("B", &a.ID)
	c = newTask("C", &b.ID)
	return a, b, c, []task.Task{a, b, c}
}

func TestCheckReparent(t *testing.T) {
	a, b, c, all := chain()
	d := newTask("D", nil)
	all = append(all, d)
	missing := uuid.New()

	tests := []struct {
		name      string
		taskID    uuid.UUID
		newParent *uuid.UUID
		wantErr   error
	}{
		{name: "ancestor under its grandchild", taskID: a.ID, newParent: &c.ID, wantErr: hierarchy.ErrCycle},
		{name: "ancestor under its child", taskID: a.ID, newParent: &b.ID, wantErr: hierarchy.ErrCycle},
		{name: "middle under its child", taskID: b.ID, newParent: &c.ID, wantErr: hierarchy.ErrCycle},
		{name: "self", taskID: b.ID, newParent: &b.ID, wantErr: hierarchy.ErrSelfParent},
		{name: "unknown task", taskID: missing, newParent: nil, wantErr: hierarchy.ErrTaskNotFound},
		{name: "unknown parent", taskID: c.ID, newParent: &missing, wantErr: hierarchy.ErrParentNotFound},
		{name: "to root", taskID: c.ID, newParent: nil},
		{name: "root to root", taskID: a.ID, newParent: nil},
		{name: "leaf under other tree", taskID: c.ID, newParent: &d.ID},
		{name: "subtree under unrelated root", taskID: a.ID, newParent: &d.ID},
		{name: "grandchild up to grandparent", taskID: c.ID, newParent: &a.ID},
		{name: "same parent again", taskID: c.ID, newParent: &b.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hierarchy.CheckReparent(all, tt.taskID, tt.newParent)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			s := hierarchy.Build(all, today)
			snapErr := s.CheckReparent(tt.taskID, tt.newParent)
			assert.Equal(t, err, snapErr)
		})
	}
}

func TestCheckReparent_StoredCycleDoesNotHang(t *testing.T) {
	x := newTask("X", nil)
	y := newTask("Y", &x.ID)
	x.ParentID = &y.ID
	z := newTask("Z", nil)

	err := hierarchy.CheckReparent([]task.Task{x, y, z}, z.ID, &x.ID)
	assert.NoError(t, err)

	err = hierarchy.CheckReparent([]task.Task{x, y, z}, x.ID, &y.ID)
	assert.ErrorIs(t, err, hierarchy.ErrCycle)
}
