package hierarchy

import (
	"errors"
	"todoTree/internal/models/task"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrParentNotFound = errors.New("parent task not found")
	ErrSelfParent     = errors.New("task cannot be its own parent")
	ErrCycle          = errors.New("new parent is a descendant of the task")
)

// CheckReparent validates moving taskID under newParent (nil = root) against
// the owner's current records. The walk goes up from the proposed parent and
// fails if it meets taskID.
func CheckReparent(tasks []task.Task, taskID uuid.UUID, newParent *uuid.UUID) error {
	parents := make(map[uuid.UUID]*uuid.UUID, len(tasks))
	for i := range tasks {
		if _, dup := parents[tasks[i].ID]; !dup {
			parents[tasks[i].ID] = tasks[i].ParentID
		}
	}
	return checkReparent(parents, taskID, newParent)
}

func (s *Snapshot) CheckReparent(taskID uuid.UUID, newParent *uuid.UUID) error {
	parents := make(map[uuid.UUID]*uuid.UUID, len(s.nodes))
	for _, n := range s.nodes {
		parents[n.ID] = n.ParentID
	}
	return checkReparent(parents, taskID, newParent)
}

func checkReparent(parents map[uuid.UUID]*uuid.UUID, taskID uuid.UUID, newParent *uuid.UUID) error {
	if _, ok := parents[taskID]; !ok {
		return ErrTaskNotFound
	}
	if newParent == nil {
		return nil
	}
	if *newParent == taskID {
		return ErrSelfParent
	}
	if _, ok := parents[*newParent]; !ok {
		return ErrParentNotFound
	}

	// visited guards against cycles already present in storage
	visited := make(map[uuid.UUID]struct{})
	cur := newParent
	for cur != nil {
		if *cur == taskID {
			return ErrCycle
		}
		if _, seen := visited[*cur]; seen {
			return nil
		}
		visited[*cur] = struct{}{}
		cur = parents[*cur]
	}
	return nil
}

// DeleteOrder returns rootID and every task below it following parent_id
// links, children before their parent. The returned slice is empty when
// rootID is unknown.
func DeleteOrder(tasks []task.Task, rootID uuid.UUID) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID, len(tasks))
	known := make(map[uuid.UUID]struct{}, len(tasks))
	for _, t := range tasks {
		known[t.ID] = struct{}{}
		if t.ParentID != nil && *t.ParentID != t.ID {
			children[*t.ParentID] = append(children[*t.ParentID], t.ID)
		}
	}
	if _, ok := known[rootID]; !ok {
		return []uuid.UUID{}
	}

	type item struct {
		id       uuid.UUID
		expanded bool
	}

	order := make([]uuid.UUID, 0)
	visited := map[uuid.UUID]struct{}{rootID: {}}
	stack := []item{{id: rootID}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.expanded {
			order = append(order, top.id)
			continue
		}

		stack = append(stack, item{id: top.id, expanded: true})
		kids := children[top.id]
		for i := len(kids) - 1; i >= 0; i-- {
			if _, seen := visited[kids[i]]; seen {
				continue
			}
			visited[kids[i]] = struct{}{}
			stack = append(stack, item{id: kids[i]})
		}
	}
	return order
}
