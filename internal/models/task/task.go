package task

import (
	"time"
	"todoTree/internal/date"

	"github.com/google/uuid"
)

// Task is a persisted to-do record. ParentID == nil marks a root task.
type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	ParentID    *uuid.UUID `json:"parent_id" db:"parent_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     *date.Date `json:"due_date" db:"due_date"`
	Weight      int        `json:"weight" db:"weight"`
	Completed   bool       `json:"completed" db:"completed"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at,omitempty"`
	Version     int        `json:"version" db:"version"`
}

func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// HasParent reports whether the task is linked under id.
func (t *Task) HasParent(id uuid.UUID) bool {
	return t.ParentID != nil && *t.ParentID == id
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.ParentID != nil {
		p := *t.ParentID
		t.ParentID = &p
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}
