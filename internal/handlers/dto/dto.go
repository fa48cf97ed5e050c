package dto

import (
	"bytes"
	"encoding/json"
	"time"
	"todoTree/internal/date"
	"todoTree/internal/hierarchy"
	"todoTree/internal/models/task"
	"todoTree/internal/priority"

	"github.com/google/uuid"
)

// Optional tells an absent JSON field apart from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *date.Date `json:"due_date"`
	Weight      *int       `json:"weight"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Completed   bool       `json:"completed"`
}

// UpdateTaskRequest is a partial update. Absent fields are left alone; a
// null due_date clears it and a null parent_id moves the task to the top.
type UpdateTaskRequest struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	DueDate     Optional[date.Date] `json:"due_date"`
	Weight      *int                `json:"weight,omitempty"`
	Completed   *bool               `json:"completed,omitempty"`
	ParentID    Optional[uuid.UUID] `json:"parent_id"`
}

func (r UpdateTaskRequest) Options() []task.Option {
	opts := []task.Option{}
	if r.Title != nil {
		opts = append(opts, task.WithTitle(*r.Title))
	}
	if r.Description != nil {
		opts = append(opts, task.WithDescription(*r.Description))
	}
	if r.DueDate.Set {
		if r.DueDate.Value == nil {
			opts = append(opts, task.ClearDueDate())
		} else {
			opts = append(opts, task.WithDueDate(*r.DueDate.Value))
		}
	}
	if r.Weight != nil {
		opts = append(opts, task.WithWeight(*r.Weight))
	}
	if r.Completed != nil {
		opts = append(opts, task.WithCompleted(*r.Completed))
	}
	return opts
}

type ReparentRequest struct {
	ParentID Optional[uuid.UUID] `json:"parent_id"`
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id" yaml:"id"`
	ParentID    *uuid.UUID `json:"parent_id" yaml:"parent_id,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description,omitempty"`
	DueDate     *date.Date `json:"due_date" yaml:"due_date,omitempty"`
	Weight      int        `json:"weight" yaml:"weight"`
	Completed   bool       `json:"completed" yaml:"completed"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Version     int        `json:"version" yaml:"version"`
}

// ScoredTaskResponse is a task with its derived priority, as listed in the
// flat views.
type ScoredTaskResponse struct {
	TaskResponse  `yaml:",inline"`
	PriorityScore float64        `json:"priority_score" yaml:"priority_score"`
	DaysRemaining *int           `json:"days_remaining" yaml:"days_remaining"`
	Level         priority.Level `json:"level" yaml:"level"`
}

type NodeResponse struct {
	ScoredTaskResponse `yaml:",inline"`
	Children           []*NodeResponse `json:"children" yaml:"children,omitempty"`
}

type TreeResponse struct {
	Today    date.Date            `json:"today"`
	Tasks    []*NodeResponse      `json:"tasks"`
	Urgent   []ScoredTaskResponse `json:"urgent"`
	DueSoon  []ScoredTaskResponse `json:"due_soon"`
	Detached []uuid.UUID          `json:"detached"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ParentID:    t.ParentID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Weight:      priority.EffectiveWeight(t.Weight),
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Version:     t.Version,
	}
}

func FromScored(n *hierarchy.Node) ScoredTaskResponse {
	return ScoredTaskResponse{
		TaskResponse:  FromTask(&n.Task),
		PriorityScore: n.Priority.Score,
		DaysRemaining: n.Priority.Days(),
		Level:         n.Level(),
	}
}

func FromScoredList(nodes []*hierarchy.Node) []ScoredTaskResponse {
	result := make([]ScoredTaskResponse, len(nodes))
	for i, n := range nodes {
		result[i] = FromScored(n)
	}
	return result
}

// FromForest converts roots and their subtrees without recursion.
func FromForest(roots []*hierarchy.Node) []*NodeResponse {
	out := make([]*NodeResponse, len(roots))
	type pending struct {
		src *hierarchy.Node
		dst *NodeResponse
	}
	stack := make([]pending, 0, len(roots))
	for i, r := range roots {
		out[i] = &NodeResponse{}
		stack = append(stack, pending{r, out[i]})
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p.dst.ScoredTaskResponse = FromScored(p.src)
		p.dst.Children = make([]*NodeResponse, len(p.src.Children))
		for i, c := range p.src.Children {
			p.dst.Children[i] = &NodeResponse{}
			stack = append(stack, pending{c, p.dst.Children[i]})
		}
	}
	return out
}

func FromNode(n *hierarchy.Node) *NodeResponse {
	return FromForest([]*hierarchy.Node{n})[0]
}

func FromSnapshot(s *hierarchy.Snapshot) TreeResponse {
	return TreeResponse{
		Today:    s.Today,
		Tasks:    FromForest(s.Roots),
		Urgent:   FromScoredList(s.Urgent),
		DueSoon:  FromScoredList(s.DueSoon),
		Detached: s.Detached,
	}
}
