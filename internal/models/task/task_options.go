package task

import (
	"strings"
	"todoTree/internal/date"
)

// Option applies a partial update to a task.
type Option func(*Task)

func WithTitle(title string) Option {
	return func(task *Task) {
		task.Title = strings.TrimSpace(title)
	}
}

func WithDescription(description string) Option {
	return func(task *Task) {
		task.Description = description
	}
}

func WithDueDate(due date.Date) Option {
	return func(task *Task) {
		task.DueDate = &due
	}
}

func ClearDueDate() Option {
	return func(task *Task) {
		task.DueDate = nil
	}
}

func WithWeight(weight int) Option {
	return func(task *Task) {
		task.Weight = weight
	}
}

func WithCompleted(completed bool) Option {
	return func(task *Task) {
		task.Completed = completed
	}
}

func (t *Task) Apply(options ...Option) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}
