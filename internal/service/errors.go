package service

import (
	"errors"
	"fmt"
	"todoTree/internal/hierarchy"
	repo "todoTree/internal/repository"
)

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeCycle           = "CYCLE_DETECTED"
	CodeSelfParent      = "SELF_PARENT"
	CodeParentNotFound  = "PARENT_NOT_FOUND"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(resource, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
		Err: repo.ErrNotFound,
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid value for '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewVersionConflict(id string) *BusinessError {
	return &BusinessError{
		Code:    CodeVersionConflict,
		Message: fmt.Sprintf("task %s was modified by another request", id),
		Details: map[string]any{"id": id},
		Err:     repo.ErrVersionConflict,
	}
}

// reparentError turns a hierarchy rule violation into a BusinessError.
// Anything else is returned unchanged.
func reparentError(err error, taskID, parentID string) error {
	details := map[string]any{"id": taskID, "parent_id": parentID}
	switch {
	case errors.Is(err, hierarchy.ErrTaskNotFound):
		return NewNotFound("task", taskID)
	case errors.Is(err, hierarchy.ErrSelfParent):
		return &BusinessError{Code: CodeSelfParent, Message: "a task cannot be its own parent", Details: details, Err: err}
	case errors.Is(err, hierarchy.ErrCycle):
		return &BusinessError{Code: CodeCycle, Message: "the new parent is a descendant of the task", Details: details, Err: err}
	case errors.Is(err, hierarchy.ErrParentNotFound):
		return &BusinessError{Code: CodeParentNotFound, Message: fmt.Sprintf("parent task %s not found", parentID), Details: details, Err: err}
	}
	return err
}
