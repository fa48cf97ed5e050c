package repository

import "errors"

var (
	ErrNotFound        = errors.New("task not found")
	ErrVersionConflict = errors.New("task was modified concurrently")
)
