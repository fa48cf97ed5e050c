package service

import (
	"time"
	"todoTree/internal/hierarchy"
)

type Option func(*TaskService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone "today" is taken in.
func WithLocation(loc *time.Location) Option {
	return func(s *TaskService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithOrphanPolicy(p hierarchy.OrphanPolicy) Option {
	return func(s *TaskService) {
		s.orphans = p
	}
}
