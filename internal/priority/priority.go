// Package priority computes the urgency score of a task from its weight and
// due date.
package priority

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"todoTree/internal/date"
)

const (
	MinWeight     = 1
	MaxWeight     = 5
	DefaultWeight = 3
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// AllLevels in ascending order of urgency.
func AllLevels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelLow:
		return LevelLow, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelHigh:
		return LevelHigh, nil
	}
	return "", fmt.Errorf("unknown priority level %q", s)
}

func (l Level) String() string {
	return string(l)
}

// LevelOf classifies a score. Each band includes its lower bound.
func LevelOf(score float64) Level {
	switch {
	case score >= 2:
		return LevelHigh
	case score >= 1:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Result is the output of Calculate. DaysRemaining is meaningful only when
// the task has a due date; otherwise the remaining time is unbounded.
type Result struct {
	Score         float64
	DaysRemaining int
	HasDeadline   bool
}

func (r Result) Unbounded() bool {
	return !r.HasDeadline
}

func (r Result) Level() Level {
	return LevelOf(r.Score)
}

// Days returns nil for an unbounded result.
func (r Result) Days() *int {
	if !r.HasDeadline {
		return nil
	}
	d := r.DaysRemaining
	return &d
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Score         float64 `json:"score"`
		DaysRemaining *int    `json:"days_remaining"`
		Level         Level   `json:"level"`
	}{r.Score, r.Days(), r.Level()})
}

// EffectiveWeight maps a missing (zero) weight to DefaultWeight.
func EffectiveWeight(weight int) int {
	if weight == 0 {
		return DefaultWeight
	}
	return weight
}

func ValidWeight(weight int) bool {
	return weight >= MinWeight && weight <= MaxWeight
}

// Calculate returns weight / max(1, daysRemaining) rounded to two decimals.
// Tasks due today and overdue tasks both score the full weight. today must be
// read once per rebuild so that every task shares it.
func Calculate(weight int, due *date.Date, today date.Date) Result {
	if due == nil {
		return Result{}
	}

	days := today.DaysUntil(*due)
	score := float64(EffectiveWeight(weight)) / float64(max(1, days))

	return Result{
		Score:         round2(score),
		DaysRemaining: days,
		HasDeadline:   true,
	}
}

// round2 rounds half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
