// Package filter narrows a scored task list by completion, priority level,
// due-date range and weight. All predicates are ANDed.
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"todoTree/internal/date"
	"todoTree/internal/hierarchy"
	"todoTree/internal/priority"
)

type Filters struct {
	ShowCompleted bool
	// Levels is a set. An empty set matches nothing.
	Levels []priority.Level
	// DueFrom and DueTo are inclusive. Undated tasks are not tested against
	// them unless ExcludeUndated is set.
	DueFrom        *date.Date
	DueTo          *date.Date
	ExcludeUndated bool
	WeightMin      int
	WeightMax      int
}

// Default matches every task.
func Default() Filters {
	return Filters{
		ShowCompleted: true,
		Levels:        priority.AllLevels(),
		WeightMin:     priority.MinWeight,
		WeightMax:     priority.MaxWeight,
	}
}

// Apply keeps the input order.
func Apply(nodes []*hierarchy.Node, f Filters) []*hierarchy.Node {
	out := make([]*hierarchy.Node, 0, len(nodes))
	for _, n := range nodes {
		if Match(n, f) {
			out = append(out, n)
		}
	}
	return out
}

func Match(n *hierarchy.Node, f Filters) bool {
	if !f.ShowCompleted && n.Completed {
		return false
	}
	if !containsLevel(f.Levels, n.Level()) {
		return false
	}
	if !matchesDueRange(n.DueDate, f) {
		return false
	}
	return matchesWeight(priority.EffectiveWeight(n.Weight), f.WeightMin, f.WeightMax)
}

func containsLevel(levels []priority.Level, l priority.Level) bool {
	for _, v := range levels {
		if v == l {
			return true
		}
	}
	return false
}

func matchesDueRange(due *date.Date, f Filters) bool {
	if f.DueFrom == nil && f.DueTo == nil {
		return true
	}
	if due == nil {
		return !f.ExcludeUndated
	}
	if f.DueFrom != nil && due.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && due.After(*f.DueTo) {
		return false
	}
	return true
}

func matchesWeight(w, min, max int) bool {
	return w >= min && w <= max
}

// Parse reads filters from query parameters. Absent parameters keep the
// Default values.
//
//	show_completed=false
//	levels=low,high
//	due_from=2026-01-01&due_to=2026-01-31
//	exclude_undated=true
//	weight_min=2&weight_max=4
func Parse(q url.Values) (Filters, error) {
	f := Default()

	if v := q.Get("show_completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("show_completed: %w", err)
		}
		f.ShowCompleted = b
	}

	if q.Has("levels") {
		f.Levels = []priority.Level{}
		for _, raw := range strings.Split(q.Get("levels"), ",") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			lvl, err := priority.ParseLevel(raw)
			if err != nil {
				return f, fmt.Errorf("levels: %w", err)
			}
			if !containsLevel(f.Levels, lvl) {
				f.Levels = append(f.Levels, lvl)
			}
		}
	}

	var err error
	if f.DueFrom, err = parseDate(q, "due_from"); err != nil {
		return f, err
	}
	if f.DueTo, err = parseDate(q, "due_to"); err != nil {
		return f, err
	}

	if v := q.Get("exclude_undated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("exclude_undated: %w", err)
		}
		f.ExcludeUndated = b
	}

	if f.WeightMin, err = parseWeight(q, "weight_min", f.WeightMin); err != nil {
		return f, err
	}
	if f.WeightMax, err = parseWeight(q, "weight_max", f.WeightMax); err != nil {
		return f, err
	}
	if f.WeightMin > f.WeightMax {
		return f, fmt.Errorf("weight_min %d is greater than weight_max %d", f.WeightMin, f.WeightMax)
	}

	return f, nil
}

func parseDate(q url.Values, key string) (*date.Date, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := date.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &d, nil
}

func parseWeight(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	w, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	if !priority.ValidWeight(w) {
		return def, fmt.Errorf("%s must be between %d and %d", key, priority.MinWeight, priority.MaxWeight)
	}
	return w, nil
}
