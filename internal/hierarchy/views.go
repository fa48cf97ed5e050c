package hierarchy

import (
	"slices"
	"todoTree/internal/date"
	"todoTree/internal/models/task"
)

// UrgentLimit is the size of the urgent subset.
const UrgentLimit = 5

// FlattenWithPriority scores tasks and orders them by score, highest first.
// Equal scores keep input order.
func FlattenWithPriority(tasks []task.Task, today date.Date) []*Node {
	nodes, _ := newNodes(tasks, today)
	return sortByPriority(nodes)
}

func sortByPriority(nodes []*Node) []*Node {
	sorted := slices.Clone(nodes)
	slices.SortStableFunc(sorted, func(a, b *Node) int {
		switch {
		case a.Priority.Score > b.Priority.Score:
			return -1
		case a.Priority.Score < b.Priority.Score:
			return 1
		}
		return 0
	})
	return sorted
}

// TopUrgent returns the first n entries of an already sorted list. A
// negative n is read as zero.
func TopUrgent(sorted []*Node, n int) []*Node {
	n = max(n, 0)
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]*Node, n)
	copy(out, sorted[:n])
	return out
}

// IsDueSoon reports whether due falls on today or tomorrow.
func IsDueSoon(due *date.Date, today date.Date) bool {
	if due == nil {
		return false
	}
	return due.Equal(today) || due.Equal(today.AddDays(1))
}

// DueSoon keeps input order and skips undated tasks.
func DueSoon(tasks []task.Task, today date.Date) []*Node {
	nodes, _ := newNodes(tasks, today)
	return dueSoon(nodes, today)
}

func dueSoon(nodes []*Node, today date.Date) []*Node {
	out := make([]*Node, 0)
	for _, n := range nodes {
		if IsDueSoon(n.DueDate, today) {
			out = append(out, n)
		}
	}
	return out
}
