// Package hierarchy turns a user's flat task records into a scored forest and
// the derived views served to clients: the priority-sorted list, the urgent
// subset and the due-soon subset.
//
// A Snapshot is built from scratch on every refresh and never patched in
// place. Mutations go to storage and are followed by a new Build.
package hierarchy

import (
	"todoTree/internal/date"
	"todoTree/internal/models/task"
	"todoTree/internal/priority"

	"github.com/google/uuid"
)

// Node is a task plus its derived fields. Children keep input order.
type Node struct {
	task.Task
	Priority priority.Result
	Children []*Node
}

func (n *Node) Level() priority.Level {
	return n.Priority.Level()
}

type OrphanPolicy string

const (
	// OrphansDrop leaves tasks whose parent is missing out of the forest.
	// They still show up in the flat views.
	OrphansDrop OrphanPolicy = "drop"
	// OrphansPromote renders tasks whose parent is missing as roots.
	OrphansPromote OrphanPolicy = "promote"
)

func ParseOrphanPolicy(s string) (OrphanPolicy, bool) {
	switch OrphanPolicy(s) {
	case OrphansDrop, "":
		return OrphansDrop, true
	case OrphansPromote:
		return OrphansPromote, true
	}
	return "", false
}

type options struct {
	orphans     OrphanPolicy
	urgentLimit int
}

type Option func(*options)

func WithOrphanPolicy(p OrphanPolicy) Option {
	return func(o *options) {
		o.orphans = p
	}
}

func WithUrgentLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.urgentLimit = n
		}
	}
}

// Snapshot is an immutable view over one fetch of a user's tasks.
type Snapshot struct {
	Today    date.Date
	Roots    []*Node
	Flat     []*Node
	Urgent   []*Node
	DueSoon  []*Node
	Detached []uuid.UUID

	nodes []*Node
	index map[uuid.UUID]*Node
}

// Build scores every task and links the forest in two passes over the input.
// Duplicate ids keep their first occurrence.
func Build(tasks []task.Task, today date.Date, opts ...Option) *Snapshot {
	o := options{orphans: OrphansDrop, urgentLimit: UrgentLimit}
	for _, opt := range opts {
		opt(&o)
	}

	nodes, index := newNodes(tasks, today)

	roots := make([]*Node, 0)
	for _, n := range nodes {
		switch {
		case n.ParentID == nil:
			roots = append(roots, n)
		case *n.ParentID == n.ID:
			// self-reference: never linked under itself
		default:
			if parent, ok := index[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
			} else if o.orphans == OrphansPromote {
				roots = append(roots, n)
			}
		}
	}

	s := &Snapshot{
		Today: today,
		Roots: roots,
		nodes: nodes,
		index: index,
	}
	s.Flat = sortByPriority(nodes)
	s.Urgent = TopUrgent(s.Flat, o.urgentLimit)
	s.DueSoon = dueSoon(nodes, today)
	s.Detached = s.detached()

	return s
}

func newNodes(tasks []task.Task, today date.Date) ([]*Node, map[uuid.UUID]*Node) {
	nodes := make([]*Node, 0, len(tasks))
	index := make(map[uuid.UUID]*Node, len(tasks))

	for _, t := range tasks {
		if _, dup := index[t.ID]; dup {
			continue
		}
		n := &Node{
			Task:     t.Clone(),
			Priority: priority.Calculate(t.Weight, t.DueDate, today),
			Children: make([]*Node, 0),
		}
		nodes = append(nodes, n)
		index[t.ID] = n
	}
	return nodes, index
}

func (s *Snapshot) Node(id uuid.UUID) (*Node, bool) {
	n, ok := s.index[id]
	return n, ok
}

func (s *Snapshot) Len() int {
	return len(s.nodes)
}

// Nodes returns every node in input order.
func (s *Snapshot) Nodes() []*Node {
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Tasks returns the records the snapshot was built from, in input order.
func (s *Snapshot) Tasks() []task.Task {
	out := make([]task.Task, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.Task
	}
	return out
}

// Walk visits the forest depth-first in render order. Returning false from fn
// skips the node's subtree. Every node reachable from a root has an acyclic
// ancestor chain, so the walk terminates without a visited set.
func (s *Snapshot) Walk(fn func(n *Node, depth int) bool) {
	WalkForest(s.Roots, fn)
}

type frame struct {
	node  *Node
	depth int
}

func WalkForest(roots []*Node, fn func(n *Node, depth int) bool) {
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(f.node, f.depth) {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// detached lists nodes not reachable from any root, in input order.
func (s *Snapshot) detached() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(s.nodes))
	s.Walk(func(n *Node, _ int) bool {
		seen[n.ID] = struct{}{}
		return true
	})

	out := make([]uuid.UUID, 0)
	for _, n := range s.nodes {
		if _, ok := seen[n.ID]; !ok {
			out = append(out, n.ID)
		}
	}
	return out
}
