// Package render prints a task forest for terminals and exports it as YAML
// or JSON documents.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"todoTree/internal/handlers/dto"
	"todoTree/internal/hierarchy"
	"todoTree/internal/priority"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	ruby    = lipgloss.Color("#E0115F")
	amber   = lipgloss.Color("#FFBF00")
	emerald = lipgloss.Color("#50C878")
	dim     = lipgloss.Color("#666666")
)

type TextOptions struct {
	// MaxDepth limits how many levels are printed. Zero prints everything.
	MaxDepth      int
	HideCompleted bool
	Indent        string
}

type styles struct {
	levels map[priority.Level]lipgloss.Style
	muted  lipgloss.Style
	done   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		levels: map[priority.Level]lipgloss.Style{
			priority.LevelHigh:   r.NewStyle().Foreground(ruby).Bold(true),
			priority.LevelMedium: r.NewStyle().Foreground(amber),
			priority.LevelLow:    r.NewStyle().Foreground(emerald),
		},
		muted: r.NewStyle().Foreground(dim),
		done:  r.NewStyle().Foreground(dim).Strikethrough(true),
	}
}

// Text writes one line per task, children indented under their parent.
// Colors are dropped automatically when w is not a terminal.
func Text(w io.Writer, roots []*hierarchy.Node, opts TextOptions) error {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	st := newStyles(w)

	var b strings.Builder
	hierarchy.WalkForest(roots, func(n *hierarchy.Node, depth int) bool {
		if opts.HideCompleted && n.Completed {
			return false
		}

		indent := strings.Repeat(opts.Indent, depth)
		b.WriteString(indent)
		b.WriteString(line(n, st))
		b.WriteByte('\n')

		if opts.MaxDepth > 0 && depth+1 >= opts.MaxDepth && len(n.Children) > 0 {
			b.WriteString(indent + opts.Indent)
			b.WriteString(st.muted.Render(fmt.Sprintf("… %d more below", countBelow(n))))
			b.WriteByte('\n')
			return false
		}
		return true
	})

	if b.Len() == 0 {
		b.WriteString(st.muted.Render("no tasks"))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func line(n *hierarchy.Node, st styles) string {
	check := "[ ]"
	title := n.Title
	if n.Completed {
		check = "[x]"
		title = st.done.Render(title)
	}

	lvl := n.Level()
	badge := st.levels[lvl].Render(fmt.Sprintf("%-6s %.1f", strings.ToUpper(lvl.String()), n.Priority.Score))

	return fmt.Sprintf("%s %s  %s  %s", check, title, badge, st.muted.Render(dueLabel(n.Priority)))
}

func dueLabel(r priority.Result) string {
	if r.Unbounded() {
		return "no due date"
	}
	switch d := r.DaysRemaining; {
	case d == 0:
		return "due today"
	case d == 1:
		return "due tomorrow"
	case d == -1:
		return "1 day overdue"
	case d < 0:
		return fmt.Sprintf("%d days overdue", -d)
	default:
		return fmt.Sprintf("due in %d days", d)
	}
}

func countBelow(n *hierarchy.Node) int {
	count := -1
	hierarchy.WalkForest([]*hierarchy.Node{n}, func(*hierarchy.Node, int) bool {
		count++
		return true
	})
	return count
}

type document struct {
	Tasks []*dto.NodeResponse `json:"tasks" yaml:"tasks"`
}

func YAML(w io.Writer, roots []*hierarchy.Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Tasks: dto.FromForest(roots)}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func JSON(w io.Writer, roots []*hierarchy.Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Tasks: dto.FromForest(roots)}); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
