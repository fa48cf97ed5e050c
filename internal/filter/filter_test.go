package filter_test

import (
	"net/url"
	"testing"
	"time"
	"todoTree/internal/date"
	"todoTree/internal/filter"
	"todoTree/internal/hierarchy"
	"todoTree/internal/models/task"
	"todoTree/internal/priority"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = date.New(2026, time.October, 16)

func fixture() []*hierarchy.Node {
	mk := func(title string, weight, offset int, dated, done bool) task.Task {
		tk := task.Task{ID: uuid.New(), Title: title, Weight: weight, Completed: done}
		if dated {
			d := today.AddDays(offset)
			tk.DueDate = &d
		}
		return tk
	}

	tasks := []task.Task{
		mk("high-today", 5, 0, true, false),    // 5 high
		mk("medium-done", 3, 2, true, true),    // 1.5 medium
		mk("low-later", 1, 10, true, false),    // 0.1 low
		mk("undated", 4, 0, false, false),      // 0 low
		mk("medium-week", 2, 2, true, false),   // 1 medium
		mk("default-weight", 0, 1, true, false), // 3 high
	}
	return hierarchy.Build(tasks, today).Flat
}

func names(nodes []*hierarchy.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Title
	}
	return out
}

func TestApply_DefaultKeepsEverything(t *testing.T) {
	nodes := fixture()
	assert.Equal(t, names(nodes), names(filter.Apply(nodes, filter.Default())))
}

func TestApply(t *testing.T) {
	from := today.AddDays(1)
	to := today.AddDays(2)

	tests := []struct {
		name   string
		modify func(f *filter.Filters)
		want   []string
	}{
		{
			name:   "hide completed",
			modify: func(f *filter.Filters) { f.ShowCompleted = false },
			want:   []string{"high-today", "default-weight", "medium-week", "low-later", "undated"},
		},
		{
			name:   "only high",
			modify: func(f *filter.Filters) { f.Levels = []priority.Level{priority.LevelHigh} },
			want:   []string{"high-today", "default-weight"},
		},
		{
			name:   "empty level set matches nothing",
			modify: func(f *filter.Filters) { f.Levels = nil },
			want:   []string{},
		},
		{
			name:   "date range keeps undated",
			modify: func(f *filter.Filters) { f.DueFrom, f.DueTo = &from, &to },
			want:   []string{"default-weight", "medium-done", "medium-week", "undated"},
		},
		{
			name: "date range excluding undated",
			modify: func(f *filter.Filters) {
				f.DueFrom, f.DueTo = &from, &to
				f.ExcludeUndated = true
			},
			want: []string{"default-weight", "medium-done", "medium-week"},
		},
		{
			name:   "open-ended lower bound",
			modify: func(f *filter.Filters) { f.DueFrom = &to },
			want:   []string{"medium-done", "medium-week", "low-later", "undated"},
		},
		{
			name:   "weight range uses default weight for missing",
			modify: func(f *filter.Filters) { f.WeightMin, f.WeightMax = 3, 4 },
			want:   []string{"default-weight", "medium-done", "undated"},
		},
		{
			name: "all predicates ANDed",
			modify: func(f *filter.Filters) {
				f.ShowCompleted = false
				f.Levels = []priority.Level{priority.LevelMedium}
				f.WeightMin = 2
			},
			want: []string{"medium-week"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := filter.Default()
			tt.modify(&f)
			assert.Equal(t, tt.want, names(filter.Apply(fixture(), f)))
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	from := today
	f := filter.Default()
	f.ShowCompleted = false
	f.Levels = []priority.Level{priority.LevelHigh, priority.LevelLow}
	f.DueFrom = &from
	f.WeightMin = 2

	once := filter.Apply(fixture(), f)
	twice := filter.Apply(once, f)

	assert.Equal(t, names(once), names(twice))
}

func TestParse(t *testing.T) {
	q := url.Values{}
	q.Set("show_completed", "false")
	q.Set("levels", "high, low,high")
	q.Set("due_from", "2026-10-01")
	q.Set("due_to", "2026-10-31")
	q.Set("exclude_undated", "true")
	q.Set("weight_min", "2")
	q.Set("weight_max", "4")

	f, err := filter.Parse(q)
	require.NoError(t, err)

	assert.False(t, f.ShowCompleted)
	assert.Equal(t, []priority.Level{priority.LevelHigh, priority.LevelLow}, f.Levels)
	assert.Equal(t, "2026-10-01", f.DueFrom.String())
	assert.Equal(t, "2026-10-31", f.DueTo.String())
	assert.True(t, f.ExcludeUndated)
	assert.Equal(t, 2, f.WeightMin)
	assert.Equal(t, 4, f.WeightMax)
}

func TestParse_Defaults(t *testing.T) {
	f, err := filter.Parse(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, filter.Default(), f)
}

func TestParse_EmptyLevels(t *testing.T) {
	f, err := filter.Parse(url.Values{"levels": {""}})
	require.NoError(t, err)
	assert.Empty(t, f.Levels)
}

func TestParse_Errors(t *testing.T) {
	bad := []url.Values{
		{"show_completed": {"maybe"}},
		{"levels": {"urgent"}},
		{"due_from": {"yesterday"}},
		{"weight_min": {"0"}},
		{"weight_max": {"x"}},
		{"weight_min": {"4"}, "weight_max": {"2"}},
		{"exclude_undated": {"nope"}},
	}

	for _, q := range bad {
		_, err := filter.Parse(q)
		assert.Error(t, err, q.Encode())
	}
}
