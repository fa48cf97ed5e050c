package date_test

import (
	"encoding/json"
	"testing"
	"time"
	"todoTree/internal/date"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    date.Date
		wantErr bool
	}{
		{name: "calendar date", input: "2026-10-16", want: date.New(2026, time.October, 16)},
		{name: "padded", input: " 2026-01-02 ", want: date.New(2026, time.January, 2)},
		{name: "rfc3339 keeps own offset", input: "2026-03-01T23:30:00-05:00", want: date.New(2026, time.March, 1)},
		{name: "garbage", input: "tomorrow", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := date.Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDaysUntil(t *testing.T) {
	today := date.New(2026, time.October, 16)

	assert.Equal(t, 0, today.DaysUntil(today))
	assert.Equal(t, 4, today.DaysUntil(today.AddDays(4)))
	assert.Equal(t, -1, today.DaysUntil(today.AddDays(-1)))
	// crosses the end of daylight saving time in most northern zones
	assert.Equal(t, 30, today.DaysUntil(date.New(2026, time.November, 15)))
}

func TestOf_UsesLocation(t *testing.T) {
	instant := time.Date(2026, time.October, 16, 2, 0, 0, 0, time.UTC)
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata not available")
	}

	assert.Equal(t, "2026-10-16", date.Of(instant, time.UTC).String())
	assert.Equal(t, "2026-10-15", date.Of(instant, la).String())
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Due *date.Date `json:"due_date"`
	}

	out, err := json.Marshal(payload{Due: date.Ptr(date.New(2026, time.May, 7))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due_date":"2026-05-07"}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"due_date":null}`), &in))
	assert.Nil(t, in.Due)

	require.NoError(t, json.Unmarshal([]byte(`{"due_date":"2026-05-08"}`), &in))
	require.NotNil(t, in.Due)
	assert.Equal(t, "2026-05-08", in.Due.String())

	assert.Error(t, json.Unmarshal([]byte(`{"due_date":"05/08/2026"}`), &in))
}

func TestDate_YAML(t *testing.T) {
	type doc struct {
		Due date.Date `yaml:"due"`
	}

	out, err := yaml.Marshal(doc{Due: date.New(2026, time.July, 1)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "2026-07-01")

	var in doc
	require.NoError(t, yaml.Unmarshal(out, &in))
	assert.Equal(t, "2026-07-01", in.Due.String())
}
