package devserver

import (
	"testing"

	"turing-log-tail/internal/model"
)

func recs(ts ...string) []model.LogRecord {
	out := make([]model.LogRecord, len(ts))
	for i, t := range ts {
		out[i] = model.LogRecord{Timestamp: t, TextPayload: t}
	}
	return out
}

func timestamps(rs []model.LogRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Timestamp
	}
	return out
}

func TestSelect(t *testing.T) {
	all := recs(
		"2024-01-01T00:00:03Z",
		"2024-01-01T00:00:01Z",
		"2024-01-01T00:00:04Z",
		"2024-01-01T00:00:02Z",
	)
	tests := []struct {
		name string
		q    model.LogsQuery
		want []string
	}{
		{
			name: "tail keeps the last records in order",
			q:    model.LogsQuery{TailLines: "2"},
			want: []string{"2024-01-01T00:00:03Z", "2024-01-01T00:00:04Z"},
		},
		{
			name: "tail larger than available",
			q:    model.LogsQuery{TailLines: "100"},
			want: []string{"2024-01-01T00:00:01Z", "2024-01-01T00:00:02Z", "2024-01-01T00:00:03Z", "2024-01-01T00:00:04Z"},
		},
		{
			name: "head from start",
			q:    model.LogsQuery{HeadLines: 1},
			want: []string{"2024-01-01T00:00:01Z"},
		},
		{
			name: "since is exclusive",
			q:    model.LogsQuery{HeadLines: 500, SinceTime: "2024-01-01T00:00:02Z"},
			want: []string{"2024-01-01T00:00:03Z", "2024-01-01T00:00:04Z"},
		},
		{
			name: "since with head limit",
			q:    model.LogsQuery{HeadLines: 1, SinceTime: "2024-01-01T00:00:01Z"},
			want: []string{"2024-01-01T00:00:02Z"},
		},
		{
			name: "nothing newer",
			q:    model.LogsQuery{HeadLines: 500, SinceTime: "2024-01-01T00:00:04Z"},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timestamps(Select(all, tt.q))
			if len(got) != len(tt.want) {
				t.Fatalf("Select() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Select() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSelectMixedPrecision(t *testing.T) {
	in := recs("2024-01-01T00:00:01.5Z", "2024-01-01T00:00:01Z")
	got := timestamps(Select(in, model.LogsQuery{HeadLines: 10, SinceTime: "2024-01-01T00:00:01Z"}))
	if len(got) != 1 || got[0] != "2024-01-01T00:00:01.5Z" {
		t.Errorf("Select() = %v", got)
	}
}
