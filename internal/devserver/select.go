package devserver

import (
	"sort"
	"strconv"
	"time"

	"turing-log-tail/internal/model"
)

// Select applies the logs contract to records: ascending order, strictly
// newer than since_time, then either the last tail_lines or the first
// head_lines records.
func Select(records []model.LogRecord, q model.LogsQuery) []model.LogRecord {
	out := make([]model.LogRecord, 0, len(records))
	since, sinceOK := parseTime(q.SinceTime)
	for _, r := range records {
		if q.SinceTime != "" && q.TailLines == "" && !after(r.Timestamp, q.SinceTime, since, sinceOK) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := parseTime(out[i].Timestamp)
		tj, okJ := parseTime(out[j].Timestamp)
		if okI && okJ {
			return ti.Before(tj)
		}
		return out[i].Timestamp < out[j].Timestamp
	})

	if n, err := strconv.Atoi(q.TailLines); err == nil && n >= 0 {
		if len(out) > n {
			out = out[len(out)-n:]
		}
		return out
	}
	if q.HeadLines > 0 && len(out) > q.HeadLines {
		out = out[:q.HeadLines]
	}
	return out
}

func after(ts, sinceRaw string, since time.Time, sinceOK bool) bool {
	t, ok := parseTime(ts)
	if ok && sinceOK {
		return t.After(since)
	}
	return ts > sinceRaw
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, err == nil
}
