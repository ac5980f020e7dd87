package model

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// LogRecord is a log record as served by the logs endpoint. Records are
// returned in ascending chronological order.
type LogRecord struct {
	Timestamp   string          `json:"timestamp"`
	PodName     string          `json:"pod_name"`
	TextPayload string          `json:"text_payload,omitempty"`
	JSONPayload json.RawMessage `json:"json_payload,omitempty"`
}

// LogsQuery holds the query parameters of a single logs request.
//
// Either TailLines is set (initial "last N records" request) or HeadLines is
// set, optionally with SinceTime (incremental request after the cursor).
type LogsQuery struct {
	ComponentType string
	TailLines     string
	HeadLines     int
	SinceTime     string
}

// Values encodes the query as URL parameters.
func (q LogsQuery) Values() url.Values {
	v := url.Values{}
	if q.ComponentType != "" {
		v.Set("component_type", q.ComponentType)
	}
	if q.TailLines != "" {
		v.Set("tail_lines", q.TailLines)
		return v
	}
	if q.HeadLines > 0 {
		v.Set("head_lines", strconv.Itoa(q.HeadLines))
	}
	if q.SinceTime != "" {
		v.Set("since_time", q.SinceTime)
	}
	return v
}

// ParseLogsQuery is the inverse of Values. Malformed numbers are treated as unset.
func ParseLogsQuery(v url.Values) LogsQuery {
	q := LogsQuery{
		ComponentType: v.Get("component_type"),
		TailLines:     v.Get("tail_lines"),
		SinceTime:     v.Get("since_time"),
	}
	if n, err := strconv.Atoi(v.Get("head_lines")); err == nil && n > 0 {
		q.HeadLines = n
	}
	return q
}
