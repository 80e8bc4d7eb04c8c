package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const topicPrefix = "realtime:"

// Filter is a parsed "<column>=eq.<value>" row filter. The zero value
// matches every row.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter accepts "" or "<column>=eq.<value>"; other operators are rejected.
func ParseFilter(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Filter{}, nil
	}

	column, rest, ok := strings.Cut(raw, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok || value == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}
	if op != "eq" {
		return Filter{}, fmt.Errorf("%w: operator %q", ErrUnsupportedFilter, op)
	}

	return Filter{Column: column, Value: value}, nil
}

func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches reports whether the row's column equals the filter value.
func (f Filter) Matches(row json.RawMessage) bool {
	if f.Column == "" {
		return true
	}
	cols, err := decodeRow(row)
	if err != nil {
		return false
	}
	v, ok := cols[f.Column]
	if !ok {
		return false
	}
	return columnString(v) == f.Value
}

// Topic is the transport topic a binding listens on.
func Topic(table string, f Filter) string {
	if f.Column == "" {
		return topicPrefix + table
	}
	return topicPrefix + table + ":" + f.String()
}

// TopicsForRow lists the table topic plus one topic per partition column
// present in the row.
func TopicsForRow(table string, row json.RawMessage, partitions []string) []string {
	topics := []string{Topic(table, Filter{})}
	if len(partitions) == 0 {
		return topics
	}
	cols, err := decodeRow(row)
	if err != nil {
		return topics
	}
	for _, col := range partitions {
		v, ok := cols[col]
		if !ok || v == nil {
			continue
		}
		topics = append(topics, Topic(table, Filter{Column: col, Value: columnString(v)}))
	}
	return topics
}

func decodeRow(row json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(row))
	dec.UseNumber()
	var cols map[string]any
	if err := dec.Decode(&cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func columnString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
