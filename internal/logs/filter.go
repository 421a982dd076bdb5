package logs

import (
	"encoding/json"
	"strconv"
	"strings"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects log lines. Zero values match everything. Lines that are not
// JSON (console format) only honour Contains.
type Filter struct {
	MinLevel  string
	Component string
	WineID    int64
	Contains  string
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.Contains != "" && !strings.Contains(line, f.Contains) {
		return false
	}
	if f.MinLevel == "" && f.Component == "" && f.WineID == 0 {
		return true
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return f.MinLevel == "" && f.Component == "" && f.WineID == 0
	}

	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		level, _ := entry["level"].(string)
		got, known := levelRank[strings.ToLower(level)]
		if ok && known && got < want {
			return false
		}
	}
	if f.Component != "" {
		if component, _ := entry["component"].(string); !strings.EqualFold(component, f.Component) {
			return false
		}
	}
	if f.WineID != 0 && !matchesID(entry["wine_id"], f.WineID) {
		return false
	}
	return true
}

func matchesID(raw any, want int64) bool {
	switch v := raw.(type) {
	case float64:
		return int64(v) == want
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return err == nil && id == want
	}
	return false
}
