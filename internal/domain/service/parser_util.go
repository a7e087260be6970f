package service

import (
	"encoding/json"
	"regexp"
	"strconv"
)

var stagesRe = regexp.MustCompile(`(\d+)\s*stages`)

func atoiSafe(s string) (int, error) {
	return strconv.Atoi(s)
}

// extractJSONStringField pulls one string field out of a tool result's
// serialized JSON payload without requiring callers to know the full
// result shape.
func extractJSONStringField(resultJSON, field string) string {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(resultJSON), &m); err != nil {
		return ""
	}
	if v, ok := m[field].(string); ok {
		return v
	}
	return ""
}
