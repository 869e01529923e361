package workflow

import "strings"

// StatusAll is the filter value that matches every status.
const StatusAll = "all"

// MatchesStatus reports whether status passes the wanted filter. Empty or "all" matches everything.
func MatchesStatus[S ~string](wanted, status S) bool {
	trimmed := strings.TrimSpace(string(wanted))
	if trimmed == "" || strings.EqualFold(trimmed, StatusAll) {
		return true
	}
	return string(status) == trimmed
}

// MatchesSearch reports whether term appears, case-insensitively, in any of fields.
// An empty term matches everything.
func MatchesSearch(term string, fields ...string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
