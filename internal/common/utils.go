package common

import "strings"

// FirstNonEmpty returns the first of values that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// JoinNonEmpty joins the non-blank values with sep.
func JoinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
