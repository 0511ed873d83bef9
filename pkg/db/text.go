package db

import "unicode/utf8"

// TruncateText cuts s to at most max bytes without splitting a UTF-8 sequence,
// so the result is always valid for Postgres text columns.
func TruncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
