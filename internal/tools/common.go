package tools

import "unicode/utf8"

const maxOutputBytes = 4_000

// truncate caps tool output so one verbose provider cannot crowd the prompt.
// The cut never splits a UTF-8 sequence.
func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	cut := maxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
