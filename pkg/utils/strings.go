package utils

import "unicode/utf8"

// TruncateRunes shortens s to at most n runes, appending "..." when it cut anything.
// It never splits a multi-byte rune.
func TruncateRunes(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := 0
	for i := 0; i < n; i++ {
		_, size := utf8.DecodeRuneInString(s[cut:])
		cut += size
	}
	return s[:cut] + "..."
}
