package util

import "unicode/utf8"

// Tail returns at most the last n bytes of s, cut at a rune boundary.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}

func AsPtr[T any](v T) *T {
	return &v
}
