package utils

import (
	"fmt"
	"strings"
)

func ShortenString(s string, l int) string {
	if len(s) > l && l != 0 {
		return fmt.Sprintf("%s...", s[:l])
	}
	return s
}

// SanitizeName maps s onto a string that is safe to use as part of a
// file name. Spaces and path separators become underscores, anything
// else outside [a-zA-Z0-9._-] is dropped.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '\\' || r == ':':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
