package utils

import (
	"strings"
	"time"
)

func BoolPtr(b bool) *bool {
	return &b
}

func IntPtr(i int) *int {
	return &i
}

func StringPtr(s string) *string {
	return &s
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func PtrBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func PtrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func PtrTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}

	return *t
}

// TrimmedPtr returns nil for empty-after-trim strings so optional columns
// store NULL instead of "".
func TrimmedPtr(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
