package processor

import (
	"strings"
	"unicode/utf8"
)

// ObjectKey is the storage key of a job's finished video.
func ObjectKey(jobID string) string {
	return SanitizeFilename(jobID) + ".mp4"
}

// SanitizeFilename strips path separators and traversal from s.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "job"
	}
	return s
}

// truncateMessage cuts s to at most n bytes without splitting a rune.
func truncateMessage(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
