package ffmpeg

import (
	"fmt"
	"os"
	"strings"
)

// ConcatEntry is one line of a concat demuxer list. A zero Duration omits
// the duration directive.
type ConcatEntry struct {
	Path     string
	Duration float64
}

func quote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

// RenderConcatList renders entries in the concat demuxer format. When the
// entries carry durations the last file is repeated so the demuxer applies
// the final duration.
func RenderConcatList(entries []ConcatEntry) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "file %s\n", quote(e.Path))
		if e.Duration > 0 {
			fmt.Fprintf(&b, "duration %s\n", secs(e.Duration))
		}
	}
	if n := len(entries); n > 0 && entries[n-1].Duration > 0 {
		fmt.Fprintf(&b, "file %s\n", quote(entries[n-1].Path))
	}
	return b.String()
}

// SlideshowEntries gives every image the same display duration.
func SlideshowEntries(images []string, slide float64) []ConcatEntry {
	entries := make([]ConcatEntry, len(images))
	for i, img := range images {
		entries[i] = ConcatEntry{Path: img, Duration: slide}
	}
	return entries
}

// WriteConcatList writes the rendered list to path.
func WriteConcatList(path string, entries []ConcatEntry) error {
	return os.WriteFile(path, []byte(RenderConcatList(entries)), 0o644)
}
