// Package subtitle turns narration text into timed SRT cues.
//
// There is no speech-timing signal: each sentence gets a share of the total
// narration duration proportional to its character count. The result is an
// approximation that drifts when the speaker's pace varies between
// sentences. Unit abbreviations count at their spoken length, so "5 km"
// weighs as "5 kilometer".
package subtitle

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Cue is one timed subtitle block. Times are seconds from the start of the
// narration.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Duration is End - Start.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// spokenForms maps unit abbreviations to the word a narrator says.
var spokenForms = map[string]string{
	"km":  "kilometer",
	"w":   "watt",
	"min": "minute",
	"sec": "second",
	"hr":  "hour",
}

var abbreviation = regexp.MustCompile(`(?i)\b(km|w|min|sec|hr)\b`)

// Spoken expands unit abbreviations in text, matched case-insensitively as
// whole words. "3.5km" is left alone.
func Spoken(text string) string {
	return abbreviation.ReplaceAllStringFunc(text, func(m string) string {
		return spokenForms[strings.ToLower(m)]
	})
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Split breaks text into sentence units. A unit ends after a run of
// terminal punctuation (. ! ?) that is followed by whitespace or the end of
// the text, so "3.5" and "?!" stay intact. A trailing fragment without
// terminal punctuation becomes the last unit. Whitespace inside a unit is
// collapsed to single spaces.
func Split(text string) []string {
	var (
		units []string
		cur   strings.Builder
	)
	flush := func() {
		if u := strings.Join(strings.Fields(cur.String()), " "); u != "" {
			units = append(units, u)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if !isTerminal(r) {
			continue
		}
		for i+1 < len(runes) && isTerminal(runes[i+1]) {
			i++
			cur.WriteRune(runes[i])
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()
	return units
}

// Allocate splits text and assigns each unit an interval of
// total * len(unit) / sum(len(units)), where len is the rune count of the
// unit's Spoken form. Cue text keeps the abbreviations as written. Cues start at 0, end at total and are
// contiguous: every boundary is computed from the same running character
// count, so cue[i].End == cue[i+1].Start exactly. No cues are produced for
// empty text or a non-positive total.
func Allocate(text string, total float64) []Cue {
	if total <= 0 {
		return nil
	}

	units := Split(text)
	lengths := make([]int, len(units))
	sum := 0
	for i, u := range units {
		lengths[i] = utf8.RuneCountInString(Spoken(u))
		sum += lengths[i]
	}
	if sum == 0 {
		return nil
	}

	cues := make([]Cue, 0, len(units))
	cum := 0
	start := 0.0
	for i, u := range units {
		cum += lengths[i]
		end := total * float64(cum) / float64(sum)
		if i == len(units)-1 {
			end = total
		}
		cues = append(cues, Cue{Index: i + 1, Start: start, End: end, Text: u})
		start = end
	}
	return cues
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, rounded to the nearest
// millisecond.
func FormatTimestamp(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// RenderSRT renders cues as SRT blocks: index, time range, text, blank line.
func RenderSRT(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", c.Index, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text)
	}
	return b.String()
}

// WriteSRT writes the rendered cues to path.
func WriteSRT(path string, cues []Cue) error {
	return os.WriteFile(path, []byte(RenderSRT(cues)), 0o644)
}
