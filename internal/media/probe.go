// Package media inspects local media files.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFProbe reads media durations with the ffprobe binary.
type FFProbe struct {
	bin string
}

// NewFFProbe returns a probe using bin, or "ffprobe" when bin is empty.
func NewFFProbe(bin string) *FFProbe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{bin: bin}
}

// Duration returns the duration of path in seconds. Any failure, including a
// missing or unparsable duration, yields 0; callers treat a non-positive
// duration as unusable.
func (p *FFProbe) Duration(ctx context.Context, path string) float64 {
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	d, err := ParseDuration(out)
	if err != nil {
		return 0
	}
	return d
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseDuration extracts format.duration from ffprobe JSON output.
func ParseDuration(data []byte) (float64, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	s := strings.TrimSpace(raw.Format.Duration)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	return d, nil
}
