package ffmpeg

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
)

const stderrTailBytes = 1500

// Executor runs stages with the ffmpeg binary, one at a time per caller.
type Executor struct {
	bin     string
	timeout time.Duration
	log     *logger.Logger
}

// NewExecutor returns an executor. A zero timeout disables the per-stage
// deadline.
func NewExecutor(bin string, timeout time.Duration, log *logger.Logger) *Executor {
	if bin == "" {
		bin = "ffmpeg"
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Executor{bin: bin, timeout: timeout, log: log.WithComponent("ffmpeg")}
}

// Run blocks until the stage exits. A non-zero exit is STAGE_FAILED with the
// tail of stderr attached; hitting the stage deadline is TIMEOUT.
func (e *Executor) Run(ctx context.Context, st Stage) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.bin, st.Args...)
	cmd.Dir = st.Dir
	cmd.WaitDelay = 5 * time.Second

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	log := e.log.FromContext(ctx).WithStage(st.Name)
	log.Debug("running ffmpeg", "args", strings.Join(st.Args, " "))
	start := time.Now()

	err := cmd.Run()
	if err == nil {
		log.Debug("ffmpeg finished", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Timeout("ffmpeg." + st.Name).WithField("stage", st.Name)
	}

	tail := Tail(stderrBuf.String(), stderrTailBytes)
	cause := err
	if tail != "" {
		cause = fmt.Errorf("%w: %s", err, tail)
	}
	return errors.StageFailed(st.Name, cause).WithField("reason", Classify(tail))
}

// Tail returns at most n trailing bytes of s, trimmed, starting on a line
// boundary when possible.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
