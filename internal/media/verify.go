package media

import (
	"fmt"
	"os/exec"

	vidio "github.com/AlexEidt/Vidio"

	"montage/internal/pkg/errors"
)

// VidioVerifier opens a finished video and checks its frame size. Vidio
// always runs the binaries named "ffmpeg" and "ffprobe" from PATH, whatever
// FFMPEG_BIN and FFPROBE_BIN say.
type VidioVerifier struct{}

// NewVidioVerifier fails when the binaries Vidio shells out to are not on
// PATH, so callers can disable verification instead of failing every job.
func NewVidioVerifier() (VidioVerifier, error) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return VidioVerifier{}, errors.Unavailable(bin, err).WithField("binary", bin)
		}
	}
	return VidioVerifier{}, nil
}

// Verify fails when path cannot be opened as a video, has a different frame
// size, or has no duration.
func (VidioVerifier) Verify(path string, width, height int) error {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeStage, "media.verify", "output is not a readable video")
	}
	defer video.Close()

	return CheckDimensions(video.Width(), video.Height(), video.Duration(), width, height)
}

// CheckDimensions compares probed output properties with the target frame.
func CheckDimensions(gotW, gotH int, duration float64, wantW, wantH int) error {
	if gotW != wantW || gotH != wantH {
		return errors.New(errors.CodeStage,
			fmt.Sprintf("output is %dx%d, expected %dx%d", gotW, gotH, wantW, wantH)).
			WithField("width", gotW).
			WithField("height", gotH)
	}
	if duration <= 0 {
		return errors.New(errors.CodeStage, "output has no duration")
	}
	return nil
}
