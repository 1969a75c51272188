// Package ffmpeg describes and runs the ffmpeg invocations of the video
// pipeline. Builders are pure: they turn file paths and job parameters into a
// Stage, and only the Executor touches the process table.
package ffmpeg

import (
	"fmt"
	"math"
	"strconv"

	"montage/internal/jobs"
)

// Fixed encoding parameters shared by every job.
const (
	FrameRate        = 30
	AudioSampleRate  = 44100
	MusicVolume      = 0.15
	MaxFade          = 2.0
	MinSlideDuration = 0.5
	LogoWidth        = 150
	LogoMargin       = 10
	SubtitleStyle    = "FontName=Arial,FontSize=24,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,BorderStyle=1,Outline=2"
)

// Stage is one ffmpeg invocation. Args excludes the binary. Dir, when set,
// is the working directory of the process.
type Stage struct {
	Name   string
	Args   []string
	Output string
	Dir    string
}

func preamble() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

func stage(name, output string, args ...string) Stage {
	return Stage{
		Name:   name,
		Args:   append(preamble(), append(args, output)...),
		Output: output,
	}
}

// SlideDuration is the on-screen time of each image: an equal share of the
// narration, never shorter than MinSlideDuration.
func SlideDuration(narration float64, images int) float64 {
	if images < 1 {
		images = 1
	}
	return math.Max(narration/float64(images), MinSlideDuration)
}

// FadeLength is min(MaxFade, duration/4), so the fade-in and fade-out never
// cover more than half of the track.
func FadeLength(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return math.Min(MaxFade, duration/4)
}

// LogoOverlay returns the overlay x:y expression for a corner position.
// Unknown positions fall back to top-right.
func LogoOverlay(pos jobs.LogoPosition) string {
	m := strconv.Itoa(LogoMargin)
	left, top := m, m
	right := "main_w-overlay_w-" + m
	bottom := "main_h-overlay_h-" + m

	switch pos {
	case jobs.LogoTopLeft:
		return left + ":" + top
	case jobs.LogoBottomLeft:
		return left + ":" + bottom
	case jobs.LogoBottomRight:
		return right + ":" + bottom
	default:
		return right + ":" + top
	}
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// NormalizeImage re-encodes a downloaded image to a quality-controlled JPEG.
func NormalizeImage(raw, out string) Stage {
	return stage("normalize-image", out,
		"-i", raw,
		"-frames:v", "1",
		"-q:v", "2",
	)
}

// NormalizeAudio converts narration to 44.1kHz stereo 16-bit PCM.
func NormalizeAudio(raw, out string) Stage {
	return stage("normalize-audio", out,
		"-i", raw,
		"-vn",
		"-ar", strconv.Itoa(AudioSampleRate),
		"-ac", "2",
		"-c:a", "pcm_s16le",
	)
}

// MixFilter builds the filter graph for MixBackground. Voice and music fade
// in and out independently; music is attenuated and the narration governs
// the mixed length.
func MixFilter(duration float64) string {
	fade := FadeLength(duration)
	fades := fmt.Sprintf("afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s",
		secs(fade), secs(duration-fade), secs(fade))

	return fmt.Sprintf("[0:a]%s[voice];[1:a]volume=%.2f,%s[music];"+
		"[voice][music]amix=inputs=2:duration=first:dropout_transition=0[aout]",
		fades, MusicVolume, fades)
}

// MixBackground mixes narration with background music.
func MixBackground(voice, music, out string, duration float64) Stage {
	return stage("mix-bgm", out,
		"-i", voice,
		"-i", music,
		"-filter_complex", MixFilter(duration),
		"-map", "[aout]",
		"-t", secs(duration),
		"-ar", strconv.Itoa(AudioSampleRate),
		"-ac", "2",
		"-c:a", "pcm_s16le",
	)
}

// ScaleFilter fits a frame inside width x height, letterboxing the rest.
func ScaleFilter(width, height int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p",
		width, height, width, height, FrameRate)
}

// ComposeSlideshow encodes the images listed in a concat file into a silent
// video at the target resolution.
func ComposeSlideshow(list, out string, width, height int) Stage {
	return stage("compose-image-video", out,
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-vf", ScaleFilter(width, height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(FrameRate),
		"-an",
	)
}

// PrependIntro concatenates the intro and the slideshow listed in list
// without re-encoding.
func PrependIntro(list, out string) Stage {
	return stage("prepend-intro", out,
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
	)
}

// MergeAudioVideo muxes the video with the prepared audio, cut to the
// shorter stream.
func MergeAudioVideo(video, audio, out string) Stage {
	return stage("merge-audio-video", out,
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
	)
}

// OverlayFilter scales the logo to LogoWidth and places it at pos.
func OverlayFilter(pos jobs.LogoPosition) string {
	return fmt.Sprintf("[1:v]scale=%d:-1[logo];[0:v][logo]overlay=%s", LogoWidth, LogoOverlay(pos))
}

// OverlayLogo composites the logo over every frame.
func OverlayLogo(video, logo, out string, pos jobs.LogoPosition) Stage {
	return stage("overlay-logo", out,
		"-i", video,
		"-i", logo,
		"-filter_complex", OverlayFilter(pos),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
	)
}

// SubtitleFilter burns srtName, resolved relative to the stage directory.
func SubtitleFilter(srtName string) string {
	return fmt.Sprintf("subtitles=%s:force_style='%s'", srtName, SubtitleStyle)
}

// BurnSubtitles renders the cues in dir/srtName into the picture.
func BurnSubtitles(video, srtName, out, dir string) Stage {
	st := stage("burn-subtitles", out,
		"-i", video,
		"-vf", SubtitleFilter(srtName),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
	)
	st.Dir = dir
	return st
}
