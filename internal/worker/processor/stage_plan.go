package processor

import (
	"context"

	"montage/internal/ffmpeg"
	"montage/internal/jobs"
	"montage/internal/pkg/errors"
	"montage/internal/subtitle"
)

// run carries the artifacts of one job from stage to stage.
type run struct {
	id  string
	req jobs.Request
	ws  *Workspace

	width, height int

	images   []string
	duration float64
	audio    string
	video    string
}

func newRun(id string, req jobs.Request, ws *Workspace) *run {
	w, h := req.AspectRatio.Resolution()
	return &run{id: id, req: req, ws: ws, width: w, height: h}
}

type step struct {
	stage jobs.Stage
	run   func(ctx context.Context, r *run) error
}

// plan lists the stages for req in their fixed order. Optional stages are
// included only when their input is present.
func (p *Processor) plan(req jobs.Request) []step {
	steps := []step{
		{jobs.StageFetchingImages, p.prepareImages},
		{jobs.StageFetchingAudio, p.prepareNarration},
	}
	if req.HasBGM() {
		steps = append(steps, step{jobs.StageMixingBGM, p.mixBackground})
	}
	steps = append(steps, step{jobs.StageComposingVideo, p.composeSlideshow})
	if req.HasIntro() {
		steps = append(steps, step{jobs.StagePrependingIntro, p.prependIntro})
	}
	steps = append(steps, step{jobs.StageMergingAudio, p.mergeAudioVideo})
	if req.HasLogo() {
		steps = append(steps, step{jobs.StageOverlayingLogo, p.overlayLogo})
	}
	if req.HasSubtitles() {
		steps = append(steps, step{jobs.StageBurningSubtitles, p.burnSubtitles})
	}
	return steps
}

func (p *Processor) mixBackground(ctx context.Context, r *run) error {
	music, err := p.fetchAsset(ctx, r, r.req.BGMURL, "bgm_raw", audioExt(r.req.BGMURL))
	if err != nil {
		return errors.Wrap(err, "processor.bgm", "background music unavailable")
	}

	out := r.ws.Path("audio_mixed.wav")
	if err := p.runner.Run(ctx, ffmpeg.MixBackground(r.audio, music, out, r.duration)); err != nil {
		return err
	}
	r.audio = out
	return nil
}

func (p *Processor) composeSlideshow(ctx context.Context, r *run) error {
	slide := ffmpeg.SlideDuration(r.duration, len(r.images))
	list := r.ws.Path("images.txt")
	if err := ffmpeg.WriteConcatList(list, ffmpeg.SlideshowEntries(r.images, slide)); err != nil {
		return errors.Filesystem("processor.slideshow", err)
	}

	out := r.ws.Path("slideshow.mp4")
	if err := p.runner.Run(ctx, ffmpeg.ComposeSlideshow(list, out, r.width, r.height)); err != nil {
		return err
	}
	r.video = out
	return nil
}

func (p *Processor) prependIntro(ctx context.Context, r *run) error {
	intro, err := p.fetchAsset(ctx, r, r.req.IntroURL, "intro_raw", videoExt(r.req.IntroURL))
	if err != nil {
		return errors.Wrap(err, "processor.intro", "intro clip unavailable")
	}

	list := r.ws.Path("intro.txt")
	entries := []ffmpeg.ConcatEntry{{Path: intro}, {Path: r.video}}
	if err := ffmpeg.WriteConcatList(list, entries); err != nil {
		return errors.Filesystem("processor.intro", err)
	}

	out := r.ws.Path("with_intro.mp4")
	if err := p.runner.Run(ctx, ffmpeg.PrependIntro(list, out)); err != nil {
		return err
	}
	r.video = out
	return nil
}

func (p *Processor) mergeAudioVideo(ctx context.Context, r *run) error {
	out := r.ws.Path("merged.mp4")
	if err := p.runner.Run(ctx, ffmpeg.MergeAudioVideo(r.video, r.audio, out)); err != nil {
		return err
	}
	r.video = out
	return nil
}

func (p *Processor) overlayLogo(ctx context.Context, r *run) error {
	logo, err := p.fetchAsset(ctx, r, r.req.LogoURL, "logo_raw", imageExt(r.req.LogoURL))
	if err != nil {
		return errors.Wrap(err, "processor.logo", "logo unavailable")
	}

	out := r.ws.Path("with_logo.mp4")
	if err := p.runner.Run(ctx, ffmpeg.OverlayLogo(r.video, logo, out, r.req.LogoPosition)); err != nil {
		return err
	}
	r.video = out
	return nil
}

// burnSubtitles is a no-op when the text has no usable characters.
func (p *Processor) burnSubtitles(ctx context.Context, r *run) error {
	cues := subtitle.Allocate(r.req.SubtitleText, r.duration)
	if len(cues) == 0 {
		return nil
	}

	const srtName = "subs.srt"
	if err := subtitle.WriteSRT(r.ws.Path(srtName), cues); err != nil {
		return errors.Filesystem("processor.subtitles", err)
	}

	out := r.ws.Path("subtitled.mp4")
	if err := p.runner.Run(ctx, ffmpeg.BurnSubtitles(r.video, srtName, out, r.ws.Dir)); err != nil {
		return err
	}
	r.video = out
	return nil
}
