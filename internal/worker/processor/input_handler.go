package processor

import (
	"context"
	"fmt"

	"montage/internal/fetch"
	"montage/internal/ffmpeg"
	"montage/internal/pkg/errors"
)

func imageExt(url string) string { return fetch.ExtFromURL(url, fetch.ImageExts, ".jpg") }
func audioExt(url string) string { return fetch.ExtFromURL(url, fetch.AudioExts, ".mp3") }
func videoExt(url string) string { return fetch.ExtFromURL(url, fetch.VideoExts, ".mp4") }

// fetchAsset downloads url into the working directory as name+ext.
func (p *Processor) fetchAsset(ctx context.Context, r *run, url, name, ext string) (string, error) {
	dest := r.ws.Path(name + ext)
	if err := p.fetcher.Fetch(ctx, url, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// prepareImages downloads every image and re-encodes it to JPEG, in order.
func (p *Processor) prepareImages(ctx context.Context, r *run) error {
	r.images = make([]string, 0, len(r.req.ImageURLs))
	for i, u := range r.req.ImageURLs {
		raw, err := p.fetchAsset(ctx, r, u, fmt.Sprintf("raw_%03d", i), imageExt(u))
		if err != nil {
			return errors.Wrapf(err, "processor.images", "image %d unavailable", i)
		}

		out := r.ws.Path(fmt.Sprintf("img_%03d.jpg", i))
		if err := p.runner.Run(ctx, ffmpeg.NormalizeImage(raw, out)); err != nil {
			return err
		}
		r.images = append(r.images, out)
	}
	return nil
}

// prepareNarration downloads the voice track, converts it to PCM and probes
// its duration. The PCM track is the downstream audio unless a background
// mix replaces it.
func (p *Processor) prepareNarration(ctx context.Context, r *run) error {
	raw, err := p.fetchAsset(ctx, r, r.req.AudioURL, "voice_raw", audioExt(r.req.AudioURL))
	if err != nil {
		return errors.Wrap(err, "processor.audio", "voice audio unavailable")
	}

	out := r.ws.Path("voice.wav")
	if err := p.runner.Run(ctx, ffmpeg.NormalizeAudio(raw, out)); err != nil {
		return err
	}

	d := p.prober.Duration(ctx, out)
	if d <= 0 {
		return errors.New(errors.CodeProbe, "could not determine voice audio duration").
			WithField("url", r.req.AudioURL)
	}

	r.audio = out
	r.duration = d
	return nil
}
