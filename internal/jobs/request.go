package jobs

import (
	"fmt"
	"net/url"
	"strings"

	"montage/internal/pkg/errors"
)

// AspectRatio picks the output frame.
type AspectRatio string

const (
	AspectHorizontal AspectRatio = "horizontal"
	AspectVertical   AspectRatio = "vertical"
)

// Resolution returns the output frame size for the ratio.
func (a AspectRatio) Resolution() (width, height int) {
	if a == AspectVertical {
		return 720, 1280
	}
	return 1280, 720
}

// LogoPosition is one of the four corners.
type LogoPosition string

const (
	LogoTopLeft     LogoPosition = "top-left"
	LogoTopRight    LogoPosition = "top-right"
	LogoBottomLeft  LogoPosition = "bottom-left"
	LogoBottomRight LogoPosition = "bottom-right"
)

// Request is everything a job needs. Only ImageURLs and AudioURL are
// required; every other field switches on an optional stage.
type Request struct {
	ImageURLs    []string
	AudioURL     string
	BGMURL       string
	SubtitleText string
	AspectRatio  AspectRatio
	LogoURL      string
	LogoPosition LogoPosition
	IntroURL     string
}

// Normalize trims inputs and fills defaults. An unrecognized logo position
// falls back to top-right.
func (r Request) Normalize() Request {
	images := make([]string, 0, len(r.ImageURLs))
	for _, u := range r.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	r.ImageURLs = images
	r.AudioURL = strings.TrimSpace(r.AudioURL)
	r.BGMURL = strings.TrimSpace(r.BGMURL)
	r.LogoURL = strings.TrimSpace(r.LogoURL)
	r.IntroURL = strings.TrimSpace(r.IntroURL)

	switch AspectRatio(strings.ToLower(strings.TrimSpace(string(r.AspectRatio)))) {
	case AspectVertical:
		r.AspectRatio = AspectVertical
	default:
		r.AspectRatio = AspectHorizontal
	}

	switch p := LogoPosition(strings.ToLower(strings.TrimSpace(string(r.LogoPosition)))); p {
	case LogoTopLeft, LogoTopRight, LogoBottomLeft, LogoBottomRight:
		r.LogoPosition = p
	default:
		r.LogoPosition = LogoTopRight
	}
	return r
}

// Validate rejects requests that cannot produce a video. It performs no I/O.
func (r Request) Validate() error {
	if len(r.ImageURLs) == 0 {
		return errors.ValidationField("image_urls", "at least one image url is required")
	}
	if r.AudioURL == "" {
		return errors.ValidationField("audio_url", "audio url is required")
	}

	for i, u := range r.ImageURLs {
		if err := checkURL(u); err != nil {
			return errors.ValidationField(fmt.Sprintf("image_urls[%d]", i), err.Error())
		}
	}
	optional := []struct {
		field, value string
	}{
		{"audio_url", r.AudioURL},
		{"bgm_url", r.BGMURL},
		{"logo_url", r.LogoURL},
		{"intro_url", r.IntroURL},
	}
	for _, o := range optional {
		if o.value == "" {
			continue
		}
		if err := checkURL(o.value); err != nil {
			return errors.ValidationField(o.field, err.Error())
		}
	}
	return nil
}

// HasBGM and friends report which optional stages will run.
func (r Request) HasBGM() bool       { return r.BGMURL != "" }
func (r Request) HasIntro() bool     { return r.IntroURL != "" }
func (r Request) HasLogo() bool      { return r.LogoURL != "" }
func (r Request) HasSubtitles() bool { return strings.TrimSpace(r.SubtitleText) != "" }

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %s", raw)
	}
	return nil
}
