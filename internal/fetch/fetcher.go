// Package fetch downloads remote job assets into a job's working directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"montage/internal/pkg/errors"
)

// Extension sets used when naming downloaded assets.
var (
	ImageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"}
	AudioExts = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac"}
	VideoExts = []string{".mp4", ".mov", ".mkv", ".webm"}
)

// HTTPFetcher retrieves a URL into a local file. It never retries.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// New returns a fetcher with a per-request timeout. A nil client uses a
// fresh http.Client.
func New(client *http.Client, timeout time.Duration, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{client: client, timeout: timeout, userAgent: userAgent}
}

// Fetch streams rawURL into dest. The body is written to dest+".part" and
// renamed on success, so dest only ever holds a complete download. Every
// failure is reported as ASSET_UNAVAILABLE carrying the url.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.AssetUnavailable(rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	res, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.AssetUnavailable(rawURL, fmt.Errorf("timed out after %s", f.timeout))
		}
		return errors.AssetUnavailable(rawURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.AssetUnavailable(rawURL, fmt.Errorf("http %d", res.StatusCode)).
			WithField("status", res.StatusCode)
	}

	part := dest + ".part"
	if err := writeFile(part, res.Body); err != nil {
		_ = os.Remove(part)
		return errors.AssetUnavailable(rawURL, err)
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return errors.Filesystem("fetch.rename", err)
	}
	return nil
}

func writeFile(p string, r io.Reader) error {
	out, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ExtFromURL returns the lower-cased extension of the URL path when it is in
// allowed, otherwise fallback. Query strings are ignored.
func ExtFromURL(rawURL string, allowed []string, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, a := range allowed {
		if ext == a {
			return ext
		}
	}
	return fallback
}
