package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Capturer stores an artifact documenting the page as it looked when an
// alert fired. Captures are best-effort: a failure is logged by the caller
// and never suppresses the notification.
type Capturer interface {
	Capture(ctx context.Context, url, canonicalText string) (string, error)
}

// Imager is an optional capability of a page source: producing an actual
// image of the rendered page. Sources that implement it get PNG artifacts;
// others fall back to text snapshots.
type Imager interface {
	Screenshot(ctx context.Context, url string) ([]byte, error)
}

// FileCapturer writes artifacts into a directory, one file per alert,
// named by timestamp plus a short unique suffix so concurrent alerts never
// collide.
type FileCapturer struct {
	dir    string
	imager Imager
	now    func() time.Time
}

// Option configures a FileCapturer.
type Option func(*FileCapturer)

// WithImager attaches an image-producing source.
func WithImager(imager Imager) Option {
	return func(c *FileCapturer) {
		c.imager = imager
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *FileCapturer) {
		if now != nil {
			c.now = now
		}
	}
}

// NewFileCapturer builds a capturer writing into dir.
func NewFileCapturer(dir string, opts ...Option) *FileCapturer {
	c := &FileCapturer{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture stores the artifact and returns its path.
func (c *FileCapturer) Capture(ctx context.Context, url, canonicalText string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return "", fmt.Errorf("ensure screenshot dir %q: %w", c.dir, err)
	}

	stem := c.now().UTC().Format("20060102T150405Z") + "-" + shortID()

	if c.imager != nil {
		img, err := c.imager.Screenshot(ctx, url)
		if err == nil {
			path := filepath.Join(c.dir, stem+".png")
			if err := os.WriteFile(path, img, 0o600); err != nil {
				return "", fmt.Errorf("write screenshot %q: %w", path, err)
			}
			return path, nil
		}
		// Fall through to the text snapshot; a broken renderer must not
		// cost us the artifact entirely.
	}

	path := filepath.Join(c.dir, stem+".txt")
	body := url + "\n\n" + canonicalText + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", fmt.Errorf("write snapshot %q: %w", path, err)
	}
	return path, nil
}

func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

var _ Capturer = (*FileCapturer)(nil)
