package screenshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func TestCaptureWritesTextSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screens")
	c := NewFileCapturer(dir, WithNow(fixedNow))

	path, err := c.Capture(context.Background(), "https://x", "Sold out today")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(path), "20260830T120000Z-") {
		t.Fatalf("unexpected artifact name: %s", path)
	}
	if !strings.HasSuffix(path, ".txt") {
		t.Fatalf("expected text snapshot, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "Sold out today") {
		t.Fatalf("snapshot content missing: %q", data)
	}
}

type fakeImager struct {
	img []byte
	err error
}

func (f fakeImager) Screenshot(ctx context.Context, url string) ([]byte, error) {
	return f.img, f.err
}

func TestCapturePrefersImage(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCapturer(dir, WithNow(fixedNow), WithImager(fakeImager{img: []byte("PNG")}))

	path, err := c.Capture(context.Background(), "https://x", "text")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Fatalf("expected png artifact, got %s", path)
	}
}

func TestCaptureFallsBackWhenImagerFails(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCapturer(dir, WithNow(fixedNow), WithImager(fakeImager{err: errors.New("renderer down")}))

	path, err := c.Capture(context.Background(), "https://x", "text")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !strings.HasSuffix(path, ".txt") {
		t.Fatalf("expected text fallback, got %s", path)
	}
}

func TestCaptureNamesAreUnique(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCapturer(dir, WithNow(fixedNow))

	a, err := c.Capture(context.Background(), "https://x", "t")
	if err != nil {
		t.Fatalf("first Capture: %v", err)
	}
	b, err := c.Capture(context.Background(), "https://x", "t")
	if err != nil {
		t.Fatalf("second Capture: %v", err)
	}
	if a == b {
		t.Fatalf("same-second captures collided: %s", a)
	}
}
