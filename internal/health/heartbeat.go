package health

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const HeartbeatFileName = "heartbeat.txt"

// HeartbeatPath returns the liveness marker location inside a data directory.
func HeartbeatPath(dir string) string {
	return filepath.Join(dir, HeartbeatFileName)
}

// Heartbeat writes a liveness marker after every polling cycle. The marker
// holds a single RFC3339 UTC timestamp and is replaced atomically so an
// external health probe never reads a partial write.
type Heartbeat struct {
	path string
	now  func() time.Time
}

// HeartbeatOption configures a Heartbeat.
type HeartbeatOption func(*Heartbeat)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) HeartbeatOption {
	return func(h *Heartbeat) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHeartbeat builds a heartbeat writer targeting path.
func NewHeartbeat(path string, opts ...HeartbeatOption) *Heartbeat {
	h := &Heartbeat{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Touch records the current time as the liveness marker.
func (h *Heartbeat) Touch() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return fmt.Errorf("ensure heartbeat dir: %w", err)
	}

	stamp := h.now().UTC().Format(time.RFC3339)
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(stamp+"\n"), 0o600); err != nil {
		return fmt.Errorf("write temp heartbeat %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("commit heartbeat %q: %w", h.path, err)
	}
	return nil
}

// Checker decides whether the poll loop is still alive based on heartbeat
// staleness. The allowance is a multiple of the poll interval: one cycle's
// worth of targets plus slack for slow fetches.
type Checker struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithCheckerNow overrides the clock, for tests.
func WithCheckerNow(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChecker builds a checker for the heartbeat at path. A pollInterval of
// zero falls back to a one minute cycle assumption.
func NewChecker(path string, pollInterval time.Duration, opts ...CheckerOption) *Checker {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	c := &Checker{
		path:   path,
		maxAge: 3 * pollInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns nil when the loop is alive and a descriptive error when the
// marker is missing, unreadable, or stale.
func (c *Checker) Check() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("heartbeat file %q does not exist", c.path)
		}
		return fmt.Errorf("read heartbeat %q: %w", c.path, err)
	}

	stamp, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse heartbeat %q: %w", c.path, err)
	}

	age := c.now().UTC().Sub(stamp)
	if age > c.maxAge {
		return fmt.Errorf("heartbeat is stale: last beat %s ago (max %s)", age.Round(time.Second), c.maxAge)
	}
	return nil
}
