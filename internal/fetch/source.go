package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Source renders a URL and returns its visible text. Implementations are
// fallible and may time out; the caller bounds each call with a context
// deadline.
type Source interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Kind classifies fetch failures.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindNetwork Kind = "network"
	KindRender  Kind = "render"
)

// Error is a classified fetch failure for one URL.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from an error chain, defaulting to
// network for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}
