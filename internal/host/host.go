package host

import (
	"context"
	"time"
)

// Page is a single browser tab under the driver's control. Evaluate is the
// run-in-page boundary: a script goes in, a JSON-encoded result comes back.
// No executable code crosses the boundary in either direction.
type Page interface {
	// ScrollTo sets the vertical scroll offset of the page in pixels.
	ScrollTo(ctx context.Context, y int) error
	// CaptureVisible snapshots the currently visible viewport as PNG bytes.
	CaptureVisible(ctx context.Context) ([]byte, error)
	// Evaluate runs script inside the page and returns its result as JSON.
	Evaluate(ctx context.Context, script string) ([]byte, error)
	Close() error
}

type Host interface {
	Open(ctx context.Context, url string) (Page, error)
}

type Config struct {
	ViewportWidth  int
	ViewportHeight int

	Timeout time.Duration
	Delay   time.Duration

	UserAgent string
	Headers   map[string]string

	Headless                  bool
	ChromeDevtoolsProtocolURL string
}

func DefaultConfig() Config {
	return Config{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Timeout:        30 * time.Second,
		Delay:          3 * time.Second,
		Headless:       true,
	}
}
