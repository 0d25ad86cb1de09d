// Package capture drives the scroll/settle/capture loop that turns one page
// into an ordered sequence of viewport tiles.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fullpage-capture/internal/host"
	"fullpage-capture/internal/survey"
)

var (
	// ErrScrollFailed and ErrCaptureFailed both abort the whole session.
	// A skipped tile would break coverage and produce a visibly corrupt
	// composite, so there is no best-effort mode.
	ErrScrollFailed  = errors.New("scroll failed")
	ErrCaptureFailed = errors.New("capture failed")
)

// Tile is one captured viewport snapshot and the vertical offset, in
// full-page coordinates, at which it must be drawn.
type Tile struct {
	Image      []byte
	PlacementY int
}

type Config struct {
	// OverlapFactor is the fraction of the viewport height advanced per
	// scroll step, in (0, 1]. Values below 1.0 duplicate a margin between
	// consecutive tiles, which absorbs off-by-one scroll positioning by
	// the browser; 1.0 assumes pixel-exact scrolling.
	OverlapFactor float64

	// Settle is how long to wait after each scroll before capturing, so
	// asynchronous layout, paint, and lazy-loaded content can stabilize.
	Settle time.Duration
}

func DefaultConfig() Config {
	return Config{
		OverlapFactor: 0.9,
		Settle:        300 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if c.OverlapFactor <= 0 || c.OverlapFactor > 1 {
		return fmt.Errorf("overlap factor %v is outside (0, 1]", c.OverlapFactor)
	}
	if c.Settle < 0 {
		return fmt.Errorf("settle delay %v is negative", c.Settle)
	}
	return nil
}

// Offsets returns the deterministic scroll target sequence for the given
// extent. Targets advance by floor(viewportHeight*overlapFactor) and the
// final target is clamped to totalHeight-viewportHeight, so the last tile's
// bottom edge always aligns with the page bottom.
func Offsets(totalHeight int, viewportHeight int, overlapFactor float64) []int {
	maxY := totalHeight - viewportHeight
	if maxY <= 0 {
		return []int{0}
	}

	step := int(math.Floor(float64(viewportHeight) * overlapFactor))
	if step < 1 {
		step = 1
	}

	offsets := make([]int, 0, maxY/step+2)
	for y := 0; ; y += step {
		if y >= maxY {
			offsets = append(offsets, maxY)
			break
		}
		offsets = append(offsets, y)
	}
	return offsets
}

type Driver struct {
	page   host.Page
	config Config
}

func NewDriver(page host.Page, config Config) (*Driver, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	return &Driver{
		page:   page,
		config: config,
	}, nil
}

// Run captures every tile of the page in placement order. For each offset
// it scrolls, waits the settle delay, then captures; no step starts before
// the previous one finished, because the tab's rendering buffer is a single
// shared surface. The original scroll position is restored best-effort on
// every exit path, including cancellation.
func (d *Driver) Run(ctx context.Context, geometry survey.Geometry) ([]Tile, error) {
	offsets := Offsets(geometry.TotalHeight, geometry.ViewportHeight, d.config.OverlapFactor)

	defer func() {
		// The session context may already be cancelled at this point.
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = d.page.ScrollTo(restoreCtx, geometry.OriginalScrollY)
	}()

	tiles := make([]Tile, 0, len(offsets))
	for i, y := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := d.page.ScrollTo(ctx, y); err != nil {
			return nil, fmt.Errorf("%w: tile %d of %d at offset %d: %w", ErrScrollFailed, i+1, len(offsets), y, err)
		}

		if d.config.Settle > 0 {
			select {
			case <-time.After(d.config.Settle):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		image, err := d.page.CaptureVisible(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: tile %d of %d at offset %d: %w", ErrCaptureFailed, i+1, len(offsets), y, err)
		}

		tiles = append(tiles, Tile{
			Image:      image,
			PlacementY: y,
		})
	}

	return tiles, nil
}
