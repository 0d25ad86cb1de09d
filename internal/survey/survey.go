// Package survey measures the scrollable extent of a page from inside its
// own rendering context.
package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fullpage-capture/internal/host"
)

// ErrPageInaccessible marks pages that deny the measurement routine, for
// example restricted schemes. There is no partial capture in that case.
var ErrPageInaccessible = errors.New("page inaccessible")

// Geometry is the measured extent of one capture session. All fields are
// non-negative and TotalHeight >= ViewportHeight.
type Geometry struct {
	TotalWidth      int `json:"totalWidth"`
	TotalHeight     int `json:"totalHeight"`
	ViewportWidth   int `json:"viewportWidth"`
	ViewportHeight  int `json:"viewportHeight"`
	OriginalScrollY int `json:"originalScrollY"`
}

// Different layouts report document extent inconsistently across the
// body/documentElement scroll and offset signals, so the script takes the
// maximum of all of them. It only reads layout and never touches the
// scroll position.
const measureScript = `() => {
	const body = document.body;
	const doc = document.documentElement;
	return {
		totalWidth: Math.max(body.scrollWidth, body.offsetWidth, doc.scrollWidth, doc.offsetWidth, doc.clientWidth),
		totalHeight: Math.max(body.scrollHeight, body.offsetHeight, doc.scrollHeight, doc.offsetHeight, doc.clientHeight),
		viewportWidth: window.innerWidth,
		viewportHeight: window.innerHeight,
		originalScrollY: Math.round(window.scrollY)
	};
}`

// Measure runs the measurement routine in the page and returns its geometry.
func Measure(ctx context.Context, page host.Page) (Geometry, error) {
	raw, err := page.Evaluate(ctx, measureScript)
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %w", ErrPageInaccessible, err)
	}

	var geometry Geometry
	if err := json.Unmarshal(raw, &geometry); err != nil {
		return Geometry{}, fmt.Errorf("%w: failed to decode measurement: %w", ErrPageInaccessible, err)
	}

	return normalize(geometry)
}

func normalize(g Geometry) (Geometry, error) {
	if g.ViewportWidth <= 0 || g.ViewportHeight <= 0 {
		return Geometry{}, fmt.Errorf("%w: viewport is %dx%d", ErrPageInaccessible, g.ViewportWidth, g.ViewportHeight)
	}
	if g.TotalWidth < 0 || g.TotalHeight < 0 || g.OriginalScrollY < 0 {
		return Geometry{}, fmt.Errorf("%w: negative extent %+v", ErrPageInaccessible, g)
	}

	// A page shorter or narrower than the window still fills it, so the
	// capture extent is never smaller than the viewport.
	if g.TotalHeight < g.ViewportHeight {
		g.TotalHeight = g.ViewportHeight
	}
	if g.TotalWidth < g.ViewportWidth {
		g.TotalWidth = g.ViewportWidth
	}

	return g, nil
}
