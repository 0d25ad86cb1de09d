// Package composite reassembles ordered viewport tiles into one full-page
// raster.
package composite

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"fullpage-capture/internal/capture"
)

// SkippedTile records a tile whose raster could not be decoded. One bad tile
// does not abort an otherwise complete capture; the caller decides how loudly
// to complain.
type SkippedTile struct {
	Index      int
	PlacementY int
	Err        error
}

type Result struct {
	PNG     []byte
	Width   int
	Height  int
	Skipped []SkippedTile
}

// Composite draws each tile at its recorded placement onto a totalWidth x
// totalHeight canvas and serializes the canvas as PNG. Tiles are drawn in
// production order with no scaling; where placements overlap, the later tile
// overwrites pixel-for-pixel, so the lower tile's true content always wins
// over the previous tile's overlap margin.
func Composite(tiles []capture.Tile, totalWidth int, totalHeight int) (*Result, error) {
	if totalWidth <= 0 || totalHeight <= 0 {
		return nil, fmt.Errorf("invalid canvas extent %dx%d", totalWidth, totalHeight)
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles to composite")
	}

	bounds := image.Rect(0, 0, totalWidth, totalHeight)
	canvas := image.NewRGBA(bounds)

	// Opaque white first: if the page height is not an exact multiple of
	// the step size the strip below the last tile would otherwise be
	// undefined pixels.
	draw.Draw(canvas, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	var skipped []SkippedTile
	for i, tile := range tiles {
		decoded, _, err := image.Decode(bytes.NewReader(tile.Image))
		if err != nil {
			skipped = append(skipped, SkippedTile{
				Index:      i,
				PlacementY: tile.PlacementY,
				Err:        err,
			})
			continue
		}

		b := decoded.Bounds()
		target := image.Rect(0, tile.PlacementY, b.Dx(), tile.PlacementY+b.Dy())
		draw.Draw(canvas, target, decoded, b.Min, draw.Src)
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}

	return &Result{
		PNG:     buffer.Bytes(),
		Width:   totalWidth,
		Height:  totalHeight,
		Skipped: skipped,
	}, nil
}
