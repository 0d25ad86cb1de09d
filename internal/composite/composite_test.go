package composite_test

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"fullpage-capture/internal/capture"
	"fullpage-capture/internal/composite"
)

func encodeTile(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("failed to encode tile: %v", err)
	}
	return buffer.Bytes()
}

func decodeResult(t *testing.T, result *composite.Result) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(result.PNG))
	if err != nil {
		t.Fatalf("failed to decode composite: %v", err)
	}
	return img
}

func sameColor(a color.Color, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func TestComposite(t *testing.T) {
	t.Run("PlacesTilesAtTheirOffsets", func(t *testing.T) {
		t.Parallel()

		tiles := []capture.Tile{
			{Image: encodeTile(t, 100, 100, color.RGBA{R: 255, A: 255}), PlacementY: 0},
			{Image: encodeTile(t, 100, 100, color.RGBA{B: 255, A: 255}), PlacementY: 100},
		}

		result, err := composite.Composite(tiles, 100, 200)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		img := decodeResult(t, result)
		if got := img.Bounds(); got.Dx() != 100 || got.Dy() != 200 {
			t.Fatalf("composite is %dx%d, want 100x200", got.Dx(), got.Dy())
		}
		if !sameColor(img.At(50, 50), color.RGBA{R: 255, A: 255}) {
			t.Errorf("top half is %v, want red", img.At(50, 50))
		}
		if !sameColor(img.At(50, 150), color.RGBA{B: 255, A: 255}) {
			t.Errorf("bottom half is %v, want blue", img.At(50, 150))
		}
	})

	t.Run("LaterTileOverwritesOverlap", func(t *testing.T) {
		t.Parallel()

		// 90px step, 100px tiles: rows 90-99 are painted by both tiles and
		// must end up with the second tile's pixels.
		tiles := []capture.Tile{
			{Image: encodeTile(t, 100, 100, color.RGBA{R: 255, A: 255}), PlacementY: 0},
			{Image: encodeTile(t, 100, 100, color.RGBA{B: 255, A: 255}), PlacementY: 90},
		}

		result, err := composite.Composite(tiles, 100, 190)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		img := decodeResult(t, result)
		if !sameColor(img.At(50, 89), color.RGBA{R: 255, A: 255}) {
			t.Errorf("row above overlap is %v, want red", img.At(50, 89))
		}
		if !sameColor(img.At(50, 95), color.RGBA{B: 255, A: 255}) {
			t.Errorf("overlap row is %v, want blue", img.At(50, 95))
		}
	})

	t.Run("FillsUncoveredAreaWithWhite", func(t *testing.T) {
		t.Parallel()

		tiles := []capture.Tile{
			{Image: encodeTile(t, 100, 100, color.RGBA{R: 255, A: 255}), PlacementY: 0},
		}

		result, err := composite.Composite(tiles, 100, 300)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		img := decodeResult(t, result)
		if !sameColor(img.At(50, 200), color.White) {
			t.Errorf("uncovered area is %v, want white", img.At(50, 200))
		}
	})

	t.Run("SkipsUndecodableTile", func(t *testing.T) {
		t.Parallel()

		tiles := []capture.Tile{
			{Image: encodeTile(t, 100, 100, color.RGBA{R: 255, A: 255}), PlacementY: 0},
			{Image: []byte("not a png"), PlacementY: 100},
		}

		result, err := composite.Composite(tiles, 100, 200)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Skipped) != 1 {
			t.Fatalf("expected 1 skipped tile, got %d", len(result.Skipped))
		}
		if result.Skipped[0].Index != 1 || result.Skipped[0].PlacementY != 100 {
			t.Errorf("unexpected skip record: %+v", result.Skipped[0])
		}

		img := decodeResult(t, result)
		if !sameColor(img.At(50, 50), color.RGBA{R: 255, A: 255}) {
			t.Errorf("decoded tile is %v, want red", img.At(50, 50))
		}
		if !sameColor(img.At(50, 150), color.White) {
			t.Errorf("skipped area is %v, want white", img.At(50, 150))
		}
	})

	t.Run("RejectsEmptyTileList", func(t *testing.T) {
		t.Parallel()

		if _, err := composite.Composite(nil, 100, 100); err == nil {
			t.Error("expected error for empty tile list")
		}
	})

	t.Run("RejectsInvalidExtent", func(t *testing.T) {
		t.Parallel()

		tiles := []capture.Tile{
			{Image: encodeTile(t, 10, 10, color.White), PlacementY: 0},
		}
		if _, err := composite.Composite(tiles, 0, 100); err == nil {
			t.Error("expected error for zero width")
		}
		if _, err := composite.Composite(tiles, 100, -1); err == nil {
			t.Error("expected error for negative height")
		}
	})
}
