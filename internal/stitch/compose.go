package stitch

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
)

// Compose places tiles row-major on a white canvas. Every tile must have
// the size of the first one. Transparent pixels end up white.
func Compose(tiles []Tile) (*image.RGBA, Grid, error) {
	size, err := CheckSizes(tiles)
	if err != nil {
		return nil, Grid{}, err
	}

	grid := Layout(len(tiles))
	canvasSize := grid.Size(size.X, size.Y)
	canvas := image.NewRGBA(image.Rectangle{Max: canvasSize})
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, t := range tiles {
		at := grid.Offset(i, size.X, size.Y)
		src := t.Image.Bounds()
		dst := image.Rectangle{Min: at, Max: at.Add(src.Size())}
		draw.Draw(canvas, dst, t.Image, src.Min, draw.Over)
	}
	return canvas, grid, nil
}

// CheckSizes returns the common tile size. The first tile is
// authoritative.
func CheckSizes(tiles []Tile) (image.Point, error) {
	if len(tiles) == 0 {
		return image.Point{}, ErrNoImages
	}
	size := tiles[0].Image.Bounds().Size()
	for _, t := range tiles[1:] {
		if got := t.Image.Bounds().Size(); got != size {
			return image.Point{}, fmt.Errorf("%w: %s is %dx%d, expected %dx%d",
				ErrSizeMismatch, t.Name, got.X, got.Y, size.X, size.Y)
		}
	}
	return size, nil
}

// ResizeTiles scales every tile to width, keeping its aspect ratio.
func ResizeTiles(tiles []Tile, width int) []Tile {
	if width <= 0 {
		return tiles
	}
	out := make([]Tile, len(tiles))
	for i, t := range tiles {
		b := t.Image.Bounds()
		height := int(float64(b.Dy())*float64(width)/float64(b.Dx()) + 0.5)
		if height < 1 {
			height = 1
		}
		out[i] = Tile{Name: t.Name, Image: transform.Resize(t.Image, width, height, transform.Linear)}
	}
	return out
}
