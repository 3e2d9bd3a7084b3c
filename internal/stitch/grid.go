package stitch

import (
	"image"
	"math"
)

// Grid is a row-major layout of Cols x Rows cells.
type Grid struct {
	Cols int
	Rows int
}

// Layout returns the most square grid that holds n cells:
// cols = ceil(sqrt(n)), rows = ceil(n / cols).
func Layout(n int) Grid {
	if n <= 0 {
		return Grid{}
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	return Grid{Cols: cols, Rows: rows}
}

// Cell returns the column and row of cell i.
func (g Grid) Cell(i int) (col, row int) {
	return i % g.Cols, i / g.Cols
}

// Offset returns the pixel position of cell i for w x h cells.
func (g Grid) Offset(i, w, h int) image.Point {
	col, row := g.Cell(i)
	return image.Pt(col*w, row*h)
}

// Size returns the canvas size for w x h cells.
func (g Grid) Size(w, h int) image.Point {
	return image.Pt(g.Cols*w, g.Rows*h)
}
