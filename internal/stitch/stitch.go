package stitch

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/meshshot/internal/logger"
)

// DefaultOutDir receives stitched PDFs.
const DefaultOutDir = "stitched_results"

// Options configures Stitch.
type Options struct {
	Dir    string
	OutDir string
	Tier   Tier
	// CellWidth resizes every tile to this width; 0 keeps source size.
	CellWidth int
}

// OutputPath returns <OutDir>/<folder name>.pdf.
func (o Options) OutputPath() (string, error) {
	abs, err := filepath.Abs(o.Dir)
	if err != nil {
		return "", err
	}
	out := o.OutDir
	if out == "" {
		out = DefaultOutDir
	}
	return filepath.Join(out, filepath.Base(abs)+".pdf"), nil
}

// Stitch collects, decodes and composes the images in opts.Dir and writes
// the PDF. It returns the PDF path. No PDF is written on failure.
func Stitch(opts Options) (string, error) {
	out, err := opts.OutputPath()
	if err != nil {
		return "", err
	}

	paths, err := Collect(opts.Dir)
	if err != nil {
		return "", err
	}
	logger.Info("Collected images", zap.String("dir", opts.Dir), zap.Int("count", len(paths)))

	tiles, err := Decode(paths)
	if err != nil {
		return "", err
	}

	// Sources must agree before resizing hides a mismatch.
	if _, err := CheckSizes(tiles); err != nil {
		return "", err
	}
	canvas, grid, err := Compose(ResizeTiles(tiles, opts.CellWidth))
	if err != nil {
		return "", err
	}
	size := canvas.Bounds().Size()
	logger.Debug("Composed canvas",
		zap.Int("cols", grid.Cols), zap.Int("rows", grid.Rows),
		zap.Int("width", size.X), zap.Int("height", size.Y))

	if err := WritePDF(canvas, out, opts.Tier); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	logger.Info("PDF written", zap.String("path", out), zap.Stringer("quality", opts.Tier))
	return out, nil
}
