// stitchpdf lays the images of a folder out on a grid and writes them as a
// single-page PDF into the stitch directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/meshshot/internal/config"
	"github.com/Faultbox/meshshot/internal/failure"
	"github.com/Faultbox/meshshot/internal/logger"
	"github.com/Faultbox/meshshot/internal/stitch"
)

func main() {
	err := run(os.Args[1:], os.Stdout)
	logger.Sync()
	failure.Exit(err)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `stitchpdf - stitch a folder of images into one PDF page

Usage:
  stitchpdf [options] <folder>

Images (.png .jpg .jpeg .bmp .tif .tiff .webp) are placed in name order on
a ceil(sqrt(n)) column grid. The result is <stitch_dir>/<folder>.pdf.

Options:
  -quality high|medium|low   high is lossless, medium and low use JPEG (default medium)
  -cell-width <px>           Resize every image to this width first
  -out <dir>                 Output directory (default stitched_results)
  -config <path>             Config file (default ./meshshot.yaml)
  -debug                     Debug logging
  -log-file <path>           Also log to a rotated file

Examples:
  stitchpdf output_images/roots
  stitchpdf -quality high -cell-width 720 output_images`)
}

func run(args []string, stdout io.Writer) error {
	var common config.Flags
	fs := flag.NewFlagSet("stitchpdf", flag.ExitOnError)
	fs.Usage = func() { printUsage(fs.Output()) }
	common.Register(fs)
	quality := fs.String("quality", "", "Compression tier: high, medium or low")
	cellWidth := fs.Int("cell-width", -1, "Resize images to this width (0 keeps size)")
	outDir := fs.String("out", "", "Output directory")
	fs.Parse(args)

	if fs.NArg() != 1 {
		printUsage(os.Stderr)
		return failure.Usagef("expected exactly one folder, got %d arguments", fs.NArg())
	}

	cfg, err := config.Load(&common)
	if err != nil {
		return failure.Usage(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	opts := stitch.Options{
		Dir:       fs.Arg(0),
		OutDir:    cfg.Paths.StitchDir,
		CellWidth: cfg.Stitch.CellWidth,
	}
	if *outDir != "" {
		opts.OutDir = *outDir
	}
	if *cellWidth >= 0 {
		opts.CellWidth = *cellWidth
	}

	tierName := cfg.Stitch.Quality
	if *quality != "" {
		tierName = *quality
	}
	if opts.Tier, err = stitch.ParseTier(tierName); err != nil {
		return failure.Usage(err)
	}

	out, err := stitch.Stitch(opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, out)
	return nil
}
