package stitch

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/go-pdf/fpdf"
)

// Tier selects how the page raster is encoded inside the PDF.
type Tier int

// Compression tiers.
const (
	TierHigh   Tier = iota // lossless PNG
	TierMedium             // JPEG, quality 85
	TierLow                // JPEG, quality 60
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier converts a tier name. An empty name selects medium.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(s) {
	case "high":
		return TierHigh, nil
	case "medium", "":
		return TierMedium, nil
	case "low":
		return TierLow, nil
	default:
		return 0, fmt.Errorf("unknown quality %q (want high, medium or low)", s)
	}
}

// jpegQuality returns the JPEG quality for lossy tiers and 0 for lossless.
func (t Tier) jpegQuality() int {
	switch t {
	case TierMedium:
		return 85
	case TierLow:
		return 60
	default:
		return 0
	}
}

// WritePDF writes canvas as a single page sized to the image, one point
// per pixel. The raster and the partial PDF are temporary files next to
// path; neither survives, and path is only replaced on success.
func WritePDF(canvas image.Image, path string, tier Tier) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	raster, imageType, err := writeRaster(canvas, dir, tier)
	if err != nil {
		return err
	}
	defer os.Remove(raster)

	size := canvas.Bounds().Size()
	w, h := float64(size.X), float64(size.Y)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetCompression(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("stitchpdf", false)
	pdf.AddPage()
	pdf.ImageOptions(raster, 0, 0, w, h, false, fpdf.ImageOptions{ImageType: imageType}, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("building PDF: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := pdf.Output(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// writeRaster encodes canvas for the tier and returns the file and its
// fpdf image type.
func writeRaster(canvas image.Image, dir string, tier Tier) (string, string, error) {
	ext, imageType := ".png", "PNG"
	if tier.jpegQuality() > 0 {
		ext, imageType = ".jpg", "JPG"
	}

	f, err := os.CreateTemp(dir, ".stitch-raster-*"+ext)
	if err != nil {
		return "", "", fmt.Errorf("creating raster: %w", err)
	}
	name := f.Name()

	if q := tier.jpegQuality(); q > 0 {
		err = jpeg.Encode(f, canvas, &jpeg.Options{Quality: q})
	} else {
		err = png.Encode(f, canvas)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return "", "", fmt.Errorf("encoding raster: %w", err)
	}
	return name, imageType, nil
}
