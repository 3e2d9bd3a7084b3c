// Package stitch lays a folder of equally sized images out on a grid and
// writes the result as a single-page PDF.
package stitch

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Stitcher errors.
var (
	ErrNoImages     = errors.New("no images found")
	ErrSizeMismatch = errors.New("image size mismatch")
	ErrNotAnImage   = errors.New("file content is not an image")
)

// imageExtensions are the file types Collect picks up.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// sniffLen is enough header for filetype to recognise every format above.
const sniffLen = 261

// Tile is one decoded source image.
type Tile struct {
	Name  string
	Image image.Image
}

// IsImageName reports whether a file name has a recognised image extension.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Collect returns the image files in dir sorted by name. Files with an
// image extension but non-image content are skipped.
func Collect(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ok, err := sniffImage(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	return paths, nil
}

func sniffImage(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.IsImage(head[:n]), nil
}

// Decode reads every path as an image.
func Decode(paths []string) ([]Tile, error) {
	tiles := make([]Tile, 0, len(paths))
	for _, path := range paths {
		img, err := decodeFile(path)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, Tile{Name: filepath.Base(path), Image: img})
	}
	return tiles, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAnImage, filepath.Base(path), err)
	}
	return img, nil
}
