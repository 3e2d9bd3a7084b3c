package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidVoxelLine is returned for overlay lines that do not start with
// x,y,z.
var ErrInvalidVoxelLine = errors.New("invalid voxel line")

// ParseVoxels reads overlay points, one "x,y,z" per line. Extra values such
// as box bounds are parsed but only the first three are kept. Anything after
// the first tab is a label and is ignored. Blank lines are skipped.
func ParseVoxels(r io.Reader) ([]mgl64.Vec3, error) {
	var points []mgl64.Vec3
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if tab := strings.IndexByte(line, '\t'); tab >= 0 {
			line = line[:tab]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: line %d: want at least 3 values, got %d", ErrInvalidVoxelLine, lineNo, len(parts))
		}
		var p mgl64.Vec3
		for i, s := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidVoxelLine, lineNo, err)
			}
			if i < 3 {
				p[i] = f
			}
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading voxels: %w", err)
	}
	return points, nil
}

// LoadVoxels reads an overlay point file from disk.
func LoadVoxels(path string) ([]mgl64.Vec3, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	points, err := ParseVoxels(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}
