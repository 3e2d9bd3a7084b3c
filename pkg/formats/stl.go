package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshshot/pkg/mesh"
	"github.com/fogleman/simplify"
)

// STL format errors.
var (
	ErrInvalidSTL = errors.New("invalid STL data")
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// LoadSTL reads a binary or ASCII STL file. Triangle soup vertices that
// share a position are merged into one indexed vertex.
func LoadSTL(path string) (*mesh.Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	head := make([]byte, stlHeaderSize+4)
	n, _ := io.ReadFull(file, head)
	head = head[:n]

	if isBinarySTL(head, info.Size()) {
		soup, err := simplify.LoadBinarySTL(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
		}
		return mesh.FromSimplify(BaseName(path), soup), nil
	}

	if !bytes.HasPrefix(bytes.TrimSpace(head), []byte("solid")) {
		return nil, fmt.Errorf("%w: neither binary nor ASCII", ErrInvalidSTL)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	soup, err := parseASCIISTL(file)
	if err != nil {
		return nil, err
	}
	return mesh.FromSimplify(BaseName(path), soup), nil
}

// isBinarySTL reports whether the declared triangle count matches the file size.
func isBinarySTL(head []byte, size int64) bool {
	if len(head) < stlHeaderSize+4 {
		return false
	}
	count := binary.LittleEndian.Uint32(head[stlHeaderSize:])
	return int64(stlHeaderSize+4)+int64(count)*stlTriangleSize == size
}

// parseASCIISTL collects "vertex x y z" lines in groups of three.
func parseASCIISTL(r io.Reader) (*simplify.Mesh, error) {
	var tris []*simplify.Triangle
	var corners []simplify.Vector

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrInvalidSTL, lineNo)
		}

		var xyz [3]float64
		for i := range xyz {
			f, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, lineNo, err)
			}
			xyz[i] = f
		}
		corners = append(corners, simplify.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
		if len(corners) == 3 {
			tris = append(tris, simplify.NewTriangle(corners[0], corners[1], corners[2]))
			corners = corners[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(corners) != 0 {
		return nil, fmt.Errorf("%w: dangling vertices", ErrInvalidSTL)
	}
	return simplify.NewMesh(tris), nil
}
