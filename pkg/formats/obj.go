package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/meshshot/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// OBJ format errors.
var (
	ErrInvalidOBJ     = errors.New("invalid OBJ data")
	ErrOBJIndexBounds = errors.New("OBJ face index out of range")
)

// ParseOBJ reads vertex positions and faces from Wavefront OBJ text.
// Texture coordinates, normals, groups and materials are ignored.
func ParseOBJ(r io.Reader) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrInvalidOBJ, lineNo)
			}
			var v mgl64.Vec3
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
				}
				v[i] = f
			}
			m.Vertices = append(m.Vertices, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs 3 vertices", ErrInvalidOBJ, lineNo)
			}
			face := make([]int, 0, len(fields)-1)
			for _, arg := range fields[1:] {
				idx, err := objIndex(arg, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				face = append(face, idx)
			}
			m.Faces = append(m.Faces, face)
		case "o":
			if m.Name == "" && len(fields) > 1 {
				m.Name = fields[1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	return m, nil
}

// objIndex resolves an OBJ face token (v, v/vt, v//vn, v/vt/vn) to a
// 0-based vertex index. Negative indices count back from the last vertex.
func objIndex(token string, count int) (int, error) {
	if slash := strings.IndexByte(token, '/'); slash >= 0 {
		token = token[:slash]
	}
	parsed, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: bad index %q", ErrInvalidOBJ, token)
	}

	idx := parsed - 1
	if parsed < 0 {
		idx = count + parsed
	}
	if parsed == 0 || idx < 0 || idx >= count {
		return 0, fmt.Errorf("%w: %d (have %d vertices)", ErrOBJIndexBounds, parsed, count)
	}
	return idx, nil
}

// LoadOBJ reads an OBJ file from disk.
func LoadOBJ(path string) (*mesh.Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := ParseOBJ(file)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = BaseName(path)
	}
	return m, nil
}

// WriteOBJ writes vertices and 1-based faces as OBJ text.
func WriteOBJ(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)
	if m.Name != "" {
		fmt.Fprintf(bw, "o %s\n", m.Name)
	}
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
	}
	for _, f := range m.Faces {
		bw.WriteString("f")
		for _, idx := range f {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(idx + 1))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveOBJ writes the mesh to path, creating parent directories as needed.
func SaveOBJ(path string, m *mesh.Mesh) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteOBJ(file, m); err != nil {
		file.Close()
		return fmt.Errorf("writing OBJ %s: %w", path, err)
	}
	return file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
