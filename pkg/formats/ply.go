package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshshot/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// PLY format errors.
var (
	ErrInvalidPLYMagic       = errors.New("invalid PLY magic: expected 'ply'")
	ErrUnsupportedPLYFormat  = errors.New("unsupported PLY format")
	ErrInvalidPLYHeader      = errors.New("invalid PLY header")
	ErrTruncatedPLYData      = errors.New("truncated PLY data")
	ErrPLYIndexBounds        = errors.New("PLY face index out of range")
	ErrMissingPLYCoordinates = errors.New("PLY vertex element lacks x/y/z")
)

// PLYEncoding is the body encoding declared in the header.
type PLYEncoding int

// PLY body encodings.
const (
	PLYASCII PLYEncoding = iota
	PLYBinaryLittleEndian
	PLYBinaryBigEndian
)

// plyProperty is one scalar or list property of an element.
type plyProperty struct {
	Name      string
	Type      string
	IsList    bool
	CountType string
}

// plyElement is an element declaration from the header.
type plyElement struct {
	Name       string
	Count      int
	Properties []plyProperty
}

// plyHeader is the parsed PLY header.
type plyHeader struct {
	Encoding PLYEncoding
	Elements []plyElement
}

var plyTypeSizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

// ParsePLY reads vertex positions and faces from a PLY stream.
// ASCII and both binary encodings are supported; unknown elements and
// properties are read and discarded.
func ParsePLY(r io.Reader) (*mesh.Mesh, error) {
	br := bufio.NewReader(r)
	header, err := readPLYHeader(br)
	if err != nil {
		return nil, err
	}

	var values plyValueReader
	switch header.Encoding {
	case PLYASCII:
		values = newPLYASCIIReader(br)
	case PLYBinaryLittleEndian:
		values = &plyBinaryReader{r: br, order: binary.LittleEndian}
	default:
		values = &plyBinaryReader{r: br, order: binary.BigEndian}
	}

	m := &mesh.Mesh{}
	for _, el := range header.Elements {
		switch el.Name {
		case "vertex":
			if err := readPLYVertices(values, el, m); err != nil {
				return nil, err
			}
		case "face":
			if err := readPLYFaces(values, el, m); err != nil {
				return nil, err
			}
		default:
			if err := skipPLYElement(values, el); err != nil {
				return nil, err
			}
		}
	}

	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return nil, fmt.Errorf("%w: face %d references %d (have %d vertices)",
					ErrPLYIndexBounds, i, idx, len(m.Vertices))
			}
		}
	}
	return m, nil
}

// LoadPLY reads a PLY file from disk.
func LoadPLY(path string) (*mesh.Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := ParsePLY(file)
	if err != nil {
		return nil, err
	}
	m.Name = BaseName(path)
	return m, nil
}

func readPLYHeader(br *bufio.Reader) (*plyHeader, error) {
	magic, err := br.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, ErrInvalidPLYMagic
	}

	h := &plyHeader{}
	sawFormat := false
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: missing end_header", ErrInvalidPLYHeader)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: bad format line", ErrInvalidPLYHeader)
			}
			switch fields[1] {
			case "ascii":
				h.Encoding = PLYASCII
			case "binary_little_endian":
				h.Encoding = PLYBinaryLittleEndian
			case "binary_big_endian":
				h.Encoding = PLYBinaryBigEndian
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedPLYFormat, fields[1])
			}
			sawFormat = true
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrInvalidPLYHeader, strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: bad element count %q", ErrInvalidPLYHeader, fields[2])
			}
			h.Elements = append(h.Elements, plyElement{Name: fields[1], Count: count})
		case "property":
			if len(h.Elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrInvalidPLYHeader)
			}
			prop, err := parsePLYProperty(fields)
			if err != nil {
				return nil, err
			}
			el := &h.Elements[len(h.Elements)-1]
			el.Properties = append(el.Properties, prop)
		case "end_header":
			if !sawFormat {
				return nil, fmt.Errorf("%w: missing format line", ErrInvalidPLYHeader)
			}
			return h, nil
		case "comment", "obj_info":
		default:
			return nil, fmt.Errorf("%w: unexpected keyword %q", ErrInvalidPLYHeader, fields[0])
		}
	}
}

func parsePLYProperty(fields []string) (plyProperty, error) {
	if len(fields) == 5 && fields[1] == "list" {
		if _, ok := plyTypeSizes[fields[2]]; !ok {
			return plyProperty{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPLYHeader, fields[2])
		}
		if _, ok := plyTypeSizes[fields[3]]; !ok {
			return plyProperty{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPLYHeader, fields[3])
		}
		return plyProperty{Name: fields[4], Type: fields[3], IsList: true, CountType: fields[2]}, nil
	}
	if len(fields) == 3 {
		if _, ok := plyTypeSizes[fields[1]]; !ok {
			return plyProperty{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPLYHeader, fields[1])
		}
		return plyProperty{Name: fields[2], Type: fields[1]}, nil
	}
	return plyProperty{}, fmt.Errorf("%w: bad property line", ErrInvalidPLYHeader)
}

func readPLYVertices(values plyValueReader, el plyElement, m *mesh.Mesh) error {
	axis := map[string]int{"x": 0, "y": 1, "z": 2}
	found := 0
	for _, p := range el.Properties {
		if _, ok := axis[p.Name]; ok && !p.IsList {
			found++
		}
	}
	if found != 3 {
		return ErrMissingPLYCoordinates
	}

	m.Vertices = make([]mgl64.Vec3, 0, el.Count)
	for i := 0; i < el.Count; i++ {
		var v mgl64.Vec3
		for _, p := range el.Properties {
			vals, err := readPLYProperty(values, p)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", i, err)
			}
			if a, ok := axis[p.Name]; ok && !p.IsList {
				v[a] = vals[0]
			}
		}
		m.Vertices = append(m.Vertices, v)
	}
	return nil
}

func readPLYFaces(values plyValueReader, el plyElement, m *mesh.Mesh) error {
	m.Faces = make([][]int, 0, el.Count)
	for i := 0; i < el.Count; i++ {
		var face []int
		for _, p := range el.Properties {
			vals, err := readPLYProperty(values, p)
			if err != nil {
				return fmt.Errorf("face %d: %w", i, err)
			}
			if p.IsList && (p.Name == "vertex_indices" || p.Name == "vertex_index") {
				face = make([]int, len(vals))
				for k, f := range vals {
					face[k] = int(f)
				}
			}
		}
		if len(face) >= 3 {
			m.Faces = append(m.Faces, face)
		}
	}
	return nil
}

func skipPLYElement(values plyValueReader, el plyElement) error {
	for i := 0; i < el.Count; i++ {
		for _, p := range el.Properties {
			if _, err := readPLYProperty(values, p); err != nil {
				return fmt.Errorf("%s %d: %w", el.Name, i, err)
			}
		}
	}
	return nil
}

func readPLYProperty(values plyValueReader, p plyProperty) ([]float64, error) {
	if !p.IsList {
		v, err := values.Read(p.Type)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}

	n, err := values.Read(p.CountType)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 1<<20 {
		return nil, fmt.Errorf("%w: list length %g", ErrTruncatedPLYData, n)
	}
	out := make([]float64, int(n))
	for i := range out {
		if out[i], err = values.Read(p.Type); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// plyValueReader yields successive property values as float64.
type plyValueReader interface {
	Read(typ string) (float64, error)
}

type plyASCIIReader struct {
	scanner *bufio.Scanner
}

func newPLYASCIIReader(r io.Reader) *plyASCIIReader {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &plyASCIIReader{scanner: s}
}

func (a *plyASCIIReader) Read(typ string) (float64, error) {
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, ErrTruncatedPLYData
	}
	v, err := strconv.ParseFloat(a.scanner.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s value %q", ErrTruncatedPLYData, typ, a.scanner.Text())
	}
	return v, nil
}

type plyBinaryReader struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *plyBinaryReader) Read(typ string) (float64, error) {
	size := plyTypeSizes[typ]
	buf := b.buf[:size]
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return 0, fmt.Errorf("%w: reading %s", ErrTruncatedPLYData, typ)
	}

	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(buf))), nil
	default:
		return math.Float64frombits(b.order.Uint64(buf)), nil
	}
}
