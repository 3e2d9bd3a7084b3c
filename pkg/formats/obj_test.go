package formats

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/meshshot/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

const testOBJ = `# a quad and a triangle
o sample
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vn 0 0 1
f 1/1/1 2/1/1 3/1/1 4/1/1
f -4//1 -3//1 -1//1
`

func TestParseOBJ_ValidFile(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(testOBJ))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	if m.Name != "sample" {
		t.Errorf("expected name 'sample', got %q", m.Name)
	}
	if len(m.Vertices) != 4 {
		t.Fatalf("expected 4 vertices, got %d", len(m.Vertices))
	}
	if m.Vertices[2] != (mgl64.Vec3{1, 1, 0}) {
		t.Errorf("unexpected vertex 2: %v", m.Vertices[2])
	}
	if len(m.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(m.Faces))
	}
	if got := m.Faces[0]; len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Errorf("unexpected quad face: %v", got)
	}
	// Negative indices are relative to the vertices read so far.
	if got := m.Faces[1]; got[0] != 0 || got[1] != 1 || got[2] != 3 {
		t.Errorf("unexpected relative face: %v", got)
	}
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"short vertex", "v 1 2\n", ErrInvalidOBJ},
		{"bad coordinate", "v 1 x 2\n", ErrInvalidOBJ},
		{"short face", "v 0 0 0\nf 1 1\n", ErrInvalidOBJ},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrOBJIndexBounds},
		{"index past end", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", ErrOBJIndexBounds},
		{"bad index", "v 0 0 0\nf a b c\n", ErrInvalidOBJ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteOBJ(t *testing.T) {
	m := mesh.New("tri", []mgl64.Vec3{{0, 0, 0}, {0.5, 0, 0}, {0, -0.25, 1e-7}}, [][]int{{0, 1, 2}})

	var buf bytes.Buffer
	if err := WriteOBJ(&buf, m); err != nil {
		t.Fatalf("WriteOBJ failed: %v", err)
	}

	want := "o tri\nv 0 0 0\nv 0.5 0 0\nv 0 -0.25 1e-07\nf 1 2 3\n"
	if buf.String() != want {
		t.Errorf("unexpected OBJ output:\n%s\nwant:\n%s", buf.String(), want)
	}

	back, err := ParseOBJ(&buf)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	for i := range m.Vertices {
		if back.Vertices[i] != m.Vertices[i] {
			t.Errorf("vertex %d changed: %v != %v", i, back.Vertices[i], m.Vertices[i])
		}
	}
}

func TestSaveAndLoadOBJ(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "bunny_normalized.obj")

	m := mesh.New("", []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, [][]int{{0, 1, 2}})
	if err := SaveOBJ(path, m); err != nil {
		t.Fatalf("SaveOBJ failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	loaded, err := LoadOBJ(path)
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
	if loaded.Name != "bunny_normalized" {
		t.Errorf("expected name from file, got %q", loaded.Name)
	}
	if loaded.FaceCount() != 1 || loaded.VertexCount() != 3 {
		t.Errorf("unexpected counts: %d faces, %d vertices", loaded.FaceCount(), loaded.VertexCount())
	}
}
