package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/meshshot/pkg/mesh"
)

// ErrUnsupportedMeshFormat is returned for file extensions with no reader.
var ErrUnsupportedMeshFormat = errors.New("unsupported mesh format")

type meshLoader func(path string) (*mesh.Mesh, error)

var meshLoaders = map[string]meshLoader{
	".obj":  LoadOBJ,
	".ply":  LoadPLY,
	".stl":  LoadSTL,
	".gltf": LoadGLTF,
	".glb":  LoadGLTF,
}

// MeshExtensions returns the supported mesh file extensions, sorted.
func MeshExtensions() []string {
	exts := make([]string, 0, len(meshLoaders))
	for ext := range meshLoaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsMeshFile reports whether path has a supported mesh extension.
func IsMeshFile(path string) bool {
	_, ok := meshLoaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadMesh reads a mesh file, choosing the reader by extension.
func LoadMesh(path string) (*mesh.Mesh, error) {
	ext := strings.ToLower(filepath.Ext(path))
	load, ok := meshLoaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedMeshFormat, ext,
			strings.Join(MeshExtensions(), ", "))
	}

	m, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return m, nil
}

// BaseName returns the file name up to its first dot, so
// "bunny.normalized.obj" becomes "bunny".
func BaseName(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// NormalizedOBJPath returns <tempDir>/<basename>_normalized.obj.
func NormalizedOBJPath(tempDir, input string) string {
	return filepath.Join(tempDir, BaseName(input)+"_normalized.obj")
}
