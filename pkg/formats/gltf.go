package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshshot/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// glTF errors.
var (
	ErrNoGLTFTriangles = errors.New("no triangle primitives found in glTF")
)

// LoadGLTF reads every triangle primitive of a .gltf or .glb file into a
// single mesh. Node transforms are not applied.
func LoadGLTF(path string) (*mesh.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}

	m := &mesh.Mesh{Name: BaseName(path)}
	for _, gm := range doc.Meshes {
		for _, primitive := range gm.Primitives {
			if primitive.Mode != gltf.PrimitiveTriangles {
				continue
			}
			posIdx, ok := primitive.Attributes[gltf.POSITION]
			if !ok {
				continue
			}

			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("reading positions of %q: %w", gm.Name, err)
			}

			var indices []uint32
			if primitive.Indices != nil {
				indices, err = modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
				if err != nil {
					return nil, fmt.Errorf("reading indices of %q: %w", gm.Name, err)
				}
			} else {
				indices = make([]uint32, len(positions))
				for k := range indices {
					indices[k] = uint32(k)
				}
			}

			base := len(m.Vertices)
			for _, p := range positions {
				m.Vertices = append(m.Vertices, mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
			}
			for i := 0; i+2 < len(indices); i += 3 {
				a, b, c := int(indices[i]), int(indices[i+1]), int(indices[i+2])
				if a >= len(positions) || b >= len(positions) || c >= len(positions) {
					return nil, fmt.Errorf("glTF index out of range in %q", gm.Name)
				}
				m.Faces = append(m.Faces, []int{base + a, base + b, base + c})
			}
		}
	}

	if len(m.Faces) == 0 {
		return nil, ErrNoGLTFTriangles
	}
	return m, nil
}
