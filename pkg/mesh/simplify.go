package mesh

import (
	"fmt"

	"github.com/fogleman/simplify"
	"github.com/go-gl/mathgl/mgl64"
)

// Simplify returns a decimated copy of the mesh holding roughly factor times
// the current triangle count. Polygons are triangulated first.
func (m *Mesh) Simplify(factor float64) (*Mesh, error) {
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("simplify factor %g out of range (0, 1]", factor)
	}
	if factor == 1 {
		return m.Clone(), nil
	}

	src := ToSimplify(m)
	if len(src.Triangles) == 0 {
		return m.Clone(), nil
	}
	out := FromSimplify(m.Name, src.Simplify(factor))
	return out, nil
}

// ToSimplify converts the mesh into the decimator's triangle soup.
func ToSimplify(m *Mesh) *simplify.Mesh {
	tris := m.Triangles()
	out := make([]*simplify.Triangle, 0, len(tris))
	for _, t := range tris {
		out = append(out, simplify.NewTriangle(
			toSimplifyVector(m.Vertices[t[0]]),
			toSimplifyVector(m.Vertices[t[1]]),
			toSimplifyVector(m.Vertices[t[2]]),
		))
	}
	return simplify.NewMesh(out)
}

// FromSimplify converts a triangle soup back into an indexed mesh,
// merging vertices with identical positions.
func FromSimplify(name string, src *simplify.Mesh) *Mesh {
	m := &Mesh{Name: name}
	index := make(map[simplify.Vector]int)

	vertexID := func(v simplify.Vector) int {
		id, ok := index[v]
		if !ok {
			id = len(m.Vertices)
			m.Vertices = append(m.Vertices, mgl64.Vec3{v.X, v.Y, v.Z})
			index[v] = id
		}
		return id
	}

	for _, t := range src.Triangles {
		a, b, c := vertexID(t.V1), vertexID(t.V2), vertexID(t.V3)
		if a == b || b == c || a == c {
			continue
		}
		m.Faces = append(m.Faces, []int{a, b, c})
	}
	return m
}

func toSimplifyVector(v mgl64.Vec3) simplify.Vector {
	return simplify.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}
