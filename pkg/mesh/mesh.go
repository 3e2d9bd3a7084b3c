// Package mesh provides the in-memory mesh model and its canonical placement.
package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is an ordered set of vertex positions and polygon faces.
// Faces hold 0-based indices into Vertices.
type Mesh struct {
	Name     string
	Vertices []mgl64.Vec3
	Faces    [][]int
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Size returns the extent of the box on each axis.
func (b Bounds) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Diagonal returns the distance between the min and max corners.
func (b Bounds) Diagonal() float64 {
	return b.Size().Len()
}

// Midpoint returns the center of the box.
func (b Bounds) Midpoint() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// New creates a mesh from vertices and faces.
func New(name string, vertices []mgl64.Vec3, faces [][]int) *Mesh {
	return &Mesh{Name: name, Vertices: vertices, Faces: faces}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Bounds returns the axis-aligned bounding box of all vertices.
// An empty mesh yields a zero box.
func (m *Mesh) Bounds() Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}

	b := Bounds{
		Min: mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			if v[i] < b.Min[i] {
				b.Min[i] = v[i]
			}
			if v[i] > b.Max[i] {
				b.Max[i] = v[i]
			}
		}
	}
	return b
}

// Centroid returns the mean vertex position.
func (m *Mesh) Centroid() mgl64.Vec3 {
	if len(m.Vertices) == 0 {
		return mgl64.Vec3{}
	}
	var sum mgl64.Vec3
	for _, v := range m.Vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(m.Vertices)))
}

// Midpoint returns the center of the bounding box.
func (m *Mesh) Midpoint() mgl64.Vec3 {
	return m.Bounds().Midpoint()
}

// Transform applies an affine matrix to every vertex in place.
func (m *Mesh) Transform(mat mgl64.Mat4) {
	for i, v := range m.Vertices {
		m.Vertices[i] = mat.Mul4x1(v.Vec4(1)).Vec3()
	}
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	vertices := make([]mgl64.Vec3, len(m.Vertices))
	copy(vertices, m.Vertices)

	faces := make([][]int, len(m.Faces))
	for i, f := range m.Faces {
		faces[i] = append([]int(nil), f...)
	}
	return &Mesh{Name: m.Name, Vertices: vertices, Faces: faces}
}

// Triangles returns the faces fan-triangulated as index triples.
// Faces with fewer than three vertices are skipped.
func (m *Mesh) Triangles() [][3]int {
	var tris [][3]int
	for _, f := range m.Faces {
		for i := 1; i+1 < len(f); i++ {
			tris = append(tris, [3]int{f[0], f[i], f[i+1]})
		}
	}
	return tris
}
