package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateMesh is returned when a mesh has no extent to normalize against.
var ErrDegenerateMesh = errors.New("degenerate mesh: bounding box diagonal is zero")

// Policy selects the reference point moved to the origin during normalization.
type Policy int

// Normalization policies.
const (
	PolicyCentroid Policy = iota // mean vertex position
	PolicyMidpoint               // bounding box midpoint
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyCentroid:
		return "centroid"
	case PolicyMidpoint:
		return "midpoint"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "centroid":
		return PolicyCentroid, nil
	case "midpoint", "bbox":
		return PolicyMidpoint, nil
	default:
		return 0, fmt.Errorf("unknown normalization policy %q", s)
	}
}

// ReferencePoint returns the point the policy maps to the origin.
func (m *Mesh) ReferencePoint(p Policy) mgl64.Vec3 {
	if p == PolicyMidpoint {
		return m.Midpoint()
	}
	return m.Centroid()
}

// NormalizeMatrix returns the translate-then-scale matrix that places the
// reference point at the origin and gives the bounding box a unit diagonal.
// Both the reference point and the diagonal come from the current vertices.
func (m *Mesh) NormalizeMatrix(p Policy) (mgl64.Mat4, error) {
	if len(m.Vertices) == 0 {
		return mgl64.Ident4(), fmt.Errorf("%w: mesh has no vertices", ErrDegenerateMesh)
	}

	diagonal := m.Bounds().Diagonal()
	if diagonal <= 0 || math.IsNaN(diagonal) || math.IsInf(diagonal, 0) {
		return mgl64.Ident4(), fmt.Errorf("%w (diagonal=%g)", ErrDegenerateMesh, diagonal)
	}

	ref := m.ReferencePoint(p)
	translate := mgl64.Translate3D(-ref.X(), -ref.Y(), -ref.Z())
	scale := 1 / diagonal
	return mgl64.Scale3D(scale, scale, scale).Mul4(translate), nil
}

// Normalize moves the mesh into canonical placement in place and returns
// the applied matrix. The mesh is left untouched on error.
func (m *Mesh) Normalize(p Policy) (mgl64.Mat4, error) {
	mat, err := m.NormalizeMatrix(p)
	if err != nil {
		return mat, err
	}
	m.Transform(mat)
	return mat, nil
}
