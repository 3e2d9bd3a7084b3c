// Package renderconfig holds the named rendering parameters handed to the
// renderer and their persisted JSON snapshots.
package renderconfig

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
)

// Vec3 is a 3-tuple serialized as a JSON array.
type Vec3 [3]float64

// UnmarshalJSON accepts exactly three numbers.
func (v *Vec3) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) != len(v) {
		return fmt.Errorf("want %d numbers, got %d", len(v), len(values))
	}
	copy(v[:], values)
	return nil
}

// Resolution is a width,height pair serialized as a JSON array.
type Resolution [2]int

// UnmarshalJSON accepts exactly two integers.
func (r *Resolution) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) != len(r) {
		return fmt.Errorf("want %d integers, got %d", len(r), len(values))
	}
	copy(r[:], values)
	return nil
}

// Variant selects the built-in camera, light and ground defaults.
type Variant int

// Render variants.
const (
	VariantDefault Variant = iota // single mesh, one reference orientation
	VariantVoxel                  // explicit camera/light/ground, optional voxel overlay
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantDefault:
		return "default"
	case VariantVoxel:
		return "voxel"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant converts a variant name to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "default", "":
		return VariantDefault, nil
	case "voxel":
		return VariantVoxel, nil
	default:
		return 0, fmt.Errorf("unknown render variant %q", s)
	}
}

// Shading modes.
const (
	ShadingFlat   = "flat"
	ShadingSmooth = "smooth"
)

// RenderConfig is the full parameter set for one render.
// Field names match the snapshot JSON keys. Every key without omitempty
// must be present in a snapshot.
type RenderConfig struct {
	OutputPath           string `json:"output_path"`
	ImageResolution      Resolution `json:"image_resolution"`
	NumberOfSamples      int        `json:"number_of_samples"`
	MeshPath             string     `json:"mesh_path"`
	MeshPosition         Vec3       `json:"mesh_position"`
	MeshRotation         Vec3       `json:"mesh_rotation"` // degrees
	MeshScale            Vec3       `json:"mesh_scale"`
	Shading              string     `json:"shading"`
	SubdivisionIteration int        `json:"subdivision_iteration"`
	MeshRGB              Vec3       `json:"mesh_RGB"`
	LightAngle           Vec3       `json:"light_angle"` // degrees

	GroundLocation *Vec3 `json:"ground_location,omitempty"`
	LightLocation  *Vec3 `json:"light_location,omitempty"`
	CamLocation    *Vec3 `json:"camLocation,omitempty"`
	CamRotation    *Vec3 `json:"camRotation,omitempty"` // degrees
}

// Params are the per-invocation values folded into the defaults.
type Params struct {
	OutputPath string
	MeshPath   string
	Resolution int
	Samples    int
}

// Defaults returns the built-in configuration for a variant.
func Defaults(v Variant, p Params) RenderConfig {
	cfg := RenderConfig{
		OutputPath:           p.OutputPath,
		ImageResolution:      Resolution{p.Resolution, p.Resolution},
		NumberOfSamples:      p.Samples,
		MeshPath:             p.MeshPath,
		Shading:              ShadingSmooth,
		SubdivisionIteration: 0,
	}

	switch v {
	case VariantVoxel:
		cfg.MeshPosition = Vec3{0, 0, 0}
		cfg.MeshRotation = Vec3{0, 0, 0}
		cfg.MeshScale = Vec3{1, 1, 1}
		cfg.MeshRGB = rgb(185, 157, 212)
		cfg.LightAngle = Vec3{-218.58, -21.71, 64.383}
		cfg.GroundLocation = &Vec3{0.38244, 0.19607, 0.38647}
		cfg.LightLocation = &Vec3{2.35055, 0.076824, -2.3451}
		cfg.CamLocation = &Vec3{0.035952, 0.5298, -1.3928}
		cfg.CamRotation = &Vec3{160, 0, 180}
	default:
		cfg.MeshPosition = Vec3{1.5042, 0.027193, 1.0916}
		cfg.MeshRotation = Vec3{-172.82, 24.136, -171.62}
		cfg.MeshScale = Vec3{1.5, 1.5, 1.5}
		cfg.MeshRGB = rgb(26, 150, 173)
		cfg.LightAngle = Vec3{6, -30, -155}
	}
	return cfg
}

func rgb(r, g, b float64) Vec3 {
	return Vec3{r / 255, g / 255, b / 255}
}

// Validate checks the values a renderer cannot work without.
func (c *RenderConfig) Validate() error {
	if c.OutputPath == "" {
		return fmt.Errorf("output_path is empty")
	}
	if c.MeshPath == "" {
		return fmt.Errorf("mesh_path is empty")
	}
	if c.ImageResolution[0] <= 0 || c.ImageResolution[1] <= 0 {
		return fmt.Errorf("image_resolution %v must be positive", c.ImageResolution)
	}
	if c.NumberOfSamples <= 0 {
		return fmt.Errorf("number_of_samples %d must be positive", c.NumberOfSamples)
	}
	if c.Shading != ShadingFlat && c.Shading != ShadingSmooth {
		return fmt.Errorf("shading %q must be %q or %q", c.Shading, ShadingFlat, ShadingSmooth)
	}
	if c.SubdivisionIteration < 0 {
		return fmt.Errorf("subdivision_iteration %d must not be negative", c.SubdivisionIteration)
	}
	for i, ch := range c.MeshRGB {
		if ch < 0 || ch > 1 {
			return fmt.Errorf("mesh_RGB[%d]=%g outside [0, 1]", i, ch)
		}
	}
	return nil
}

func stem(base string, index int) string {
	return base + "_" + strconv.Itoa(index)
}

// SnapshotPath returns <outputDir>/<base>_<index>.json, the identity of one
// persisted configuration.
func SnapshotPath(outputDir, base string, index int) string {
	return filepath.Join(outputDir, stem(base, index)+".json")
}

// ImagePath returns <outputDir>/<base>_<index>.png.
func ImagePath(outputDir, base string, index int) string {
	return filepath.Join(outputDir, stem(base, index)+".png")
}
