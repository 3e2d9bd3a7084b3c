// Package render defines the boundary to the external renderer.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/meshshot/internal/renderconfig"
)

// ErrEngineFailed is returned when the renderer could not produce an image.
var ErrEngineFailed = errors.New("render engine failed")

// Job is everything an engine needs for one render.
type Job struct {
	Variant renderconfig.Variant
	Config  renderconfig.RenderConfig
	Voxels  []mgl64.Vec3
	NoPlane bool
}

// Engine renders one job. Implementations keep no scene state between
// calls.
type Engine interface {
	Render(ctx context.Context, job *Job) error
}

// jobFile is the on-disk job document read by the driver script.
type jobFile struct {
	Variant string                    `json:"variant"`
	Config  renderconfig.RenderConfig `json:"config"`
	Voxels  []mgl64.Vec3              `json:"voxels"`
	NoPlane bool                      `json:"no_plane"`
}

// MarshalJSON encodes the job in the driver's format.
func (j *Job) MarshalJSON() ([]byte, error) {
	voxels := j.Voxels
	if voxels == nil {
		voxels = []mgl64.Vec3{}
	}
	return json.Marshal(jobFile{
		Variant: j.Variant.String(),
		Config:  j.Config,
		Voxels:  voxels,
		NoPlane: j.NoPlane,
	})
}

// WriteJob writes the job document to path.
func WriteJob(path string, job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// JobPath returns the dry-run job file that sits next to an output image.
func JobPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".job.json"
}
