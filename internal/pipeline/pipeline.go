// Package pipeline runs one render invocation: load, normalize, export,
// resolve the configuration, persist it and hand the job to an engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/meshshot/internal/logger"
	"github.com/Faultbox/meshshot/internal/render"
	"github.com/Faultbox/meshshot/internal/renderconfig"
	"github.com/Faultbox/meshshot/pkg/formats"
	"github.com/Faultbox/meshshot/pkg/mesh"
)

// Pipeline errors.
var (
	ErrInvalidOptions = errors.New("invalid render options")
	ErrNoMeshes       = errors.New("no mesh files found")
)

// Options describes one invocation.
type Options struct {
	Variant renderconfig.Variant
	// Input is a mesh file, or a folder of meshes for the voxel variant.
	Input string
	Index int

	Resolution int
	Samples    int
	// Force discards any persisted snapshot.
	Force bool

	OutputDir string
	// Subfolder is appended to OutputDir for the voxel variant.
	Subfolder string
	TempDir   string

	// VoxelPath is an optional overlay point list (voxel variant).
	VoxelPath string
	NoPlane   bool

	// Simplify decimates the mesh to this fraction of its triangles
	// before normalization; 0 disables it.
	Simplify float64
}

// Result records what one mesh render produced.
type Result struct {
	Input    string
	Snapshot string
	Image    string
	MeshPath string
	Source   renderconfig.Source
}

// Validate checks option values that do not depend on the filesystem.
func (o *Options) Validate() error {
	switch {
	case o.Input == "":
		return fmt.Errorf("%w: input path is required", ErrInvalidOptions)
	case o.Index < 0:
		return fmt.Errorf("%w: variant index %d must not be negative", ErrInvalidOptions, o.Index)
	case o.Resolution <= 0:
		return fmt.Errorf("%w: resolution %d must be positive", ErrInvalidOptions, o.Resolution)
	case o.Samples <= 0:
		return fmt.Errorf("%w: samples %d must be positive", ErrInvalidOptions, o.Samples)
	case o.Simplify < 0 || o.Simplify > 1:
		return fmt.Errorf("%w: simplify factor %g outside [0, 1]", ErrInvalidOptions, o.Simplify)
	case o.Variant != renderconfig.VariantVoxel && (o.Subfolder != "" || o.VoxelPath != "" || o.NoPlane):
		return fmt.Errorf("%w: subfolder, voxels and no-plane apply to the voxel variant only", ErrInvalidOptions)
	}
	return nil
}

// OutputFolder returns the directory that receives images and snapshots.
func (o *Options) OutputFolder() string {
	if o.Variant == renderconfig.VariantVoxel && o.Subfolder != "" {
		return filepath.Join(o.OutputDir, o.Subfolder)
	}
	return o.OutputDir
}

// SnapshotPath returns the snapshot for a single mesh input.
func (o *Options) SnapshotPath(input string) string {
	return renderconfig.SnapshotPath(o.OutputFolder(), formats.BaseName(input), o.Index)
}

// PolicyFor returns the normalization reference point used by a variant.
func PolicyFor(v renderconfig.Variant) mesh.Policy {
	if v == renderconfig.VariantVoxel {
		return mesh.PolicyMidpoint
	}
	return mesh.PolicyCentroid
}

// Run executes the pipeline. A folder input renders every mesh in it in
// name order and stops at the first failure.
func Run(ctx context.Context, opts Options, engine render.Engine) ([]Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	inputs, err := collectInputs(opts)
	if err != nil {
		return nil, err
	}

	var voxels []mgl64.Vec3
	if opts.VoxelPath != "" {
		voxels, err = formats.LoadVoxels(opts.VoxelPath)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded voxels", zap.String("path", opts.VoxelPath), zap.Int("count", len(voxels)))
	}

	for _, dir := range []string{opts.OutputFolder(), opts.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	results := make([]Result, 0, len(inputs))
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := runOne(ctx, opts, input, voxels, engine)
		if err != nil {
			return results, fmt.Errorf("%s: %w", input, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// collectInputs expands a folder input into its mesh files.
func collectInputs(opts Options) ([]string, error) {
	info, err := os.Stat(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if !info.IsDir() {
		return []string{opts.Input}, nil
	}
	if opts.Variant != renderconfig.VariantVoxel {
		return nil, fmt.Errorf("%w: folder input requires the voxel variant", ErrInvalidOptions)
	}

	entries, err := os.ReadDir(opts.Input)
	if err != nil {
		return nil, err
	}
	var inputs []string
	for _, e := range entries {
		if e.IsDir() || !formats.IsMeshFile(e.Name()) {
			continue
		}
		inputs = append(inputs, filepath.Join(opts.Input, e.Name()))
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMeshes, opts.Input)
	}
	sort.Strings(inputs)
	return inputs, nil
}

func runOne(ctx context.Context, opts Options, input string, voxels []mgl64.Vec3, engine render.Engine) (Result, error) {
	base := formats.BaseName(input)
	outDir := opts.OutputFolder()
	res := Result{
		Input:    input,
		Snapshot: renderconfig.SnapshotPath(outDir, base, opts.Index),
		Image:    renderconfig.ImagePath(outDir, base, opts.Index),
		MeshPath: formats.NormalizedOBJPath(opts.TempDir, input),
	}

	m, err := formats.LoadMesh(input)
	if err != nil {
		return res, err
	}
	logger.Info("Loaded mesh",
		zap.String("path", input),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("faces", m.FaceCount()))

	if opts.Simplify > 0 && opts.Simplify < 1 {
		before := m.FaceCount()
		if m, err = m.Simplify(opts.Simplify); err != nil {
			return res, err
		}
		logger.Info("Simplified mesh", zap.Int("faces_before", before), zap.Int("faces_after", m.FaceCount()))
	}

	policy := PolicyFor(opts.Variant)
	if _, err := m.Normalize(policy); err != nil {
		return res, fmt.Errorf("normalizing %s: %w", input, err)
	}
	logger.Debug("Normalized mesh", zap.Stringer("policy", policy), zap.Float64("diagonal", m.Bounds().Diagonal()))

	// The voxel renderer reads the mesh once; the default variant keeps it
	// because the snapshot refers to it.
	if opts.Variant == renderconfig.VariantVoxel {
		defer removeTemp(res.MeshPath)
	}
	if err := formats.SaveOBJ(res.MeshPath, m); err != nil {
		return res, fmt.Errorf("exporting normalized mesh: %w", err)
	}

	defaults := renderconfig.Defaults(opts.Variant, renderconfig.Params{
		OutputPath: res.Image,
		MeshPath:   res.MeshPath,
		Resolution: opts.Resolution,
		Samples:    opts.Samples,
	})
	cfg, source, err := renderconfig.Resolve(res.Snapshot, defaults, opts.Force)
	if err != nil {
		return res, err
	}
	res.Source = source
	logger.Info("Configuration resolved", zap.String("snapshot", res.Snapshot), zap.Stringer("source", source))

	job := &render.Job{
		Variant: opts.Variant,
		Config:  cfg,
		Voxels:  voxels,
		NoPlane: opts.NoPlane,
	}
	if err := engine.Render(ctx, job); err != nil {
		return res, err
	}
	return res, nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove temp mesh", zap.String("path", path), zap.Error(err))
	}
}
