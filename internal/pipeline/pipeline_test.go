package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/meshshot/internal/logger"
	"github.com/Faultbox/meshshot/internal/render"
	"github.com/Faultbox/meshshot/internal/renderconfig"
	"github.com/Faultbox/meshshot/pkg/formats"
	"github.com/Faultbox/meshshot/pkg/mesh"
)

const eps = 1e-9

// fakeEngine records jobs and checks the normalized mesh exists while
// rendering.
type fakeEngine struct {
	mu        sync.Mutex
	jobs      []render.Job
	meshSeen  []bool
	err       error
	failAfter int // fail on this call number (1-based); 0 never
}

func (f *fakeEngine) Render(ctx context.Context, job *render.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, statErr := os.Stat(job.Config.MeshPath)
	f.jobs = append(f.jobs, *job)
	f.meshSeen = append(f.meshSeen, statErr == nil)
	if f.failAfter > 0 && len(f.jobs) == f.failAfter {
		return f.err
	}
	if f.failAfter == 0 && f.err != nil {
		return f.err
	}
	return nil
}

func (f *fakeEngine) Jobs() []render.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]render.Job(nil), f.jobs...)
}

// lopsided has a centroid away from its bounding box midpoint.
func lopsided(name string) *mesh.Mesh {
	v := []mgl64.Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {6, 3, 9},
	}
	f := [][]int{{0, 1, 2}, {0, 2, 3}, {1, 2, 4}}
	return mesh.New(name, v, f)
}

func writeMesh(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, formats.SaveOBJ(path, lopsided("lopsided")))
	return path
}

func testOptions(t *testing.T, variant renderconfig.Variant) Options {
	t.Helper()
	root := t.TempDir()
	return Options{
		Variant:    variant,
		Input:      writeMesh(t, filepath.Join(root, "meshes", "bunny.v2.obj")),
		Index:      0,
		Resolution: 256,
		Samples:    16,
		OutputDir:  filepath.Join(root, "output_images"),
		TempDir:    filepath.Join(root, "temp_obj"),
	}
}

func TestValidateOptions(t *testing.T) {
	base := Options{Input: "bunny.obj", Resolution: 1440, Samples: 200}
	require.NoError(t, base.Validate())

	tests := map[string]func(o *Options){
		"no input":          func(o *Options) { o.Input = "" },
		"negative index":    func(o *Options) { o.Index = -1 },
		"zero resolution":   func(o *Options) { o.Resolution = 0 },
		"zero samples":      func(o *Options) { o.Samples = 0 },
		"simplify range":    func(o *Options) { o.Simplify = 1.5 },
		"voxels on default": func(o *Options) { o.VoxelPath = "voxels.txt" },
		"plane on default":  func(o *Options) { o.NoPlane = true },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			o := base
			mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
		})
	}
}

func TestOutputFolder(t *testing.T) {
	o := Options{OutputDir: "output_images", Subfolder: "roots"}
	assert.Equal(t, "output_images", o.OutputFolder())

	o.Variant = renderconfig.VariantVoxel
	assert.Equal(t, filepath.Join("output_images", "roots"), o.OutputFolder())
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, mesh.PolicyCentroid, PolicyFor(renderconfig.VariantDefault))
	assert.Equal(t, mesh.PolicyMidpoint, PolicyFor(renderconfig.VariantVoxel))
}

func TestRunDefaultVariant(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	engine := &fakeEngine{}

	results, err := Run(context.Background(), opts, engine)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, filepath.Join(opts.OutputDir, "bunny_0.json"), res.Snapshot)
	assert.Equal(t, filepath.Join(opts.OutputDir, "bunny_0.png"), res.Image)
	assert.Equal(t, filepath.Join(opts.TempDir, "bunny_normalized.obj"), res.MeshPath)
	assert.Equal(t, renderconfig.SourceDefaults, res.Source)

	jobs := engine.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, res.Image, jobs[0].Config.OutputPath)
	assert.Equal(t, renderconfig.Resolution{256, 256}, jobs[0].Config.ImageResolution)
	assert.True(t, engine.meshSeen[0])

	// The default variant keeps its normalized mesh, centered on the centroid.
	m, err := formats.LoadOBJ(res.MeshPath)
	require.NoError(t, err)
	assert.Less(t, m.Centroid().Len(), eps, "centroid %v", m.Centroid())
	assert.InDelta(t, 1, m.Bounds().Diagonal(), eps)

	persisted, err := renderconfig.Load(res.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, jobs[0].Config, persisted)
}

func TestRunSourceUntouched(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	before, err := os.ReadFile(opts.Input)
	require.NoError(t, err)

	_, err = Run(context.Background(), opts, &fakeEngine{})
	require.NoError(t, err)

	after, err := os.ReadFile(opts.Input)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunPersistedSnapshotWins(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	engine := &fakeEngine{}

	_, err := Run(context.Background(), opts, engine)
	require.NoError(t, err)

	snapshot := opts.SnapshotPath(opts.Input)
	edited, err := renderconfig.Load(snapshot)
	require.NoError(t, err)
	edited.MeshRotation = renderconfig.Vec3{90, 0, 45}
	edited.NumberOfSamples = 500
	require.NoError(t, renderconfig.Save(snapshot, edited))

	// A different resolution flag does not override the snapshot.
	opts.Resolution = 4096
	results, err := Run(context.Background(), opts, engine)
	require.NoError(t, err)
	assert.Equal(t, renderconfig.SourceSnapshot, results[0].Source)

	jobs := engine.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, edited, jobs[1].Config)

	// Force restores the defaults.
	opts.Force = true
	_, err = Run(context.Background(), opts, engine)
	require.NoError(t, err)
	jobs = engine.Jobs()
	assert.Equal(t, renderconfig.Resolution{4096, 4096}, jobs[2].Config.ImageResolution)
	assert.Equal(t, 16, jobs[2].Config.NumberOfSamples)
}

func TestRunCorruptSnapshot(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	require.NoError(t, os.MkdirAll(opts.OutputDir, 0755))
	require.NoError(t, os.WriteFile(opts.SnapshotPath(opts.Input), []byte(`{"shading": `), 0644))

	engine := &fakeEngine{}
	_, err := Run(context.Background(), opts, engine)
	assert.ErrorIs(t, err, renderconfig.ErrSnapshotCorrupt)
	assert.Empty(t, engine.Jobs())
}

func TestRunVoxelVariant(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	opts.Subfolder = "roots"
	opts.NoPlane = true
	opts.VoxelPath = filepath.Join(t.TempDir(), "voxels.txt")
	require.NoError(t, os.WriteFile(opts.VoxelPath, []byte("0.1,0.2,0.3\troot\n\n-0.5,0,0.25\n"), 0644))

	engine := &fakeEngine{}
	results, err := Run(context.Background(), opts, engine)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, filepath.Join(opts.OutputDir, "roots", "bunny_0.json"), results[0].Snapshot)

	jobs := engine.Jobs()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].NoPlane)
	assert.Equal(t, []mgl64.Vec3{{0.1, 0.2, 0.3}, {-0.5, 0, 0.25}}, jobs[0].Voxels)
	require.NotNil(t, jobs[0].Config.CamLocation)
	assert.True(t, engine.meshSeen[0], "normalized mesh must exist during render")

	_, err = os.Stat(results[0].MeshPath)
	assert.True(t, os.IsNotExist(err), "voxel variant must remove the normalized mesh")
}

func TestRunVoxelRemovesMeshOnFailure(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	engine := &fakeEngine{err: render.ErrEngineFailed}

	_, err := Run(context.Background(), opts, engine)
	assert.ErrorIs(t, err, render.ErrEngineFailed)

	_, statErr := os.Stat(formats.NormalizedOBJPath(opts.TempDir, opts.Input))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunDegenerateMesh(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	point := mesh.New("point", []mgl64.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}, [][]int{{0, 1, 2}})
	require.NoError(t, formats.SaveOBJ(opts.Input, point))

	engine := &fakeEngine{}
	_, err := Run(context.Background(), opts, engine)
	assert.ErrorIs(t, err, mesh.ErrDegenerateMesh)
	assert.Empty(t, engine.Jobs())

	_, statErr := os.Stat(opts.SnapshotPath(opts.Input))
	assert.True(t, os.IsNotExist(statErr), "no snapshot for a mesh that cannot be normalized")
}

func TestRunBadVoxelFile(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	opts.VoxelPath = filepath.Join(t.TempDir(), "voxels.txt")
	require.NoError(t, os.WriteFile(opts.VoxelPath, []byte("0.1,0.2\n"), 0644))

	_, err := Run(context.Background(), opts, &fakeEngine{})
	assert.ErrorIs(t, err, formats.ErrInvalidVoxelLine)
}

func TestRunMissingInput(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	opts.Input = filepath.Join(t.TempDir(), "missing.obj")

	_, err := Run(context.Background(), opts, &fakeEngine{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestRunFolder(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	dir := filepath.Dir(opts.Input)
	writeMesh(t, filepath.Join(dir, "a_root.obj"))
	writeMesh(t, filepath.Join(dir, "c_root.obj"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))
	opts.Input = dir

	engine := &fakeEngine{}
	results, err := Run(context.Background(), opts, engine)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var bases []string
	for _, r := range results {
		bases = append(bases, filepath.Base(r.Snapshot))
	}
	assert.Equal(t, []string{"a_root_0.json", "bunny_0.json", "c_root_0.json"}, bases)
}

func TestRunFolderStopsAtFirstFailure(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	dir := filepath.Dir(opts.Input)
	writeMesh(t, filepath.Join(dir, "a_root.obj"))
	writeMesh(t, filepath.Join(dir, "c_root.obj"))
	opts.Input = dir

	engine := &fakeEngine{err: errors.New("boom"), failAfter: 2}
	results, err := Run(context.Background(), opts, engine)
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, engine.Jobs(), 2)
}

func TestRunFolderRequiresVoxelVariant(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	opts.Input = filepath.Dir(opts.Input)

	_, err := Run(context.Background(), opts, &fakeEngine{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestRunEmptyFolder(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	opts.Input = t.TempDir()

	_, err := Run(context.Background(), opts, &fakeEngine{})
	assert.ErrorIs(t, err, ErrNoMeshes)
}

func TestRunSimplify(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	grid := &mesh.Mesh{Name: "grid"}
	const n = 10
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			grid.Vertices = append(grid.Vertices, mgl64.Vec3{float64(x), float64(y), float64((x * y) % 3)})
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*(n+1) + x
			grid.Faces = append(grid.Faces, []int{i, i + 1, i + n + 2}, []int{i, i + n + 2, i + n + 1})
		}
	}
	require.NoError(t, formats.SaveOBJ(opts.Input, grid))
	opts.Simplify = 0.25

	results, err := Run(context.Background(), opts, &fakeEngine{})
	require.NoError(t, err)

	m, err := formats.LoadOBJ(results[0].MeshPath)
	require.NoError(t, err)
	assert.Less(t, m.FaceCount(), len(grid.Faces))
}

func TestRunCancelled(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{}
	_, err := Run(ctx, opts, engine)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.Jobs())
}

func TestWatchRerendersOnEdit(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantDefault)
	engine := &fakeEngine{}
	rendered := make(chan error, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, WatchOptions{
			Options:  opts,
			Settle:   20 * time.Millisecond,
			OnRender: func(_ []Result, err error) { rendered <- err },
		}, engine)
	}()

	select {
	case err := <-rendered:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("initial render did not happen")
	}

	snapshot := opts.SnapshotPath(opts.Input)
	edited, err := renderconfig.Load(snapshot)
	require.NoError(t, err)
	edited.Shading = renderconfig.ShadingFlat
	require.NoError(t, renderconfig.Save(snapshot, edited))

	select {
	case err := <-rendered:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("edit did not trigger a re-render")
	}

	jobs := engine.Jobs()
	require.GreaterOrEqual(t, len(jobs), 2)
	assert.Equal(t, renderconfig.ShadingFlat, jobs[len(jobs)-1].Config.Shading)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

type engineFunc func(ctx context.Context, job *render.Job) error

func (f engineFunc) Render(ctx context.Context, job *render.Job) error { return f(ctx, job) }

func TestWatchLogsUnreadableSnapshot(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	opts := testOptions(t, renderconfig.VariantDefault)
	snapshot := opts.SnapshotPath(opts.Input)
	engine := engineFunc(func(context.Context, *render.Job) error {
		return os.Remove(snapshot)
	})

	err := Watch(context.Background(), WatchOptions{Options: opts}, engine)
	assert.ErrorContains(t, err, "was not created")

	entries := logs.FilterMessage("Snapshot not readable after render").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, snapshot, entries[0].ContextMap()["path"])
}

func TestWatchRejectsFolder(t *testing.T) {
	opts := testOptions(t, renderconfig.VariantVoxel)
	opts.Input = filepath.Dir(opts.Input)

	err := Watch(context.Background(), WatchOptions{Options: opts}, &fakeEngine{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
