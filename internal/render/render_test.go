package render

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshshot/internal/render/driver"
	"github.com/Faultbox/meshshot/internal/renderconfig"
)

func testJob(dir string) *Job {
	cfg := renderconfig.Defaults(renderconfig.VariantVoxel, renderconfig.Params{
		OutputPath: filepath.Join(dir, "bunny_0.png"),
		MeshPath:   filepath.Join(dir, "bunny_normalized.obj"),
		Resolution: 64,
		Samples:    8,
	})
	return &Job{
		Variant: renderconfig.VariantVoxel,
		Config:  cfg,
		Voxels:  []mgl64.Vec3{{0.1, 0.2, 0.3}},
		NoPlane: true,
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestJobJSON(t *testing.T) {
	job := testJob("out")

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "voxel", doc["variant"])
	assert.Equal(t, true, doc["no_plane"])
	assert.Equal(t, []any{[]any{0.1, 0.2, 0.3}}, doc["voxels"])

	cfg, ok := doc["config"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, cfg, "camLocation")
	assert.Equal(t, filepath.Join("out", "bunny_0.png"), cfg["output_path"])
}

func TestJobJSONEmptyVoxels(t *testing.T) {
	job := testJob("out")
	job.Voxels = nil

	data, err := json.Marshal(job)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"voxels":[]`)
}

func TestJobPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "bunny_0.job.json"), JobPath(filepath.Join("out", "bunny_0.png")))
}

func TestDriverScriptEmbedded(t *testing.T) {
	assert.Contains(t, driver.Script, "render_mesh_with_voxels")
	assert.Contains(t, driver.Script, "render_mesh_default")

	// Stray ground planes are cleared before a default render.
	removal := strings.Index(driver.Script, "        remove_planes()")
	render := strings.Index(driver.Script, "bt.render_mesh_default(")
	require.GreaterOrEqual(t, removal, 0)
	assert.Less(t, removal, render)
	assert.Contains(t, driver.Script, `obj.data.name.startswith("Plane")`)
}

func TestCommandLine(t *testing.T) {
	e := &BlenderEngine{Command: `"/opt/Blender Foundation/blender" -b --python {script} -- {job}`}

	args, err := e.commandLine("/tmp/a b/render_job.py", "/tmp/a b/job.json")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/opt/Blender Foundation/blender", "-b", "--python", "/tmp/a b/render_job.py", "--", "/tmp/a b/job.json",
	}, args)
}

func TestCommandLineErrors(t *testing.T) {
	_, err := (&BlenderEngine{Command: "   "}).commandLine("s", "j")
	assert.Error(t, err)

	_, err = (&BlenderEngine{Command: `blender "unterminated`}).commandLine("s", "j")
	assert.Error(t, err)
}

func TestBlenderEngineRunsCommand(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	job := testJob(dir)
	record := filepath.Join(dir, "record.txt")

	// The fake renderer records the job path and copies the job to the image.
	e := &BlenderEngine{
		Command: `sh -c "echo {job} > ` + record + `; cat {job} > ` + job.Config.OutputPath + `; echo rendering"`,
	}
	require.NoError(t, e.Render(context.Background(), job))

	image, err := os.ReadFile(job.Config.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(image), `"variant": "voxel"`)

	recorded, err := os.ReadFile(record)
	require.NoError(t, err)
	jobPath := strings.TrimSpace(string(recorded))
	_, err = os.Stat(filepath.Dir(jobPath))
	assert.True(t, os.IsNotExist(err), "job dir %s was not removed", filepath.Dir(jobPath))
}

func TestBlenderEngineWritesEmbeddedDriver(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	job := testJob(dir)

	e := &BlenderEngine{Command: `sh -c "cp {script} ` + job.Config.OutputPath + `"`}
	require.NoError(t, e.Render(context.Background(), job))

	got, err := os.ReadFile(job.Config.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, driver.Script, string(got))
}

func TestBlenderEngineDriverOverride(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	job := testJob(dir)
	custom := filepath.Join(dir, "custom.py")
	require.NoError(t, os.WriteFile(custom, []byte("# custom"), 0644))

	e := &BlenderEngine{
		Command:      `sh -c "cp {script} ` + job.Config.OutputPath + `"`,
		DriverScript: custom,
	}
	require.NoError(t, e.Render(context.Background(), job))

	got, err := os.ReadFile(job.Config.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "# custom", string(got))
}

func TestBlenderEngineNonZeroExit(t *testing.T) {
	requireShell(t)
	e := &BlenderEngine{Command: `sh -c "echo boom >&2; exit 3"`}

	err := e.Render(context.Background(), testJob(t.TempDir()))
	assert.ErrorIs(t, err, ErrEngineFailed)
}

func TestBlenderEngineNoImage(t *testing.T) {
	requireShell(t)
	e := &BlenderEngine{Command: `sh -c "exit 0"`}

	err := e.Render(context.Background(), testJob(t.TempDir()))
	assert.ErrorIs(t, err, ErrEngineFailed)
	assert.Contains(t, err.Error(), "wrote no image")
}

func TestBlenderEngineMissingBinary(t *testing.T) {
	e := &BlenderEngine{Command: "meshshot-no-such-renderer --python {script} -- {job}"}

	err := e.Render(context.Background(), testJob(t.TempDir()))
	assert.ErrorIs(t, err, ErrEngineFailed)
}

func TestBlenderEngineTimeout(t *testing.T) {
	requireShell(t)
	e := &BlenderEngine{Command: `sh -c "exec sleep 5"`, Timeout: 50 * time.Millisecond}

	start := time.Now()
	err := e.Render(context.Background(), testJob(t.TempDir()))
	assert.ErrorIs(t, err, ErrEngineFailed)
	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestDryRunEngine(t *testing.T) {
	dir := t.TempDir()
	job := testJob(filepath.Join(dir, "nested"))

	require.NoError(t, DryRunEngine{}.Render(context.Background(), job))

	data, err := os.ReadFile(JobPath(job.Config.OutputPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"no_plane": true`)

	_, err = os.Stat(job.Config.OutputPath)
	assert.True(t, os.IsNotExist(err), "dry run must not produce an image")
}

func TestDryRunEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DryRunEngine{}.Render(ctx, testJob(t.TempDir()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLineLoggerSplitsLines(t *testing.T) {
	l := newLineLogger(0)
	n, err := l.Write([]byte("first\nsecond\npart"))
	require.NoError(t, err)
	assert.Equal(t, len("first\nsecond\npart"), n)
	assert.Equal(t, "part", l.buf.String())

	_, _ = l.Write([]byte("ial\n"))
	assert.Equal(t, 0, l.buf.Len())

	_, _ = l.Write([]byte("tail"))
	l.Flush()
	assert.Equal(t, 0, l.buf.Len())
}
