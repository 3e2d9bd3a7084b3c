// meshrender normalizes meshes and renders them through an external
// renderer, keeping an editable configuration snapshot per mesh and index.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshshot/internal/config"
	"github.com/Faultbox/meshshot/internal/failure"
	"github.com/Faultbox/meshshot/internal/logger"
	"github.com/Faultbox/meshshot/internal/pipeline"
	"github.com/Faultbox/meshshot/internal/render"
	"github.com/Faultbox/meshshot/internal/renderconfig"
	"github.com/Faultbox/meshshot/pkg/formats"
	"github.com/Faultbox/meshshot/pkg/mesh"
)

func main() {
	var command string
	var args []string
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, command, args, os.Stdout)
	stop()
	logger.Sync()
	failure.Exit(err)
}

func run(ctx context.Context, command string, args []string, stdout io.Writer) error {
	switch command {
	case "":
		printUsage(os.Stderr)
		return failure.Usagef("missing command")
	case "render":
		return cmdRender(ctx, renderconfig.VariantDefault, args, stdout)
	case "voxel", "roots":
		return cmdRender(ctx, renderconfig.VariantVoxel, args, stdout)
	case "normalize", "norm":
		return cmdNormalize(args, stdout)
	case "watch":
		return cmdWatch(ctx, args)
	case "config":
		return cmdConfig(args, stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return failure.Usagef("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `meshrender - mesh normalization and snapshot-driven rendering

Usage:
  meshrender <command> [options]

Commands:
  render    -i <mesh> -o <index>            Render with the default camera setup
  voxel     -i <mesh|dir> -o <index>        Render with explicit camera, light and voxel overlay
  normalize -i <mesh> [-policy centroid]    Write a normalized OBJ without rendering
  watch     -mode default|voxel ...         Re-render whenever the snapshot is edited
  config    [-write path]                   Print or write the effective configuration

Render options:
  -i, -input <path>          Input mesh (.obj .ply .stl .gltf .glb) or folder (voxel)
  -o, -output_index <n>      Variant index used in output names
  -r, -resolution <px>       Square image resolution (default from config, 1440)
  -f, -force_update          Discard the persisted snapshot and use defaults
  -simplify <0..1>           Decimate to this fraction of triangles first
  -dry-run                   Write the render job instead of running the renderer

Voxel options:
  -d, -output_folder <name>  Subfolder under the output directory
  -n, -no_plane              Render without the ground plane
  -v, -voxel-txt <path>      Voxel overlay points, one "x,y,z<TAB>label" per line

Common options:
  -config <path>             Config file (default ./meshshot.yaml)
  -debug                     Debug logging
  -log-file <path>           Also log to a rotated file

Examples:
  meshrender render -i bunny.ply -o 0
  meshrender voxel -i roots/ -o 2 -d roots -n -v voxels.txt
  meshrender watch -mode voxel -i plant.obj -o 1`)
}

// renderFlags are the options shared by render, voxel and watch.
type renderFlags struct {
	common config.Flags

	input      string
	index      int
	resolution int
	force      bool
	simplify   float64
	dryRun     bool

	subfolder string
	noPlane   bool
	voxels    string
}

func (f *renderFlags) register(fs *flag.FlagSet, voxel bool) {
	f.common.Register(fs)

	fs.StringVar(&f.input, "i", "", "Input mesh file")
	fs.StringVar(&f.input, "input", "", "Input mesh file")
	fs.IntVar(&f.index, "o", -1, "Output variant index")
	fs.IntVar(&f.index, "output_index", -1, "Output variant index")
	fs.IntVar(&f.resolution, "r", 0, "Image resolution")
	fs.IntVar(&f.resolution, "resolution", 0, "Image resolution")
	fs.BoolVar(&f.force, "f", false, "Discard the persisted snapshot")
	fs.BoolVar(&f.force, "force_update", false, "Discard the persisted snapshot")
	fs.Float64Var(&f.simplify, "simplify", 0, "Decimate to this fraction of triangles")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Write the job file instead of rendering")

	if !voxel {
		return
	}
	fs.StringVar(&f.subfolder, "d", "", "Output subfolder")
	fs.StringVar(&f.subfolder, "output_folder", "", "Output subfolder")
	fs.BoolVar(&f.noPlane, "n", false, "Render without the ground plane")
	fs.BoolVar(&f.noPlane, "no_plane", false, "Render without the ground plane")
	fs.StringVar(&f.voxels, "v", "", "Voxel overlay file")
	fs.StringVar(&f.voxels, "voxel-txt", "", "Voxel overlay file")
}

// options builds pipeline options; flags win over the config file.
func (f *renderFlags) options(cfg *config.Config, variant renderconfig.Variant) (pipeline.Options, error) {
	if f.input == "" {
		return pipeline.Options{}, failure.Usagef("-i is required")
	}
	if f.index < 0 {
		return pipeline.Options{}, failure.Usagef("-o is required and must not be negative")
	}

	resolution := cfg.Render.Resolution
	if f.resolution != 0 {
		resolution = f.resolution
	}

	return pipeline.Options{
		Variant:    variant,
		Input:      f.input,
		Index:      f.index,
		Resolution: resolution,
		Samples:    cfg.Render.Samples,
		Force:      f.force,
		OutputDir:  cfg.Paths.OutputDir,
		Subfolder:  f.subfolder,
		TempDir:    cfg.Paths.TempDir,
		VoxelPath:  f.voxels,
		NoPlane:    f.noPlane,
		Simplify:   f.simplify,
	}, nil
}

func (f *renderFlags) engine(cfg *config.Config) render.Engine {
	if f.dryRun {
		return render.DryRunEngine{}
	}
	return render.NewBlenderEngine(cfg.Render)
}

// setup loads the configuration and starts logging.
func setup(flags *config.Flags) (*config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, failure.Usage(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)
	return cfg, nil
}

func cmdRender(ctx context.Context, variant renderconfig.Variant, args []string, stdout io.Writer) error {
	var f renderFlags
	fs := flag.NewFlagSet(variant.String(), flag.ExitOnError)
	f.register(fs, variant == renderconfig.VariantVoxel)
	fs.Parse(args)

	cfg, err := setup(&f.common)
	if err != nil {
		return err
	}
	opts, err := f.options(cfg, variant)
	if err != nil {
		return err
	}

	results, err := pipeline.Run(ctx, opts, f.engine(cfg))
	for _, r := range results {
		fmt.Fprintf(stdout, "%s -> %s (config: %s, %s)\n", r.Input, r.Image, r.Snapshot, r.Source)
	}
	return err
}

func cmdWatch(ctx context.Context, args []string) error {
	var f renderFlags
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	mode := fs.String("mode", "default", "Render variant: default or voxel")
	f.register(fs, true)
	fs.Parse(args)

	variant, err := renderconfig.ParseVariant(*mode)
	if err != nil {
		return failure.Usage(err)
	}
	cfg, err := setup(&f.common)
	if err != nil {
		return err
	}
	opts, err := f.options(cfg, variant)
	if err != nil {
		return err
	}

	logger.Info("Watch mode, press Ctrl+C to stop", zap.String("variant", variant.String()))
	return pipeline.Watch(ctx, pipeline.WatchOptions{Options: opts}, f.engine(cfg))
}

func cmdNormalize(args []string, stdout io.Writer) error {
	var common config.Flags
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	common.Register(fs)
	input := fs.String("i", "", "Input mesh file")
	policyName := fs.String("policy", "centroid", "Reference point: centroid or midpoint")
	out := fs.String("out", "", "Output OBJ (default <temp_dir>/<name>_normalized.obj)")
	fs.Parse(args)

	if *input == "" {
		return failure.Usagef("-i is required")
	}
	policy, err := mesh.ParsePolicy(*policyName)
	if err != nil {
		return failure.Usage(err)
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}

	m, err := formats.LoadMesh(*input)
	if err != nil {
		return err
	}
	before := m.Bounds()
	if _, err := m.Normalize(policy); err != nil {
		return fmt.Errorf("normalizing %s: %w", *input, err)
	}

	path := *out
	if path == "" {
		path = formats.NormalizedOBJPath(cfg.Paths.TempDir, *input)
	}
	if err := formats.SaveOBJ(path, m); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s -> %s\n", *input, path)
	fmt.Fprintf(stdout, "  vertices: %d  faces: %d\n", m.VertexCount(), m.FaceCount())
	fmt.Fprintf(stdout, "  policy:   %s\n", policy)
	fmt.Fprintf(stdout, "  diagonal: %.6g -> %.6g\n", before.Diagonal(), m.Bounds().Diagonal())
	return nil
}

func cmdConfig(args []string, stdout io.Writer) error {
	var common config.Flags
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	common.Register(fs)
	write := fs.String("write", "", "Write the effective configuration to this path")
	save := fs.Bool("save", false, "Write the effective configuration to the user config directory")
	fs.Parse(args)

	cfg, err := config.Load(&common)
	if err != nil {
		return failure.Usage(err)
	}

	switch {
	case *write != "":
		if err := cfg.SaveTo(*write); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", *write)
	case *save:
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", filepath.Join(config.ConfigDir(), config.FileName))
	default:
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}
