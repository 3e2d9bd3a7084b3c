package renderconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Snapshot errors. A missing snapshot and a corrupt one are distinct.
var (
	ErrSnapshotNotFound = errors.New("config snapshot not found")
	ErrSnapshotCorrupt  = errors.New("config snapshot is corrupt")
)

// Source reports where a resolved configuration came from.
type Source int

// Configuration sources.
const (
	SourceDefaults Source = iota
	SourceSnapshot
)

// String returns the source name.
func (s Source) String() string {
	if s == SourceSnapshot {
		return "snapshot"
	}
	return "defaults"
}

// requiredKeys lists the snapshot keys that have no default.
var requiredKeys = []string{
	"output_path",
	"image_resolution",
	"number_of_samples",
	"mesh_path",
	"mesh_position",
	"mesh_rotation",
	"mesh_scale",
	"shading",
	"subdivision_iteration",
	"mesh_RGB",
	"light_angle",
}

// Decode parses and validates a snapshot document. Unknown keys, missing
// keys, wrong-length arrays and trailing data are rejected.
func Decode(r io.Reader) (RenderConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RenderConfig{}, err
	}

	var cfg RenderConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return RenderConfig{}, err
	}
	if dec.More() {
		return RenderConfig{}, errors.New("trailing data after JSON object")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return RenderConfig{}, err
	}
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return RenderConfig{}, fmt.Errorf("missing key %q", key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return RenderConfig{}, err
	}
	return cfg, nil
}

// Load reads the snapshot at path.
func Load(path string) (RenderConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return RenderConfig{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
	}
	if err != nil {
		return RenderConfig{}, err
	}

	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return RenderConfig{}, fmt.Errorf("%w: %s: %v", ErrSnapshotCorrupt, path, err)
	}
	return cfg, nil
}

// Save writes cfg as indented JSON. The file is replaced atomically so a
// concurrent reader never sees a partial document.
func Save(path string, cfg RenderConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Resolve returns the effective configuration for a snapshot path. An
// existing snapshot wins over defaults unless force is set. The result is
// always written back to path.
func Resolve(path string, defaults RenderConfig, force bool) (RenderConfig, Source, error) {
	cfg, source := defaults, SourceDefaults

	if !force {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg, source = loaded, SourceSnapshot
		case errors.Is(err, ErrSnapshotNotFound):
		default:
			return RenderConfig{}, source, err
		}
	}

	if err := Save(path, cfg); err != nil {
		return RenderConfig{}, source, fmt.Errorf("saving snapshot %s: %w", path, err)
	}
	return cfg, source, nil
}
