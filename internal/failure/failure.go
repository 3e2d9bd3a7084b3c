// Package failure maps errors to user-facing categories and exit codes.
package failure

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Faultbox/meshshot/internal/pipeline"
	"github.com/Faultbox/meshshot/internal/render"
	"github.com/Faultbox/meshshot/internal/renderconfig"
	"github.com/Faultbox/meshshot/internal/stitch"
	"github.com/Faultbox/meshshot/pkg/formats"
	"github.com/Faultbox/meshshot/pkg/mesh"
)

// Category is a user-legible error class.
type Category int

// Error categories.
const (
	Internal Category = iota
	InvalidInput
	CorruptState
	External
)

// String returns the category name printed to the user.
func (c Category) String() string {
	switch c {
	case InvalidInput:
		return "invalid-input"
	case CorruptState:
		return "corrupt-state"
	case External:
		return "external"
	default:
		return "internal"
	}
}

// ExitCode returns the process exit status for the category.
func (c Category) ExitCode() int {
	switch c {
	case InvalidInput:
		return 2
	case CorruptState:
		return 3
	case External:
		return 4
	default:
		return 1
	}
}

var invalidInput = []error{
	mesh.ErrDegenerateMesh,
	formats.ErrUnsupportedMeshFormat,
	formats.ErrInvalidOBJ,
	formats.ErrOBJIndexBounds,
	formats.ErrInvalidPLYMagic,
	formats.ErrUnsupportedPLYFormat,
	formats.ErrInvalidPLYHeader,
	formats.ErrTruncatedPLYData,
	formats.ErrPLYIndexBounds,
	formats.ErrMissingPLYCoordinates,
	formats.ErrInvalidSTL,
	formats.ErrNoGLTFTriangles,
	formats.ErrInvalidVoxelLine,
	pipeline.ErrInvalidOptions,
	pipeline.ErrNoMeshes,
	stitch.ErrNoImages,
	stitch.ErrSizeMismatch,
	stitch.ErrNotAnImage,
	fs.ErrNotExist,
}

// usageError marks errors raised while parsing the command line.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// Usage wraps err so it classifies as invalid input.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err}
}

// Usagef formats a usage error.
func Usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// Classify returns the category of err. Corrupt state is checked first so
// a bad snapshot is never reported as a missing file.
func Classify(err error) Category {
	if err == nil {
		return Internal
	}
	if errors.Is(err, renderconfig.ErrSnapshotCorrupt) {
		return CorruptState
	}
	if errors.Is(err, render.ErrEngineFailed) {
		return External
	}

	var ue usageError
	if errors.As(err, &ue) {
		return InvalidInput
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return InvalidInput
		}
	}
	return Internal
}

// Report writes "error [category]: message" and returns the exit code.
func Report(w io.Writer, err error) int {
	c := Classify(err)
	fmt.Fprintf(w, "error [%s]: %v\n", c, err)
	return c.ExitCode()
}

// Exit reports err on stderr and exits. A nil error exits 0.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	os.Exit(Report(os.Stderr, err))
}
