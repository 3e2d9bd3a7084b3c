package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/meshshot/internal/logger"
)

// DryRunEngine writes the job next to the output image instead of
// rendering it.
type DryRunEngine struct{}

// Render writes <output>.job.json.
func (DryRunEngine) Render(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := JobPath(job.Config.OutputPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := WriteJob(path, job); err != nil {
		return err
	}

	logger.Info("Dry run, job written", zap.String("job", path))
	return nil
}
