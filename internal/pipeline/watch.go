package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/meshshot/internal/logger"
	"github.com/Faultbox/meshshot/internal/render"
)

// DefaultSettle is how long Watch waits for a burst of writes to end.
const DefaultSettle = 250 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	Options
	// Settle debounces editor save bursts; 0 uses DefaultSettle.
	Settle time.Duration
	// OnRender is called after every completed run, successful or not.
	OnRender func([]Result, error)
}

// Watch renders once, then re-renders every time the snapshot file is
// changed by someone else. It returns when ctx is done.
//
// The directory is watched rather than the file so editors that save by
// rename are seen. Writes made by the pipeline itself are recognised by
// content and ignored.
func Watch(ctx context.Context, opts WatchOptions, engine render.Engine) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if info, err := os.Stat(opts.Input); err == nil && info.IsDir() {
		return fmt.Errorf("%w: watch needs a single mesh file", ErrInvalidOptions)
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	snapshot := opts.SnapshotPath(opts.Input)

	var last []byte
	runOnce := func() error {
		// Later runs must honour the edited snapshot.
		o := opts.Options
		if last != nil {
			o.Force = false
		}
		results, err := Run(ctx, o, engine)
		if err != nil {
			logger.Error("Render failed", zap.Error(err))
		}
		data, readErr := os.ReadFile(snapshot)
		if readErr != nil {
			logger.Debug("Snapshot not readable after render", zap.String("path", snapshot), zap.Error(readErr))
		}
		last = data
		if opts.OnRender != nil {
			opts.OnRender(results, err)
		}
		return err
	}

	// Watch before the first run so no edit made right after it is missed.
	dir := filepath.Dir(snapshot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	if err := runOnce(); last == nil {
		if err != nil {
			return err
		}
		return fmt.Errorf("snapshot %s was not created", snapshot)
	}
	logger.Info("Watching snapshot", zap.String("path", snapshot))

	target := filepath.Clean(snapshot)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			current, err := os.ReadFile(snapshot)
			if err != nil {
				logger.Debug("Snapshot not readable yet", zap.Error(err))
				continue
			}
			if bytes.Equal(current, last) {
				continue
			}
			logger.Info("Snapshot changed, re-rendering", zap.String("path", snapshot))
			_ = runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("Watcher overflow", zap.Error(err))
				continue
			}
			return fmt.Errorf("watching snapshot: %w", err)
		}
	}
}
