package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/meshshot/internal/config"
	"github.com/Faultbox/meshshot/internal/logger"
	"github.com/Faultbox/meshshot/internal/render/driver"
)

// Command template placeholders.
const (
	ScriptPlaceholder = "{script}"
	JobPlaceholder    = "{job}"
)

// BlenderEngine runs each job in a fresh renderer process.
type BlenderEngine struct {
	// Command is split with shell rules before placeholders expand, so
	// paths containing spaces stay one argument.
	Command string
	// DriverScript replaces the embedded driver when set.
	DriverScript string
	// Timeout bounds one render; 0 waits indefinitely.
	Timeout time.Duration
}

// NewBlenderEngine creates an engine from the render settings.
func NewBlenderEngine(cfg config.EngineConfig) *BlenderEngine {
	return &BlenderEngine{
		Command:      cfg.Command,
		DriverScript: cfg.DriverScript,
		Timeout:      cfg.Timeout,
	}
}

// Render writes the job and driver to a private temp dir, runs the
// renderer and checks that the image was produced. The temp dir is
// removed on every path.
func (e *BlenderEngine) Render(ctx context.Context, job *Job) error {
	workDir, err := os.MkdirTemp("", "meshrender-job-*")
	if err != nil {
		return fmt.Errorf("creating job dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	script := e.DriverScript
	if script == "" {
		script = filepath.Join(workDir, driver.FileName)
		if err := os.WriteFile(script, []byte(driver.Script), 0644); err != nil {
			return fmt.Errorf("writing driver script: %w", err)
		}
	}

	jobPath := filepath.Join(workDir, "job.json")
	if err := WriteJob(jobPath, job); err != nil {
		return err
	}

	args, err := e.commandLine(script, jobPath)
	if err != nil {
		return err
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	stdout := newLineLogger(zapcore.DebugLevel)
	stderr := newLineLogger(zapcore.WarnLevel)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Children that outlive a killed renderer must not hold the pipes open.
	cmd.WaitDelay = 2 * time.Second

	logger.Info("Rendering",
		zap.String("variant", job.Variant.String()),
		zap.String("output", job.Config.OutputPath),
		zap.Strings("command", args))

	start := time.Now()
	err = cmd.Run()
	stdout.Flush()
	stderr.Flush()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrEngineFailed, args[0], ctxErr)
		}
		return fmt.Errorf("%w: %s: %v", ErrEngineFailed, args[0], err)
	}

	if _, err := os.Stat(job.Config.OutputPath); err != nil {
		return fmt.Errorf("%w: renderer exited cleanly but wrote no image at %s", ErrEngineFailed, job.Config.OutputPath)
	}

	logger.Info("Render finished",
		zap.String("output", job.Config.OutputPath),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// commandLine expands the command template.
func (e *BlenderEngine) commandLine(script, jobPath string) ([]string, error) {
	args, err := shellwords.Parse(e.Command)
	if err != nil {
		return nil, fmt.Errorf("parsing render command %q: %w", e.Command, err)
	}
	if len(args) == 0 {
		return nil, errors.New("render command is empty")
	}

	replacer := strings.NewReplacer(ScriptPlaceholder, script, JobPlaceholder, jobPath)
	for i, a := range args {
		args[i] = replacer.Replace(a)
	}
	return args, nil
}

// lineLogger forwards process output to the logger one line at a time.
type lineLogger struct {
	mu    sync.Mutex
	level zapcore.Level
	buf   bytes.Buffer
}

func newLineLogger(level zapcore.Level) *lineLogger {
	return &lineLogger{level: level}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	if ce := logger.Log.Check(l.level, "renderer"); ce != nil {
		ce.Write(zap.String("line", line))
	}
}
