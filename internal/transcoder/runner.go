// Package transcoder runs the external FFmpeg and FFprobe binaries against
// in-memory video data using scoped temporary files.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Tool names one of the external binaries.
type Tool string

const (
	FFmpeg  Tool = "ffmpeg"
	FFprobe Tool = "ffprobe"
)

// DefaultTimeout bounds a single tool invocation when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// tempPrefix marks every file the runner creates.
const tempPrefix = "moment-"

var (
	// ErrTimeout is returned when a tool invocation exceeds its deadline.
	ErrTimeout = errors.New("transcoder: timed out")
	// ErrToolNotFound is returned when the binary cannot be located.
	ErrToolNotFound = errors.New("transcoder: tool not found")
	// ErrNoOutput is returned when the tool exits cleanly but produces nothing.
	ErrNoOutput = errors.New("transcoder: no output produced")
	// ErrEmptyInput is returned when Invoke is given no input bytes.
	ErrEmptyInput = errors.New("transcoder: empty input")
)

// Failure is a failed tool invocation. Output carries the captured stderr
// for diagnostics.
type Failure struct {
	Op     string
	Tool   Tool
	Output string
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %v", f.Op, f.Tool, f.Err)
	if f.Output != "" {
		msg += "\noutput:\n" + tail(f.Output, 512)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err is, or wraps, a *Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// CommandRunner abstracts exec.CommandContext so tests can inject a stub.
type CommandRunner interface {
	// Run executes name with args and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExitError is returned by ExecCommandRunner when the command fails.
type ExitError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with error: %v\noutput:\n%s", e.Name, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExecCommandRunner is the real CommandRunner that shells out to the system.
type ExecCommandRunner struct{}

// Run executes name with args using os/exec.
func (ExecCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &ExitError{Name: name, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// Command describes one tool invocation. Args receives the temporary input
// path and, when OutputExt is set, the temporary output path. With an empty
// OutputExt the tool's standard output is the result.
type Command struct {
	Op        string
	Tool      Tool
	OutputExt string
	Args      func(inputPath, outputPath string) []string
}

// Config configures a Runner.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	TempDir     string
	Logger      hclog.Logger
}

// Runner invokes the external tools. It is safe for concurrent use: every
// call gets its own uniquely named temporary files.
type Runner struct {
	// Cmd is the command executor; defaults to ExecCommandRunner{}.
	Cmd         CommandRunner
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	TempDir     string

	log hclog.Logger
}

// NewRunner constructs a Runner with the real ExecCommandRunner.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		Cmd:         ExecCommandRunner{},
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     cfg.Timeout,
		TempDir:     cfg.TempDir,
		log:         cfg.Logger,
	}
	if r.FFmpegPath == "" {
		r.FFmpegPath = string(FFmpeg)
	}
	if r.FFprobePath == "" {
		r.FFprobePath = string(FFprobe)
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.log == nil {
		r.log = hclog.NewNullLogger()
	}
	return r
}

// Invoke writes input to a temporary file, runs cmd against it and returns
// the produced bytes. Both temporary files are removed on every exit path.
//
// Tool-level problems (non-zero exit, timeout, missing binary, no output) are
// returned as *Failure. Local I/O errors and cancellation of ctx are returned
// as plain errors.
func (r *Runner) Invoke(ctx context.Context, cmd Command, input []byte, inputExt string) ([]byte, error) {
	if len(input) == 0 {
		return nil, &Failure{Op: cmd.Op, Tool: cmd.Tool, Err: ErrEmptyInput}
	}

	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	id := uuid.NewString()
	inPath := filepath.Join(dir, tempPrefix+id+"-in"+normalizeExt(inputExt))
	defer r.remove(inPath)

	var outPath string
	if cmd.OutputExt != "" {
		outPath = filepath.Join(dir, tempPrefix+id+"-out"+normalizeExt(cmd.OutputExt))
		defer r.remove(outPath)
	}

	if err := os.WriteFile(inPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("%s: write temp input: %w", cmd.Op, err)
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, err := r.cmd().Run(runCtx, r.path(cmd.Tool), cmd.Args(inPath, outPath)...)
	r.logger().Debug("tool finished", "op", cmd.Op, "tool", cmd.Tool, "elapsed", time.Since(start), "error", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Op, ctxErr)
		}
		return nil, r.failure(runCtx, cmd, err)
	}

	if outPath == "" {
		if len(stdout) == 0 {
			return nil, &Failure{Op: cmd.Op, Tool: cmd.Tool, Err: ErrNoOutput}
		}
		return stdout, nil
	}

	out, err := os.ReadFile(outPath)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(out) == 0) {
		return nil, &Failure{Op: cmd.Op, Tool: cmd.Tool, Err: ErrNoOutput}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read temp output: %w", cmd.Op, err)
	}
	return out, nil
}

// CheckTools verifies that both configured binaries can be executed.
func (r *Runner) CheckTools(ctx context.Context) error {
	for _, tool := range []Tool{FFmpeg, FFprobe} {
		if err := CheckAvailable(ctx, r.cmd(), r.path(tool)); err != nil {
			return err
		}
	}
	return nil
}

// CheckAvailable runs "<path> -version" and reports whether it succeeded.
func CheckAvailable(ctx context.Context, cmd CommandRunner, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cmd.Run(ctx, path, "-version"); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s: %w", path, ErrToolNotFound)
		}
		return fmt.Errorf("%s -version: %w", path, err)
	}
	return nil
}

func (r *Runner) failure(runCtx context.Context, cmd Command, err error) *Failure {
	f := &Failure{Op: cmd.Op, Tool: cmd.Tool, Err: err}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		f.Output = exitErr.Stderr
	}
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		f.Err = ErrTimeout
	case errors.Is(err, exec.ErrNotFound):
		f.Err = ErrToolNotFound
	}
	return f
}

func (r *Runner) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger().Warn("failed to remove temp file", "path", path, "error", err)
	}
}

func (r *Runner) path(tool Tool) string {
	switch tool {
	case FFprobe:
		if r.FFprobePath != "" {
			return r.FFprobePath
		}
	case FFmpeg:
		if r.FFmpegPath != "" {
			return r.FFmpegPath
		}
	}
	return string(tool)
}

func (r *Runner) cmd() CommandRunner {
	if r.Cmd == nil {
		return ExecCommandRunner{}
	}
	return r.Cmd
}

func (r *Runner) logger() hclog.Logger {
	if r.log == nil {
		return hclog.NewNullLogger()
	}
	return r.log
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
