// Package command provides a synchronous executor for external command-line tools.
// It runs an executable with a bounded timeout, captures stdout and stderr as one
// stream, and returns the captured text as a parsed-or-raw types.Output.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gabapcia/mempoolverify/internal/pkg/types"
)

var (
	// ErrCommandFailed is returned when the command cannot be started or exits with a non-zero status.
	ErrCommandFailed = errors.New("command failed")

	// ErrCommandTimeout is returned when the command does not finish within the configured timeout.
	ErrCommandTimeout = errors.New("command timed out")
)

// Error describes a failed invocation. It wraps either ErrCommandFailed or
// ErrCommandTimeout and keeps the captured output for diagnostics.
type Error struct {
	Path   string   // executable that was invoked
	Args   []string // full argument list, including the executor's leading arguments
	Output string   // combined stdout and stderr captured before the failure
	Kind   error    // ErrCommandFailed or ErrCommandTimeout
	Err    error    // underlying cause, nil for timeouts
}

// Error implements the error interface.
func (e *Error) Error() string {
	cmd := strings.TrimSpace(e.Path + " " + strings.Join(e.Args, " "))
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.kind(), cmd, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.kind(), cmd)
}

// kind returns the category sentinel, defaulting to ErrCommandFailed.
func (e *Error) kind() error {
	if e.Kind == nil {
		return ErrCommandFailed
	}
	return e.Kind
}

// Unwrap exposes both the category sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.kind()}
	}
	return []error{e.kind(), e.Err}
}

// Executor runs an external command and returns its parsed-or-raw output.
type Executor interface {
	// Execute runs the configured executable with the given arguments appended to
	// the executor's leading arguments. It blocks until the process exits or the
	// timeout expires.
	Execute(ctx context.Context, args ...string) (types.Output, error)
}

// config holds internal settings for the executor.
type config struct {
	timeout   time.Duration // maximum duration of a single invocation
	waitDelay time.Duration // grace period for output pipes after the process is killed
	args      []string      // arguments prepended to every invocation
}

// Option defines a functional option for configuring the executor.
type Option func(*config)

// executor is the os/exec backed implementation of Executor.
type executor struct {
	path string
	cfg  config
}

// Compile-time assertion that executor implements the Executor interface.
var _ Executor = (*executor)(nil)

// Execute implements the Executor interface.
func (e *executor) Execute(ctx context.Context, args ...string) (types.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.timeout)
	defer cancel()

	fullArgs := append(append([]string{}, e.cfg.args...), args...)

	cmd := exec.CommandContext(ctx, e.path, fullArgs...)
	cmd.WaitDelay = e.cfg.waitDelay

	out, err := cmd.CombinedOutput()
	if err != nil {
		cmdErr := &Error{
			Path:   e.path,
			Args:   fullArgs,
			Output: string(out),
			Kind:   ErrCommandFailed,
			Err:    err,
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cmdErr.Kind = ErrCommandTimeout
			cmdErr.Err = nil
		}

		return types.Output{}, cmdErr
	}

	return types.ParseOutput(string(out)), nil
}

// NewExecutor creates an Executor for the executable at path. If no options are
// given, default values are used:
//
//   - timeout:   120 seconds
//   - waitDelay: 1 second
//   - args:      none
func NewExecutor(path string, opts ...Option) *executor {
	cfg := config{
		timeout:   120 * time.Second,
		waitDelay: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &executor{
		path: path,
		cfg:  cfg,
	}
}

// WithTimeout sets the maximum duration of a single invocation.
// Default: 120 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithWaitDelay sets how long to wait for output pipes to close once the
// process has been killed on timeout.
// Default: 1 second.
func WithWaitDelay(d time.Duration) Option {
	return func(c *config) {
		c.waitDelay = d
	}
}

// WithArgs sets arguments that are prepended to every invocation, such as
// "-regtest" or "-datadir=/path".
func WithArgs(args ...string) Option {
	return func(c *config) {
		c.args = args
	}
}
