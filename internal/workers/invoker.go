package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/iago/review-radar-back/internal/config"
	"github.com/iago/review-radar-back/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type WorkerName string

const (
	WorkerScrape    WorkerName = "scrape"
	WorkerSentiment WorkerName = "sentiment"
)

const (
	stderrTailBytes = 512
	// waitDelay bounds how long Wait blocks on pipes held open by orphaned
	// grandchildren after the worker itself was killed.
	waitDelay = 2 * time.Second
)

// Runner launches a named worker and decodes its final output line into out.
type Runner interface {
	Invoke(ctx context.Context, name WorkerName, args []string, out any) error
}

// Invoker runs external workers as subprocesses. Each worker must print one
// JSON document as the last line of its stdout; earlier lines are diagnostics.
// No retries happen here.
type Invoker struct {
	definitions map[WorkerName]config.WorkerDefinition
	limiters    map[WorkerName]*rate.Limiter
	logger      *zap.Logger
}

type Option func(*Invoker)

// WithLaunchLimit paces launches of one worker.
func WithLaunchLimit(name WorkerName, limiter *rate.Limiter) Option {
	return func(i *Invoker) {
		if limiter != nil {
			i.limiters[name] = limiter
		}
	}
}

func NewInvoker(workers config.WorkersConfig, logger *zap.Logger, opts ...Option) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	invoker := &Invoker{
		definitions: map[WorkerName]config.WorkerDefinition{
			WorkerScrape:    workers.Scrape,
			WorkerSentiment: workers.Sentiment,
		},
		limiters: make(map[WorkerName]*rate.Limiter),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(invoker)
	}
	return invoker
}

// NewScrapeLimiter converts a per-minute budget into a token bucket.
// A non-positive rate disables pacing.
func NewScrapeLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

// Invoke runs the worker with its configured args followed by args. When the
// worker is configured with stdin, the last element of args is written to its
// standard input instead.
func (i *Invoker) Invoke(ctx context.Context, name WorkerName, args []string, out any) error {
	definition, ok := i.definitions[name]
	if !ok || definition.Command == "" {
		return &domain.WorkerExecutionError{Worker: string(name), Err: errors.New("worker is not configured")}
	}

	if limiter := i.limiters[name]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &domain.WorkerExecutionError{Worker: string(name), Err: fmt.Errorf("wait for launch slot: %w", err)}
		}
	}

	runCtx := ctx
	if definition.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, definition.Timeout)
		defer cancel()
	}

	argv := append([]string(nil), definition.Args...)
	var stdin []byte
	if definition.Stdin && len(args) > 0 {
		argv = append(argv, args[:len(args)-1]...)
		stdin = []byte(args[len(args)-1])
	} else {
		argv = append(argv, args...)
	}

	cmd := exec.CommandContext(runCtx, definition.Command, argv...)
	cmd.Dir = definition.Dir
	cmd.Env = buildEnv(definition.Env)
	cmd.WaitDelay = waitDelay
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		execErr := &domain.WorkerExecutionError{
			Worker:   string(name),
			ExitCode: -1,
			Stderr:   tail(stderr.String(), stderrTailBytes),
			Err:      runErr,
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			execErr.Err = fmt.Errorf("timed out after %s", definition.Timeout)
		} else if ctx.Err() != nil {
			execErr.Err = ctx.Err()
		}
		i.logger.Warn("worker failed",
			zap.String("worker", string(name)),
			zap.Int("exit_code", execErr.ExitCode),
			zap.Duration("elapsed", elapsed),
			zap.Error(execErr.Err),
		)
		return execErr
	}

	lines := outputLines(stdout.String())
	for _, line := range lines[:max(len(lines)-1, 0)] {
		i.logger.Debug("worker output", zap.String("worker", string(name)), zap.String("line", line))
	}
	if stderr.Len() > 0 {
		i.logger.Debug("worker stderr", zap.String("worker", string(name)), zap.String("stderr", tail(stderr.String(), stderrTailBytes)))
	}
	if len(lines) == 0 {
		return &domain.WorkerProtocolError{Worker: string(name), Err: errors.New("no output")}
	}

	if err := decodeDocument(string(name), lines[len(lines)-1], out); err != nil {
		return err
	}

	i.logger.Debug("worker finished", zap.String("worker", string(name)), zap.Duration("elapsed", elapsed))
	return nil
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+extra[key])
	}
	return env
}

func outputLines(output string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func tail(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-limit:]
}
