package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Runner executes the pipeline for one job.
type Runner interface {
	Run(ctx context.Context, jobID, productURL string) error
}

// Dispatcher starts one goroutine per job and bounds how many pipelines run
// at once. A job waiting for a slot stays pending.
type Dispatcher struct {
	runner Runner
	logger *zap.Logger
	slots  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(runner Runner, maxConcurrency int, logger *zap.Logger) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner: runner,
		logger: logger,
		slots:  make(chan struct{}, maxConcurrency),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch hands the job to a background goroutine and returns immediately.
func (d *Dispatcher) Dispatch(jobID, productURL string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrShuttingDown
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(jobID, productURL)
	return nil
}

func (d *Dispatcher) run(jobID, productURL string) {
	defer d.wg.Done()
	logger := d.logger.With(zap.String("analysis_id", jobID))

	select {
	case d.slots <- struct{}{}:
		defer func() { <-d.slots }()
	case <-d.ctx.Done():
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("pipeline runner panicked", zap.Any("panic", recovered))
		}
	}()

	if err := d.runner.Run(d.ctx, jobID, productURL); err != nil {
		logger.Info("pipeline finished with failure", zap.Error(err))
		return
	}
	logger.Debug("pipeline finished")
}

// Shutdown stops accepting jobs and waits for running pipelines. When ctx
// expires first the remaining pipelines are cancelled and awaited.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("shutdown deadline reached, cancelling running analyses")
		d.cancel()
		<-done
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}
