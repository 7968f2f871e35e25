package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// BatchRunner explores multiple independent targets concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchRunner rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-run execution
// 2. Each target needs its own pipeline: a browser session is sequential,
//    so parallelism exists only across sessions, never within one
// 3. It allows different batch strategies (e.g., rate limiting, retries)
type BatchRunner struct {
	// pipelineFactory creates a fresh pipeline for one target.
	// A factory ensures no session or adapter state leaks between targets.
	pipelineFactory func(target string) *Pipeline

	// concurrency is the maximum number of targets explored at once.
	// Each slot holds a live browser, so this is bounded by local Chrome
	// capacity rather than by the targets.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed run results in target order.
	// Access is synchronized via mutex.
	results []*model.RunResult
	mu      sync.Mutex
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent explorations.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchRunner creates a new BatchRunner.
//
// The pipelineFactory function is called once per target to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak between
// targets and allows per-target customization if needed.
func NewBatchRunner(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		pipelineFactory: pipelineFactory,
		concurrency:     3,
		results:         make([]*model.RunResult, 0),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// Run explores multiple targets concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each target gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Returns all results collected, even for targets that failed.
// The error return indicates whether the batch was cancelled.
func (b *BatchRunner) Run(ctx context.Context, targets []string) ([]*model.RunResult, error) {
	b.logger.Info("starting batch exploration",
		"targets", len(targets),
		"concurrency", b.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain target order
	b.results = make([]*model.RunResult, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			b.logger.Info("exploring target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			result := model.NewRunResult(target)

			p := b.pipelineFactory(target)
			err := p.Execute(ctx, result)

			// Store the result regardless of error; it carries the error
			// text and whatever partial graph was built.
			b.mu.Lock()
			b.results[i] = result
			b.mu.Unlock()

			if err != nil {
				b.logger.Warn("exploration failed",
					"target", target,
					"error", err,
				)
				// Don't return the error to the errgroup: other targets
				// should still run, and the result records the failure.
				return nil
			}

			b.logger.Info("exploration completed", "target", target)
			return nil
		})
	}

	err := g.Wait()

	b.logger.Info("batch exploration complete",
		"targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return b.results, err
}

// Results returns the collected results from the last Run call.
func (b *BatchRunner) Results() []*model.RunResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results
}
