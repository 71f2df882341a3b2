package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step is one unit of work in an ordered pipeline. Compensate undoes the
// side effects of a Run that succeeded; it is invoked only when a later
// step fails.
type Step[T any] interface {
	Name() string
	Run(ctx context.Context, state *T) error
	Compensate(ctx context.Context, state *T) error
}

// Runner executes steps sequentially over a shared state value. On failure
// it compensates the completed steps in reverse order and returns the
// original step error.
type Runner[T any] struct {
	name    string
	steps   []Step[T]
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner for the named pipeline.
func NewRunner[T any](name string, timeout time.Duration, logger *zap.Logger, steps ...Step[T]) *Runner[T] {
	return &Runner[T]{
		name:    name,
		steps:   steps,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs the pipeline to completion or to compensated failure.
func (r *Runner[T]) Execute(ctx context.Context, state *T) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	r.logger.Info("pipeline started", zap.String("pipeline", r.name))

	completed := -1
	for i, step := range r.steps {
		stepStart := time.Now()
		if err := step.Run(ctx, state); err != nil {
			r.logger.Error("pipeline step failed",
				zap.String("pipeline", r.name),
				zap.String("step", step.Name()),
				zap.Error(err))
			r.compensate(ctx, state, completed)
			return fmt.Errorf("%s: step %s: %w", r.name, step.Name(), err)
		}
		completed = i
		r.logger.Debug("pipeline step completed",
			zap.String("pipeline", r.name),
			zap.String("step", step.Name()),
			zap.Duration("took", time.Since(stepStart)))
	}

	r.logger.Info("pipeline completed",
		zap.String("pipeline", r.name),
		zap.Duration("took", time.Since(start)))
	return nil
}

// compensate unwinds completed steps newest-first. Compensation errors are
// logged and do not stop the unwind.
func (r *Runner[T]) compensate(ctx context.Context, state *T, lastCompleted int) {
	for i := lastCompleted; i >= 0; i-- {
		step := r.steps[i]
		if err := step.Compensate(ctx, state); err != nil {
			r.logger.Error("pipeline compensation failed",
				zap.String("pipeline", r.name),
				zap.String("step", step.Name()),
				zap.Error(err))
			continue
		}
		r.logger.Info("pipeline step compensated",
			zap.String("pipeline", r.name),
			zap.String("step", step.Name()))
	}
}
