package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/strategix/alexvoice/domain/repositories"
)

const (
	// How long an untouched in-progress assessment survives before it is
	// marked abandoned.
	staleRetention = 30 * 24 * time.Hour

	janitorInterval     = 30 * time.Minute
	janitorInitialDelay = time.Minute
)

// Janitor abandons in-progress assessments that were never finished, so
// resumable state does not accumulate forever.
type Janitor struct {
	repo     repositories.AssessmentRepository
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewJanitor creates a new assessment janitor.
func NewJanitor(repo repositories.AssessmentRepository, logger *zap.Logger) *Janitor {
	return &Janitor{
		repo:     repo,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (j *Janitor) Start() {
	go j.sweepLoop()
	j.logger.Info("assessment janitor started")
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	close(j.stopChan)
	j.logger.Info("assessment janitor stopped")
}

func (j *Janitor) sweepLoop() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	initialTimer := time.NewTimer(janitorInitialDelay)
	defer initialTimer.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-initialTimer.C:
			j.sweep()
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := j.repo.ExpireStale(ctx, time.Now().Add(-staleRetention))
	if err != nil {
		j.logger.Error("failed to expire stale assessments", zap.Error(err))
		return
	}
	if expired > 0 {
		j.logger.Info("expired stale assessments", zap.Int64("count", expired))
	}
}
