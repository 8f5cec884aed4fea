// Package jobs runs the periodic maintenance work: compacting stale
// presence rows so the table stays proportional to recent traffic.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sitepulse/internal/config"
	"sitepulse/internal/database"
)

// Scheduler is responsible for running background jobs.
type Scheduler struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       *config.Config
	isRunning bool

	// Serializes job executions so overlapping ticks never run
	// concurrent writes against the single sqlite file.
	processingMutex sync.Mutex
	isProcessing    bool

	presencePrune *PresencePruneJob
	pruneTicker   *time.Ticker
}

func NewScheduler(dbManager *database.DBManager, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
	}
	s.presencePrune = NewPresencePruneJob(dbManager, logger, cfg)
	return s, nil
}

func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	interval := time.Hour
	s.pruneTicker = time.NewTicker(interval)

	go func() {
		s.executeJobSafely("presence_prune", s.presencePrune.Run)

		for {
			select {
			case <-s.pruneTicker.C:
				s.executeJobSafely("presence_prune", s.presencePrune.Run)
			case <-s.ctx.Done():
				s.logger.Info("Presence prune job stopped")
				return
			}
		}
	}()

	return nil
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	if s.pruneTicker != nil {
		s.pruneTicker.Stop()
	}
	s.cancel()
	s.isRunning = false
}
