package jobs

import (
	"log/slog"
	"time"

	"sitepulse/internal/config"
	"sitepulse/internal/database"
	"sitepulse/internal/presence"
)

// Presence rows long past the live window are invisible to every read;
// keep a day of slack for debugging before reclaiming them.
const presenceRetention = 24 * time.Hour

// PresencePruneJob compacts the presence table.
type PresencePruneJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewPresencePruneJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *PresencePruneJob {
	return &PresencePruneJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run deletes presence rows older than the retention cutoff. Liveness
// reads never depend on this; it only bounds storage.
func (j *PresencePruneJob) Run() error {
	cutoff := time.Now().UTC().Add(-(j.cfg.PresenceWindow() + presenceRetention))

	deleted, err := presence.Prune(j.dbManager, j.logger, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.logger.Info("Pruned stale presence rows",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
