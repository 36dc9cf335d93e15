// Package retention prunes old call records on a cron schedule so the
// call log does not grow without bound.
package retention

import (
	"context"
	"log/slog"
	"time"

	"halcyon-hq/callisto/pkg/storage"
)

// Config controls what the pruner removes.
type Config struct {
	// RetentionDays is the age horizon; records older than this are
	// removed. Zero disables the age-based prune.
	RetentionDays int

	// MaxRecords caps the table size regardless of age. Zero disables
	// the count-based prune.
	MaxRecords int64

	// Schedule is the cron expression for scheduled pruning.
	Schedule string
}

// Pruner removes call records past the retention horizon.
type Pruner struct {
	store  storage.Store
	config Config
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewPruner creates a pruner.
func NewPruner(store storage.Store, config Config, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Prune runs one pruning cycle: first the age-based sweep, then the
// count-based trim. It returns the total number of records removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.store.DeleteCallRecordsBefore(ctx, cutoff)
		if err != nil {
			return total, err
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.store.DeleteCallRecordsExceeding(ctx, p.config.MaxRecords)
		if err != nil {
			return total, err
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("call records pruned",
			"deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}
