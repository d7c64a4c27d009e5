package app

import (
	"context"
	"fmt"

	"github.com/wikipulse/core/internal/config"
	"github.com/wikipulse/core/internal/modules/archive"
	pkgcron "github.com/wikipulse/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, archiveSvc *archive.Service, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "archive_cache",
		Description: "snapshot the metrics cache to object storage, one object per type partition",
		Interval:    cfg.ArchiveInterval(),
		Fn: func(ctx context.Context) error {
			records, err := archiveSvc.Run(ctx)
			if err != nil {
				cronLogger.Warn("cache archive incomplete",
					zap.Int("archived", len(records)),
					zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("cache archive finished, %d partition(s) uploaded", len(records)))
			return nil
		},
	})
}
