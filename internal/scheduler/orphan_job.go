package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mesquitadev/whatsticket-be/internal/metrics"
	"github.com/mesquitadev/whatsticket-be/internal/repository"
	"github.com/mesquitadev/whatsticket-be/internal/storage"
)

const (
	orphanSchedule = "@every 1h"

	// orphanMinAge keeps the sweep from racing an attach that has written
	// its file but not yet updated the row.
	orphanMinAge = 1 * time.Hour
)

// OrphanJob deletes stored attachment files no announcement references.
// Such files appear when a row update or delete wins over its file
// operation; the mutation path never rolls files back inline.
type OrphanJob struct {
	cron   *cron.Cron
	repo   repository.AnnouncementRepository
	store  storage.Store
	logger *zap.Logger
}

func NewOrphanJob(repo repository.AnnouncementRepository, store storage.Store, logger *zap.Logger) *OrphanJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrphanJob{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

func (j *OrphanJob) Start() error {
	if j == nil || j.cron == nil || j.repo == nil || j.store == nil {
		return nil
	}

	_, err := j.cron.AddFunc(orphanSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := j.SweepOnce(ctx); err != nil {
			j.logger.Warn("orphan file sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	return nil
}

// SweepOnce deletes every stored file older than the grace period that no
// row references.
func (j *OrphanJob) SweepOnce(ctx context.Context) error {
	stored, err := j.store.List(ctx, orphanMinAge)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return nil
	}

	referenced, err := j.repo.ListMediaPaths(ctx)
	if err != nil {
		return err
	}
	refSet := make(map[string]struct{}, len(referenced))
	for _, path := range referenced {
		refSet[path] = struct{}{}
	}

	swept := 0
	for _, name := range stored {
		if _, ok := refSet[name]; ok {
			continue
		}
		if err := j.store.Delete(ctx, name); err != nil {
			metrics.IncStorageError()
			j.logger.Warn("delete orphan file failed", zap.String("stored_name", name), zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		metrics.AddOrphanFilesSwept(swept)
		j.logger.Info("orphan file sweep completed", zap.Int("swept", swept))
	}
	return nil
}

func (j *OrphanJob) Stop() {
	if j == nil || j.cron == nil {
		return
	}

	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(2 * time.Second):
	}
}
