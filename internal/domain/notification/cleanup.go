package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CleanupService deletes read notifications past the retention window.
type CleanupService struct {
	repo      Repository
	retention time.Duration
}

func NewCleanupService(repo Repository, retention time.Duration) *CleanupService {
	return &CleanupService{repo: repo, retention: retention}
}

// Run performs one cleanup pass.
func (c *CleanupService) Run(ctx context.Context) (int64, error) {
	startTime := time.Now()

	deleted, err := c.repo.DeleteReadOlderThan(ctx, c.retention)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}

	log.Printf("notification_cleanup deleted=%d retention=%s took=%s", deleted, c.retention, time.Since(startTime))
	return deleted, nil
}

// Schedule registers Run on the cron scheduler under spec.
func (c *CleanupService) Schedule(scheduler *cron.Cron, spec string) (cron.EntryID, error) {
	return scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := c.Run(ctx); err != nil {
			log.Printf("notification_cleanup_error retention=%s error=%v", c.retention, err)
		}
	})
}
