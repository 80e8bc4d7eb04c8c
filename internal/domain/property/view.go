package property

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	pendingViewsKey = "pending:property_views"
	viewDedupeTTL   = time.Hour
)

// ViewCounter records that a user opened a property.
type ViewCounter interface {
	RecordView(ctx context.Context, userID, propertyID int64) (counted bool, err error)
}

// ViewService counts views in redis, once per user and property per hour,
// and periodically folds the counters into properties.view_count. Without
// redis every view goes straight to the database.
type ViewService struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewViewService(db *gorm.DB, rdb *redis.Client) *ViewService {
	return &ViewService{db: db, rdb: rdb}
}

func (s *ViewService) RecordView(ctx context.Context, userID, propertyID int64) (bool, error) {
	if s.rdb == nil {
		res := s.db.WithContext(ctx).
			Model(&Property{}).
			Where("id = ?", propertyID).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if res.Error != nil {
			return false, fmt.Errorf("increment view: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return false, ErrNotFound
		}
		return true, nil
	}

	userViewKey := fmt.Sprintf("property:user_view:%d:%d", propertyID, userID)
	exists, err := s.rdb.Exists(ctx, userViewKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user view: %w", err)
	}
	if exists == 1 {
		return false, nil
	}

	if _, err := s.rdb.Incr(ctx, viewCounterKey(propertyID)).Result(); err != nil {
		return false, fmt.Errorf("failed to increment view: %w", err)
	}
	if _, err := s.rdb.SAdd(ctx, pendingViewsKey, strconv.FormatInt(propertyID, 10)).Result(); err != nil {
		return false, fmt.Errorf("failed to add to pending: %w", err)
	}
	if _, err := s.rdb.SetEx(ctx, userViewKey, "viewed", viewDedupeTTL).Result(); err != nil {
		return false, fmt.Errorf("failed to set user view: %w", err)
	}
	return true, nil
}

// Sync moves pending redis view counts into the database and returns how
// many properties were updated.
func (s *ViewService) Sync(ctx context.Context) (int, error) {
	if s.rdb == nil {
		return 0, nil
	}

	ids, err := s.rdb.SMembers(ctx, pendingViewsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("pending views: %w", err)
	}

	synced := 0
	for _, raw := range ids {
		propertyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("view_sync_skip property_id=%q error=%v", raw, err)
			_ = s.rdb.SRem(ctx, pendingViewsKey, raw).Err()
			continue
		}

		// Leave the pending set before reading the counter so a view recorded
		// during this run adds the property back for the next one.
		if err := s.rdb.SRem(ctx, pendingViewsKey, raw).Err(); err != nil {
			log.Printf("view_sync_error property_id=%d error=%v", propertyID, err)
			continue
		}

		n, err := s.rdb.Get(ctx, viewCounterKey(propertyID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("view_sync_error property_id=%d error=%v", propertyID, err)
			s.requeue(ctx, raw)
			continue
		}
		if n <= 0 {
			continue
		}
		err = s.db.WithContext(ctx).
			Model(&Property{}).
			Where("id = ?", propertyID).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", n)).Error
		if err != nil {
			log.Printf("view_sync_error property_id=%d error=%v", propertyID, err)
			s.requeue(ctx, raw)
			continue
		}
		// Views recorded since the Get stay in the counter for the next run.
		if err := s.rdb.DecrBy(ctx, viewCounterKey(propertyID), n).Err(); err != nil {
			log.Printf("view_sync_error property_id=%d error=%v", propertyID, err)
		}
		synced++
	}

	if synced > 0 {
		log.Printf("view_sync_done properties=%d", synced)
	}
	return synced, nil
}

func (s *ViewService) requeue(ctx context.Context, member string) {
	if err := s.rdb.SAdd(ctx, pendingViewsKey, member).Err(); err != nil {
		log.Printf("view_sync_requeue_error member=%s error=%v", member, err)
	}
}

// Schedule runs Sync on the cron spec.
func (s *ViewService) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sync(ctx); err != nil {
			log.Printf("view_sync_error error=%v", err)
		}
	})
}

func viewCounterKey(propertyID int64) string {
	return "property:views:" + strconv.FormatInt(propertyID, 10)
}

var _ ViewCounter = (*ViewService)(nil)
