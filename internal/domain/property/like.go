package property

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"staybook/internal/database"
)

const (
	likeConstraint = "idx_property_like"
	likeCounterTTL = 24 * time.Hour
)

// Liker persists a user's like on a property.
type Liker interface {
	Like(ctx context.Context, userID, propertyID int64) error
	Unlike(ctx context.Context, userID, propertyID int64) error
}

// LikeService stores likes in property_likes and keeps like_count in step.
// When redis is configured a live counter is kept under property:likes:<id>.
type LikeService struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewLikeService(db *gorm.DB, rdb *redis.Client) *LikeService {
	return &LikeService{db: db, rdb: rdb}
}

func likeCounterKey(propertyID int64) string {
	return "property:likes:" + strconv.FormatInt(propertyID, 10)
}

func (s *LikeService) Like(ctx context.Context, userID, propertyID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&Property{}).Where("id = ?", propertyID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}

		like := Like{UserID: userID, PropertyID: propertyID}
		if err := tx.Create(&like).Error; err != nil {
			if database.IsUniqueViolation(err, likeConstraint) {
				return ErrAlreadyLiked
			}
			return err
		}
		return tx.Model(&Property{}).
			Where("id = ?", propertyID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		return err
	}

	s.syncCounter(ctx, propertyID)
	return nil
}

func (s *LikeService) Unlike(ctx context.Context, userID, propertyID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND property_id = ?", userID, propertyID).Delete(&Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotLiked
		}
		return tx.Model(&Property{}).
			Where("id = ? AND like_count > 0", propertyID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	if err != nil {
		return err
	}

	s.syncCounter(ctx, propertyID)
	return nil
}

func (s *LikeService) IsLiked(ctx context.Context, userID, propertyID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Like{}).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LikeCount reads the live counter, falling back to the stored column.
func (s *LikeService) LikeCount(ctx context.Context, propertyID int64) (int64, error) {
	if s.rdb != nil {
		n, err := s.rdb.Get(ctx, likeCounterKey(propertyID)).Int64()
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("like_counter_error property_id=%d error=%v", propertyID, err)
		}
	}

	var p Property
	err := s.db.WithContext(ctx).Select("like_count").First(&p, propertyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return p.LikeCount, nil
}

// syncCounter copies the stored like_count into the live counter.
func (s *LikeService) syncCounter(ctx context.Context, propertyID int64) {
	if s.rdb == nil {
		return
	}
	var p Property
	if err := s.db.WithContext(ctx).Select("like_count").First(&p, propertyID).Error; err != nil {
		log.Printf("like_counter_error property_id=%d error=%v", propertyID, err)
		return
	}
	if err := s.rdb.Set(ctx, likeCounterKey(propertyID), p.LikeCount, likeCounterTTL).Err(); err != nil {
		log.Printf("like_counter_error property_id=%d error=%v", propertyID, fmt.Errorf("set: %w", err))
	}
}

var _ Liker = (*LikeService)(nil)
