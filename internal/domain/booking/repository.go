package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) DB() *gorm.DB {
	return r.db
}

func (r *bookingRepository) Create(ctx context.Context, b *Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) List(ctx context.Context, filter ListFilter) ([]Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&Booking{})
	if filter.AsHost {
		q = q.Where("host_id = ?", filter.UserID)
	} else {
		q = q.Where("guest_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	var rows []Booking
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return rows, total, nil
}

func (r *bookingRepository) HasConfirmedOverlap(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error) {
	return hasConfirmedOverlap(r.db.WithContext(ctx), propertyID, checkIn, checkOut, 0)
}

// Transition moves a booking to status `to` when its current status is one
// of `from`. Confirming re-checks the stay dates under the same transaction.
func (r *bookingRepository) Transition(ctx context.Context, id int64, to Status, reason string, at time.Time, from ...Status) (*Booking, error) {
	var out Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&out, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !statusIn(out.Status, from) {
			return ErrInvalidStatusTransition
		}

		if to == StatusConfirmed {
			busy, err := hasConfirmedOverlap(tx, out.PropertyID, out.CheckIn, out.CheckOut, out.ID)
			if err != nil {
				return err
			}
			if busy {
				return ErrOverbooking
			}
		}

		res := tx.Model(&Booking{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(map[string]any{
				"status":          to,
				"decision_reason": reason,
				"decided_at":      at,
				"updated_at":      at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidStatusTransition
		}

		out.Status = to
		out.DecisionReason = reason
		out.DecidedAt = &at
		out.UpdatedAt = at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func hasConfirmedOverlap(db *gorm.DB, propertyID int64, checkIn, checkOut time.Time, excludeID int64) (bool, error) {
	var n int64
	q := db.Model(&Booking{}).
		Where("property_id = ? AND status = ? AND check_in < ? AND check_out > ?", propertyID, StatusConfirmed, checkOut, checkIn)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
