package booking

import (
	"context"
	"time"

	"gorm.io/gorm"

	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
)

// BookingRepository persists bookings and their status transitions.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int64) (*Booking, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, int64, error)
	HasConfirmedOverlap(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error)
	Transition(ctx context.Context, id int64, to Status, reason string, at time.Time, from ...Status) (*Booking, error)
	DB() *gorm.DB
}

type PropertyLookup interface {
	GetByID(ctx context.Context, id int64) (*property.Property, error)
	HostOf(ctx context.Context, id int64) (hostID int64, title string, err error)
}

// GuestDirectory resolves display names for notification text.
type GuestDirectory interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

type NotificationSender interface {
	NotifyBookingRequestCreated(ctx context.Context, hostID int64, p notification.BookingPayload) error
	NotifyBookingConfirmed(ctx context.Context, guestID int64, p notification.BookingPayload) error
	NotifyBookingDeclined(ctx context.Context, guestID int64, p notification.BookingPayload) error
}
