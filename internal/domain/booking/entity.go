package booking

import (
	"time"

	"staybook/internal/domain/notification"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

const dateLayout = "2006-01-02"

// Booking is a guest's request to stay at a property. Rows in the confirmed
// state block the stay dates in property search.
type Booking struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	RequestKey     string     `gorm:"size:64;not null;uniqueIndex:idx_bookings_request_key" json:"-"`
	PropertyID     int64      `gorm:"not null;index" json:"property_id"`
	GuestID        int64      `gorm:"not null;index" json:"guest_id"`
	HostID         int64      `gorm:"not null;index" json:"host_id"`
	CheckIn        time.Time  `gorm:"not null" json:"check_in"`
	CheckOut       time.Time  `gorm:"not null" json:"check_out"`
	Guests         int        `gorm:"not null;default:1" json:"guests"`
	TotalPrice     float64    `gorm:"not null" json:"total_price"`
	Status         Status     `gorm:"size:20;not null;default:pending;index" json:"status"`
	Notes          string     `gorm:"type:text" json:"notes,omitempty"`
	DecisionReason string     `gorm:"type:text" json:"decision_reason,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

func Models() []any { return []any{&Booking{}} }

func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// Payload builds the notification metadata describing this booking.
func (b *Booking) Payload(propertyTitle, guestName string) notification.BookingPayload {
	return notification.BookingPayload{
		BookingID:     b.ID,
		PropertyID:    b.PropertyID,
		PropertyTitle: propertyTitle,
		GuestName:     guestName,
		CheckIn:       b.CheckIn.Format(dateLayout),
		CheckOut:      b.CheckOut.Format(dateLayout),
		GuestCount:    b.Guests,
		Reason:        b.DecisionReason,
	}
}
