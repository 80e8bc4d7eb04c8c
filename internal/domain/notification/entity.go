package notification

import (
	"encoding/json"
	"time"
)

// Role is the persona a notification is addressed to.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Type is the closed set of notification kinds.
type Type string

const (
	// Booking lifecycle
	TypeBookingRequestCreated Type = "booking_request_created" // Host: a guest asked to book
	TypeBookingConfirmed      Type = "booking_confirmed"       // Guest: host approved
	TypeBookingDeclined       Type = "booking_declined"        // Guest: host declined
	TypeBookingCancelled      Type = "booking_cancelled"       // Both
	TypeBookingCompleted      Type = "booking_completed"       // Both
	TypeBookingReminder       Type = "booking_reminder"        // Guest: check-in is close

	// Payment lifecycle
	TypePaymentReceived Type = "payment_received"
	TypePaymentFailed   Type = "payment_failed"
	TypePaymentRefunded Type = "payment_refunded"

	// Property lifecycle
	TypePropertyApproved Type = "property_approved"
	TypePropertyRejected Type = "property_rejected"
	TypePropertyReviewed Type = "property_reviewed"

	// Payout lifecycle
	TypePayoutSent   Type = "payout_sent"
	TypePayoutFailed Type = "payout_failed"

	// Account and security
	TypeAccountVerified  Type = "account_verified"
	TypePasswordChanged  Type = "password_changed"
	TypeSecurityAlert    Type = "security_alert"
	TypeAccountSuspended Type = "account_suspended"

	// Disputes and system
	TypeDisputeOpened      Type = "dispute_opened"
	TypeDisputeResolved    Type = "dispute_resolved"
	TypeSystemAnnouncement Type = "system_announcement"
)

// RelatedType names the entity a notification points at. It is a lookup key,
// never an ownership relation.
type RelatedType string

const (
	RelatedNone     RelatedType = ""
	RelatedBooking  RelatedType = "booking"
	RelatedProperty RelatedType = "property"
	RelatedPayout   RelatedType = "payout"
	RelatedPayment  RelatedType = "payment"
	RelatedUser     RelatedType = "user"
	RelatedDispute  RelatedType = "dispute"
	RelatedSystem   RelatedType = "system"
)

// Notification is one user-facing event, owned by exactly one recipient.
type Notification struct {
	ID           int64           `gorm:"primaryKey;column:id" json:"id"`
	UserID       int64           `gorm:"column:user_id;not null;index:idx_notifications_user_created,priority:1;index:idx_notifications_user_unread,priority:1" json:"user_id"`
	Role         Role            `gorm:"column:role;size:16;not null" json:"role"`
	Type         Type            `gorm:"column:type;size:48;not null" json:"type"`
	RelatedType  RelatedType     `gorm:"column:related_type;size:16" json:"related_type,omitempty"`
	RelatedID    *int64          `gorm:"column:related_id" json:"related_id,omitempty"`
	Title        string          `gorm:"column:title;not null" json:"title"`
	Message      string          `gorm:"column:message" json:"message"`
	Metadata     json.RawMessage `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	IsRead       bool            `gorm:"column:is_read;not null;default:false;index:idx_notifications_user_unread,priority:2" json:"is_read"`
	SentViaEmail bool            `gorm:"column:sent_via_email;not null;default:false" json:"sent_via_email"`
	SentViaPush  bool            `gorm:"column:sent_via_push;not null;default:false" json:"sent_via_push"`
	CreatedAt    time.Time       `gorm:"column:created_at;index:idx_notifications_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

func Models() []any {
	return []any{&Notification{}}
}

// Payload decodes Metadata into the variant matching the notification type.
func (n *Notification) Payload() (Payload, error) {
	return DecodePayload(n.Type, n.Metadata)
}

// SetPayload encodes p into Metadata.
func (n *Notification) SetPayload(p Payload) error {
	raw, err := EncodePayload(p)
	if err != nil {
		return err
	}
	n.Metadata = raw
	return nil
}

// Filter selects notifications by read state.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
	FilterRead   Filter = "read"
)

func (f Filter) Valid() bool {
	return f == FilterAll || f == FilterUnread || f == FilterRead
}

// Keep reports whether n passes the filter.
func (f Filter) Keep(n *Notification) bool {
	switch f {
	case FilterUnread:
		return !n.IsRead
	case FilterRead:
		return n.IsRead
	default:
		return true
	}
}
