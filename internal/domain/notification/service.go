package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"staybook/internal/realtime"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateInput describes a notification to deliver to one user.
type CreateInput struct {
	UserID      int64
	Role        Role
	Type        Type
	RelatedType RelatedType
	RelatedID   *int64
	Title       string
	Message     string
	Payload     Payload
}

// Page is one slice of a user's notifications.
type Page struct {
	Items       []Notification `json:"notifications"`
	Total       int64          `json:"total"`
	UnreadCount int64          `json:"unread_count"`
	Limit       int            `json:"limit"`
	Offset      int            `json:"offset"`
}

type Service struct {
	repo      Repository
	publisher realtime.Publisher
	sanitizer *bluemonday.Policy
}

// NewService wires persistence and realtime delivery. publisher may be nil,
// in which case rows are stored but not pushed.
func NewService(repo Repository, publisher realtime.Publisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Create stores a notification and pushes it on the recipient's channel.
// A failed push is logged; the stored row stays authoritative.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Notification, error) {
	if in.UserID <= 0 {
		return nil, ErrMissingUser
	}
	info, ok := typeInfo[in.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	if in.Payload != nil && in.Payload.Family() != info.Family {
		return nil, fmt.Errorf("%w: %s payload for %s", ErrInvalidPayload, in.Payload.Family(), in.Type)
	}
	if in.Role == "" {
		in.Role = RoleGuest
	}

	n := &Notification{
		UserID:      in.UserID,
		Role:        in.Role,
		Type:        in.Type,
		RelatedType: in.RelatedType,
		RelatedID:   in.RelatedID,
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(in.Title)),
		Message:     strings.TrimSpace(s.sanitizer.Sanitize(in.Message)),
	}
	if err := n.SetPayload(in.Payload); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.publish(ctx, realtime.EventInsert, n)
	return n, nil
}

func (s *Service) List(ctx context.Context, userID int64, filter Filter, limit, offset int) (*Page, error) {
	if filter == "" {
		filter = FilterAll
	}
	if !filter.Valid() {
		return nil, ErrInvalidFilter
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.repo.ListPage(ctx, userID, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	return &Page{Items: items, Total: total, UnreadCount: unread, Limit: limit, Offset: offset}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead updates the row only when userID owns it.
func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	if err := s.repo.MarkAsRead(ctx, id, userID); err != nil {
		return err
	}
	s.publish(ctx, realtime.EventUpdate, map[string]any{"id": id, "user_id": userID, "is_read": true})
	return nil
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, realtime.EventUpdate, map[string]any{"user_id": userID, "is_read": true, "all": true})
	}
	return n, nil
}

func (s *Service) NotifyBookingRequestCreated(ctx context.Context, hostID int64, p BookingPayload) error {
	_, err := s.Create(ctx, CreateInput{
		UserID:      hostID,
		Role:        RoleHost,
		Type:        TypeBookingRequestCreated,
		RelatedType: RelatedBooking,
		RelatedID:   &p.BookingID,
		Title:       "New booking request",
		Message:     fmt.Sprintf("%s wants to stay at %s from %s to %s", orDefault(p.GuestName, "A guest"), orDefault(p.PropertyTitle, "your property"), p.CheckIn, p.CheckOut),
		Payload:     p,
	})
	return err
}

func (s *Service) NotifyBookingConfirmed(ctx context.Context, guestID int64, p BookingPayload) error {
	_, err := s.Create(ctx, CreateInput{
		UserID:      guestID,
		Role:        RoleGuest,
		Type:        TypeBookingConfirmed,
		RelatedType: RelatedBooking,
		RelatedID:   &p.BookingID,
		Title:       "Booking confirmed",
		Message:     fmt.Sprintf("Your stay at %s has been confirmed", orDefault(p.PropertyTitle, "the property")),
		Payload:     p,
	})
	return err
}

func (s *Service) NotifyBookingDeclined(ctx context.Context, guestID int64, p BookingPayload) error {
	msg := fmt.Sprintf("Your request for %s was declined", orDefault(p.PropertyTitle, "the property"))
	if p.Reason != "" {
		msg = msg + ". Reason: " + p.Reason
	}
	_, err := s.Create(ctx, CreateInput{
		UserID:      guestID,
		Role:        RoleGuest,
		Type:        TypeBookingDeclined,
		RelatedType: RelatedBooking,
		RelatedID:   &p.BookingID,
		Title:       "Booking declined",
		Message:     msg,
		Payload:     p,
	})
	return err
}

func (s *Service) publish(ctx context.Context, kind realtime.EventKind, row any) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, "notifications", kind, row); err != nil {
		log.Printf("notification_publish_error kind=%s error=%v", kind, err)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
