package booking

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/database"
	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
)

const (
	maxStayNights   = 90
	defaultListSize = 20
	maxListSize     = 100
)

type Service struct {
	bookings   BookingRepository
	properties PropertyLookup
	guests     GuestDirectory
	notifs     NotificationSender
	now        func() time.Time
}

func NewService(bookings BookingRepository, properties PropertyLookup, guests GuestDirectory, notifs NotificationSender) *Service {
	return &Service{
		bookings:   bookings,
		properties: properties,
		guests:     guests,
		notifs:     notifs,
		now:        time.Now,
	}
}

// CreateRequest files a pending booking for guestID and tells the host.
func (s *Service) CreateRequest(ctx context.Context, guestID int64, req CreateBookingRequest) (*Booking, error) {
	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		return nil, ErrValidation
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		return nil, ErrValidation
	}
	if !checkOut.After(checkIn) || req.Guests < 1 {
		return nil, ErrValidation
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if checkIn.Before(today) {
		return nil, ErrValidation
	}

	p, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, property.ErrNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	if p.Status != property.StatusPublished {
		return nil, ErrPropertyNotFound
	}
	if p.HostID == guestID {
		return nil, ErrForbidden
	}
	if req.Guests > p.MaxGuests {
		return nil, ErrValidation
	}

	b := &Booking{
		RequestKey: strings.TrimSpace(req.RequestKey),
		PropertyID: p.ID,
		GuestID:    guestID,
		HostID:     p.HostID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     req.Guests,
		Status:     StatusPending,
		Notes:      strings.TrimSpace(req.Notes),
	}
	if b.Nights() > maxStayNights {
		return nil, ErrValidation
	}
	if b.RequestKey == "" {
		b.RequestKey = uuid.NewString()
	}

	busy, err := s.bookings.HasConfirmedOverlap(ctx, p.ID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrNotAvailable
	}

	b.TotalPrice = math.Round(float64(b.Nights())*p.PricePerNight*100) / 100

	if err := s.bookings.Create(ctx, b); err != nil {
		if database.IsUniqueViolation(err, "idx_bookings_request_key") {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	if s.notifs != nil {
		payload := b.Payload(p.Title, s.guestName(ctx, guestID))
		if err := s.notifs.NotifyBookingRequestCreated(ctx, p.HostID, payload); err != nil {
			log.Printf("booking_notify_error booking_id=%d host_id=%d error=%v", b.ID, p.HostID, err)
		}
	}

	return b, nil
}

// ApproveBooking confirms a pending request owned by hostID.
func (s *Service) ApproveBooking(ctx context.Context, hostID, bookingID int64, reason string) error {
	_, err := s.Approve(ctx, hostID, bookingID, reason)
	return err
}

// DeclineBooking declines a pending request owned by hostID. A reason is
// required so the guest learns why.
func (s *Service) DeclineBooking(ctx context.Context, hostID, bookingID int64, reason string) error {
	_, err := s.Decline(ctx, hostID, bookingID, reason)
	return err
}

func (s *Service) Approve(ctx context.Context, hostID, bookingID int64, reason string) (*Booking, error) {
	b, err := s.decide(ctx, hostID, bookingID, StatusConfirmed, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	if s.notifs != nil {
		if err := s.notifs.NotifyBookingConfirmed(ctx, b.GuestID, s.payload(ctx, b)); err != nil {
			log.Printf("booking_notify_error booking_id=%d guest_id=%d error=%v", b.ID, b.GuestID, err)
		}
	}
	return b, nil
}

func (s *Service) Decline(ctx context.Context, hostID, bookingID int64, reason string) (*Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrValidation
	}
	b, err := s.decide(ctx, hostID, bookingID, StatusDeclined, reason)
	if err != nil {
		return nil, err
	}
	if s.notifs != nil {
		if err := s.notifs.NotifyBookingDeclined(ctx, b.GuestID, s.payload(ctx, b)); err != nil {
			log.Printf("booking_notify_error booking_id=%d guest_id=%d error=%v", b.ID, b.GuestID, err)
		}
	}
	return b, nil
}

// Cancel withdraws a guest's own pending or confirmed booking.
func (s *Service) Cancel(ctx context.Context, guestID, bookingID int64, reason string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != guestID {
		return nil, ErrForbidden
	}
	return s.bookings.Transition(ctx, bookingID, StatusCancelled, strings.TrimSpace(reason), s.now().UTC(), StatusPending, StatusConfirmed)
}

// Get returns a booking visible to userID as either its guest or its host.
func (s *Service) Get(ctx context.Context, userID, bookingID int64) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != userID && b.HostID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListSize
	}
	if filter.Limit > maxListSize {
		filter.Limit = maxListSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	switch filter.Status {
	case "", StatusPending, StatusConfirmed, StatusDeclined, StatusCancelled, StatusCompleted:
	default:
		return nil, ErrValidation
	}

	rows, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Booking{}
	}
	return &ListResponse{Bookings: rows, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) decide(ctx context.Context, hostID, bookingID int64, to Status, reason string) (*Booking, error) {
	if hostID <= 0 || bookingID <= 0 {
		return nil, ErrValidation
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.HostID != hostID {
		return nil, ErrForbidden
	}
	return s.bookings.Transition(ctx, bookingID, to, reason, s.now().UTC(), StatusPending)
}

func (s *Service) payload(ctx context.Context, b *Booking) notification.BookingPayload {
	_, title, err := s.properties.HostOf(ctx, b.PropertyID)
	if err != nil {
		log.Printf("booking_property_lookup_error property_id=%d error=%v", b.PropertyID, err)
	}
	return b.Payload(title, "")
}

func (s *Service) guestName(ctx context.Context, guestID int64) string {
	if s.guests == nil {
		return ""
	}
	name, err := s.guests.DisplayName(ctx, guestID)
	if err != nil {
		log.Printf("booking_guest_lookup_error guest_id=%d error=%v", guestID, err)
		return ""
	}
	return name
}
