package notification

import (
	"encoding/json"
	"fmt"
)

// Family groups notification types that share a payload shape.
type Family string

const (
	FamilyBooking  Family = "booking"
	FamilyPayment  Family = "payment"
	FamilyProperty Family = "property"
	FamilyPayout   Family = "payout"
	FamilyAccount  Family = "account"
	FamilySystem   Family = "system"
)

// Payload is the typed metadata of a notification. Each family has exactly
// one variant.
type Payload interface {
	Family() Family
}

type BookingPayload struct {
	BookingID     int64  `json:"booking_id"`
	PropertyID    int64  `json:"property_id,omitempty"`
	PropertyTitle string `json:"property_title,omitempty"`
	GuestName     string `json:"guest_name,omitempty"`
	CheckIn       string `json:"check_in,omitempty"`
	CheckOut      string `json:"check_out,omitempty"`
	GuestCount    int    `json:"guest_count,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type PaymentPayload struct {
	PaymentID int64   `json:"payment_id"`
	BookingID int64   `json:"booking_id,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type PropertyPayload struct {
	PropertyID    int64  `json:"property_id"`
	PropertyTitle string `json:"property_title,omitempty"`
	Rating        int    `json:"rating,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type PayoutPayload struct {
	PayoutID int64   `json:"payout_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

type AccountPayload struct {
	Device string `json:"device,omitempty"`
	IP     string `json:"ip,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type SystemPayload struct {
	DisputeID int64  `json:"dispute_id,omitempty"`
	Link      string `json:"link,omitempty"`
}

func (BookingPayload) Family() Family  { return FamilyBooking }
func (PaymentPayload) Family() Family  { return FamilyPayment }
func (PropertyPayload) Family() Family { return FamilyProperty }
func (PayoutPayload) Family() Family   { return FamilyPayout }
func (AccountPayload) Family() Family  { return FamilyAccount }
func (SystemPayload) Family() Family   { return FamilySystem }

// DecodePayload decodes raw metadata into the variant for t. Empty metadata
// yields the zero variant.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	info, ok := typeInfo[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	var (
		p   Payload
		err error
	)
	switch info.Family {
	case FamilyBooking:
		p, err = decodeInto[BookingPayload](raw)
	case FamilyPayment:
		p, err = decodeInto[PaymentPayload](raw)
	case FamilyProperty:
		p, err = decodeInto[PropertyPayload](raw)
	case FamilyPayout:
		p, err = decodeInto[PayoutPayload](raw)
	case FamilyAccount:
		p, err = decodeInto[AccountPayload](raw)
	case FamilySystem:
		p, err = decodeInto[SystemPayload](raw)
	default:
		return nil, fmt.Errorf("%w: family %q", ErrUnknownType, info.Family)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
	}
	return p, nil
}

// EncodePayload marshals p. A nil payload encodes as nil metadata.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return b, nil
}

func decodeInto[T Payload](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
