package notification

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	durationShort      = 4 * time.Second
	durationDefault    = 5 * time.Second
	durationImportant  = 8 * time.Second
	durationActionable = 15 * time.Second
)

// Presentation is how a notification type is shown to the user.
type Presentation struct {
	Family   Family        `json:"family"`
	Severity Severity      `json:"severity"`
	Icon     string        `json:"icon"`
	Duration time.Duration `json:"duration"`
}

// typeInfo is the one table every per-type lookup reads from.
var typeInfo = map[Type]Presentation{
	TypeBookingRequestCreated: {FamilyBooking, SeverityInfo, "calendar-plus", durationActionable},
	TypeBookingConfirmed:      {FamilyBooking, SeveritySuccess, "calendar-check", durationImportant},
	TypeBookingDeclined:       {FamilyBooking, SeverityWarning, "calendar-x", durationImportant},
	TypeBookingCancelled:      {FamilyBooking, SeverityWarning, "calendar-x", durationImportant},
	TypeBookingCompleted:      {FamilyBooking, SeveritySuccess, "calendar-check", durationDefault},
	TypeBookingReminder:       {FamilyBooking, SeverityInfo, "clock", durationDefault},

	TypePaymentReceived: {FamilyPayment, SeveritySuccess, "credit-card", durationDefault},
	TypePaymentFailed:   {FamilyPayment, SeverityCritical, "credit-card-off", durationImportant},
	TypePaymentRefunded: {FamilyPayment, SeverityInfo, "receipt-refund", durationDefault},

	TypePropertyApproved: {FamilyProperty, SeveritySuccess, "home-check", durationDefault},
	TypePropertyRejected: {FamilyProperty, SeverityWarning, "home-x", durationImportant},
	TypePropertyReviewed: {FamilyProperty, SeverityInfo, "star", durationShort},

	TypePayoutSent:   {FamilyPayout, SeveritySuccess, "wallet", durationDefault},
	TypePayoutFailed: {FamilyPayout, SeverityCritical, "wallet-off", durationImportant},

	TypeAccountVerified:  {FamilyAccount, SeveritySuccess, "badge-check", durationDefault},
	TypePasswordChanged:  {FamilyAccount, SeverityInfo, "key", durationDefault},
	TypeSecurityAlert:    {FamilyAccount, SeverityCritical, "shield-alert", durationImportant},
	TypeAccountSuspended: {FamilyAccount, SeverityCritical, "user-x", durationImportant},

	TypeDisputeOpened:      {FamilySystem, SeverityWarning, "scale", durationImportant},
	TypeDisputeResolved:    {FamilySystem, SeveritySuccess, "scale", durationDefault},
	TypeSystemAnnouncement: {FamilySystem, SeverityInfo, "megaphone", durationDefault},
}

var fallbackPresentation = Presentation{FamilySystem, SeverityInfo, "bell", durationDefault}

// PresentationFor returns the table entry for t, or a plain info entry for
// types this build does not know.
func PresentationFor(t Type) Presentation {
	if p, ok := typeInfo[t]; ok {
		return p
	}
	return fallbackPresentation
}

func (t Type) Valid() bool {
	_, ok := typeInfo[t]
	return ok
}

// AllTypes lists every declared type.
func AllTypes() []Type {
	return []Type{
		TypeBookingRequestCreated, TypeBookingConfirmed, TypeBookingDeclined,
		TypeBookingCancelled, TypeBookingCompleted, TypeBookingReminder,
		TypePaymentReceived, TypePaymentFailed, TypePaymentRefunded,
		TypePropertyApproved, TypePropertyRejected, TypePropertyReviewed,
		TypePayoutSent, TypePayoutFailed,
		TypeAccountVerified, TypePasswordChanged, TypeSecurityAlert, TypeAccountSuspended,
		TypeDisputeOpened, TypeDisputeResolved, TypeSystemAnnouncement,
	}
}
