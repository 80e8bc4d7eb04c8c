package notify

import "staybook/internal/domain/notification"

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionView    = "view"
)

// Reasons recorded on bookings handled from a notification toast.
const (
	QuickApproveReason = "Approved from notification quick action"
	QuickDeclineReason = "Declined from notification quick action"
)

// ShouldShowNotificationActions reports whether n gets accept/decline/view
// buttons: a new booking request addressed to its host.
func ShouldShowNotificationActions(n notification.Notification) bool {
	return n.Type == notification.TypeBookingRequestCreated &&
		n.Role == notification.RoleHost &&
		n.RelatedType == notification.RelatedBooking &&
		n.RelatedID != nil
}
