package notification

import "strconv"

const (
	RouteHostBookingRequests = "/host/booking-requests"
	RouteMyBookings          = "/my-bookings"
	RouteWallet              = "/wallet"
	RouteAdmin               = "/admin"
	RouteHelp                = "/help"
	routePropertyPrefix      = "/properties/"
)

// RouteFor maps a notification's related entity to an in-app route. ok is
// false when there is nowhere to navigate.
func RouteFor(relatedType RelatedType, relatedID *int64, role Role, t Type) (route string, ok bool) {
	switch relatedType {
	case RelatedBooking:
		if t == TypeBookingRequestCreated {
			return RouteHostBookingRequests, true
		}
		return RouteMyBookings, true
	case RelatedProperty:
		if relatedID == nil {
			return "", false
		}
		return routePropertyPrefix + strconv.FormatInt(*relatedID, 10), true
	case RelatedPayout, RelatedPayment:
		return RouteWallet, true
	case RelatedUser, RelatedDispute:
		if role == RoleAdmin {
			return RouteAdmin, true
		}
		return RouteHelp, true
	case RelatedSystem:
		if role == RoleAdmin {
			return RouteAdmin, true
		}
		return "", false
	default:
		return "", false
	}
}

// Route is RouteFor applied to n.
func (n *Notification) Route() (string, bool) {
	return RouteFor(n.RelatedType, n.RelatedID, n.Role, n.Type)
}
