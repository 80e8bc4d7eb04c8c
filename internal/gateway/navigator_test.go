package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"staybook/internal/domain/property"
	"staybook/internal/notify"
)

func TestNavigator_AnonymousGoesThroughLogin(t *testing.T) {
	var routes []string
	n := NewNavigator(func(route string) { routes = append(routes, route) })

	n.NavigateWithAuth("/bookings/42")
	assert.Equal(t, []string{"/login?redirect=%2Fbookings%2F42"}, routes)
	assert.Equal(t, "/bookings/42", n.Pending())

	n.SetAuthenticated(true)
	assert.Equal(t, []string{"/login?redirect=%2Fbookings%2F42", "/bookings/42"}, routes)
	assert.Empty(t, n.Pending())

	n.NavigateWithAuth("/properties/7")
	assert.Equal(t, "/properties/7", routes[len(routes)-1])
}

func TestNavigator_LogoutKeepsNoRoute(t *testing.T) {
	var routes []string
	n := NewNavigator(func(route string) { routes = append(routes, route) })

	n.SetAuthenticated(true)
	n.SetAuthenticated(false)
	assert.Empty(t, routes)

	n.NavigateWithAuth("/notifications")
	n.NavigateWithAuth("/bookings/1")
	n.SetAuthenticated(true)
	assert.Equal(t, "/bookings/1", routes[len(routes)-1])
	assert.Len(t, routes, 3)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{notify.ErrNotAuthenticated, "NOT_AUTHENTICATED"},
		{fmt.Errorf("%w: timed out", notify.ErrSubscribeFailed), "REALTIME_UNAVAILABLE"},
		{notify.ErrUnknownNotification, "NOTIFICATION_NOT_FOUND"},
		{fmt.Errorf("%w: %q", notify.ErrUnknownAction, "archive"), "INVALID_ACTION"},
		{property.ErrInvalidSort, "VALIDATION_ERROR"},
		{property.ErrNotFound, "NOT_FOUND"},
		{errInvalidToken, "INVALID_TOKEN"},
		{errors.New("boom"), "COMMAND_FAILED"},
	}
	for _, tt := range tests {
		code, _ := errorCode(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
