package gateway

import (
	"net/url"
	"sync"
)

const loginRoute = "/login"

// Navigator sends navigate frames. Anonymous sessions are sent to the login
// page with the intended route as redirect; that route is replayed once the
// session authenticates.
type Navigator struct {
	emit func(route string)

	mu            sync.Mutex
	authenticated bool
	pending       string
}

func NewNavigator(emit func(route string)) *Navigator {
	return &Navigator{emit: emit}
}

func (n *Navigator) NavigateWithAuth(route string) {
	n.mu.Lock()
	if n.authenticated {
		n.mu.Unlock()
		n.emit(route)
		return
	}
	n.pending = route
	n.mu.Unlock()

	n.emit(LoginRedirect(route))
}

// SetAuthenticated records the session state. Becoming authenticated with a
// remembered route navigates there.
func (n *Navigator) SetAuthenticated(authenticated bool) {
	n.mu.Lock()
	n.authenticated = authenticated
	pending := ""
	if authenticated {
		pending = n.pending
		n.pending = ""
	}
	n.mu.Unlock()

	if pending != "" {
		n.emit(pending)
	}
}

// Pending returns the route waiting for login.
func (n *Navigator) Pending() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

func LoginRedirect(route string) string {
	return loginRoute + "?redirect=" + url.QueryEscape(route)
}
