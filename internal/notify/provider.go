package notify

import (
	"context"
	"fmt"
	"log"
	"sync"

	"staybook/internal/domain/notification"
	"staybook/internal/pkg/toast"
)

const refreshPageSize = 20

// AuthState is the session identity the provider follows.
type AuthState struct {
	Authenticated bool
	UserID        int64
	Role          string
}

// Subscriber is the subset of Manager the provider needs.
type Subscriber interface {
	Subscribe(ctx context.Context, userID int64, cb Callback) (func(), error)
	Live(userID int64) bool
}

// NotificationSource is the server-side notification store.
type NotificationSource interface {
	List(ctx context.Context, userID int64, filter notification.Filter, limit, offset int) (*notification.Page, error)
	MarkAsRead(ctx context.Context, id, userID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
}

// BookingActions approves or declines a booking on behalf of its host.
type BookingActions interface {
	ApproveBooking(ctx context.Context, hostID, bookingID int64, reason string) error
	DeclineBooking(ctx context.Context, hostID, bookingID int64, reason string) error
}

// Navigator moves the user to an in-app route, going through login first
// when the session is anonymous.
type Navigator interface {
	NavigateWithAuth(route string)
}

type ProviderOption func(*Provider)

// WithStoreListener is called after every store change the provider makes.
func WithStoreListener(fn func(notification.State)) ProviderOption {
	return func(p *Provider) { p.onChange = fn }
}

// Provider follows the session's auth state, holds at most one manager
// subscription for it and turns incoming notifications into toasts.
type Provider struct {
	subscriber Subscriber
	store      *notification.Store
	source     NotificationSource
	toaster    toast.Toaster
	bookings   BookingActions
	navigator  Navigator
	onChange   func(notification.State)

	// life serializes subscription changes; mu guards the fields below.
	life        sync.Mutex
	mu          sync.RWMutex
	auth        AuthState
	subscribed  int64
	unsubscribe func()
}

func NewProvider(
	subscriber Subscriber,
	store *notification.Store,
	source NotificationSource,
	toaster toast.Toaster,
	bookings BookingActions,
	navigator Navigator,
	opts ...ProviderOption,
) *Provider {
	p := &Provider{
		subscriber: subscriber,
		store:      store,
		source:     source,
		toaster:    toaster,
		bookings:   bookings,
		navigator:  navigator,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnAuthChange releases the held subscription on logout or user switch and
// subscribes for the new user. For the same user it resubscribes only when
// the held channel was lost, keeping the cached notifications.
func (p *Provider) OnAuthChange(ctx context.Context, state AuthState) error {
	p.life.Lock()
	defer p.life.Unlock()

	if !state.Authenticated || state.UserID <= 0 {
		p.releaseLocked()
		p.mu.Lock()
		p.auth = AuthState{}
		p.mu.Unlock()
		p.store.SetNotifications(nil)
		p.changed()
		return nil
	}

	p.mu.Lock()
	p.auth = state
	same := p.unsubscribe != nil && p.subscribed == state.UserID
	p.mu.Unlock()
	if same {
		if p.subscriber.Live(state.UserID) {
			return nil
		}
		return p.resubscribeLocked(ctx, state.UserID)
	}

	if p.hasSubscription() {
		p.releaseLocked()
		p.store.SetNotifications(nil)
		p.changed()
	}

	unsubscribe, err := p.subscriber.Subscribe(ctx, state.UserID, p.handle)
	if err != nil {
		log.Printf("notify_provider_subscribe_error user_id=%d error=%v", state.UserID, err)
		return err
	}

	p.mu.Lock()
	p.subscribed = state.UserID
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	return nil
}

// resubscribeLocked registers a fresh subscription for the held user, which
// reopens the lost channel, then drops the dead one. On failure the dead
// subscription is kept and Subscribed keeps reporting false.
func (p *Provider) resubscribeLocked(ctx context.Context, userID int64) error {
	log.Printf("notify_provider_resubscribe user_id=%d", userID)
	unsubscribe, err := p.subscriber.Subscribe(ctx, userID, p.handle)
	if err != nil {
		log.Printf("notify_provider_subscribe_error user_id=%d error=%v", userID, err)
		return err
	}

	p.mu.Lock()
	stale := p.unsubscribe
	p.unsubscribe = unsubscribe
	p.mu.Unlock()

	if stale != nil {
		stale()
	}
	return nil
}

// Close releases the held subscription, if any.
func (p *Provider) Close() {
	p.life.Lock()
	defer p.life.Unlock()
	p.releaseLocked()
}

// Subscribed reports the user the provider holds a subscription for and
// whether that subscription still has a live channel.
func (p *Provider) Subscribed() (int64, bool) {
	p.mu.RLock()
	userID, held := p.subscribed, p.unsubscribe != nil
	p.mu.RUnlock()
	return userID, held && p.subscriber.Live(userID)
}

func (p *Provider) Auth() AuthState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.auth
}

func (p *Provider) hasSubscription() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unsubscribe != nil
}

func (p *Provider) releaseLocked() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.subscribed = 0
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handle is the manager callback for each inserted notification.
func (p *Provider) handle(n notification.Notification) {
	if !p.store.AddNotification(n) {
		return
	}
	p.changed()

	pres := notification.PresentationFor(n.Type)
	t := toast.Toast{
		Level:          toast.LevelInfo,
		Title:          n.Title,
		Message:        n.Message,
		Icon:           pres.Icon,
		Duration:       pres.Duration,
		NotificationID: n.ID,
	}

	if ShouldShowNotificationActions(n) {
		t.Level = toast.LevelAction
		t.Actions = []toast.Action{
			{ID: ActionAccept, Label: "Accept"},
			{ID: ActionDecline, Label: "Decline"},
			{ID: ActionView, Label: "View"},
		}
	} else if _, ok := n.Route(); ok {
		t.Actions = []toast.Action{{ID: ActionView, Label: "View"}}
	}

	p.toaster.Custom(t)
}

// HandleAction dispatches a toast button press. Failures are shown as a
// toast and returned; nothing panics out of here.
func (p *Provider) HandleAction(ctx context.Context, notificationID int64, action string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notify_action_panic notification_id=%d action=%s panic=%v", notificationID, action, r)
			err = fmt.Errorf("notification action %s: %v", action, r)
			p.toaster.Error("Something went wrong, please try again")
		}
	}()

	n, ok := p.store.Get(notificationID)
	if !ok {
		p.toaster.Error("This notification is no longer available")
		return ErrUnknownNotification
	}

	switch action {
	case ActionAccept:
		return p.bookingAction(ctx, n, true)
	case ActionDecline:
		return p.bookingAction(ctx, n, false)
	case ActionView:
		route, ok := n.Route()
		if !ok {
			return nil
		}
		p.navigator.NavigateWithAuth(route)
		p.markReadQuietly(ctx, n.ID)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (p *Provider) bookingAction(ctx context.Context, n notification.Notification, approve bool) error {
	if !ShouldShowNotificationActions(n) {
		p.toaster.Error("This notification has no booking to act on")
		return ErrActionNotApplicable
	}
	auth := p.Auth()
	if !auth.Authenticated {
		p.toaster.Error("Please sign in to manage bookings")
		return ErrNotAuthenticated
	}

	bookingID := *n.RelatedID
	var err error
	if approve {
		err = p.bookings.ApproveBooking(ctx, auth.UserID, bookingID, QuickApproveReason)
	} else {
		err = p.bookings.DeclineBooking(ctx, auth.UserID, bookingID, QuickDeclineReason)
	}
	if err != nil {
		log.Printf("notify_booking_action_error booking_id=%d approve=%t error=%v", bookingID, approve, err)
		if approve {
			p.toaster.Error("Failed to accept booking")
		} else {
			p.toaster.Error("Failed to decline booking")
		}
		return err
	}

	if approve {
		p.toaster.Success("Booking accepted")
	} else {
		p.toaster.Success("Booking declined")
	}
	p.markReadQuietly(ctx, n.ID)
	return nil
}

// Refresh loads the first page of notifications into the store.
func (p *Provider) Refresh(ctx context.Context) error {
	return p.fetch(ctx, false)
}

// LoadMore appends the next page after what the store already holds.
func (p *Provider) LoadMore(ctx context.Context) error {
	return p.fetch(ctx, true)
}

func (p *Provider) fetch(ctx context.Context, more bool) error {
	auth := p.Auth()
	if !auth.Authenticated {
		return ErrNotAuthenticated
	}

	p.store.SetLoading(true)
	p.changed()
	defer func() {
		p.store.SetLoading(false)
		p.changed()
	}()

	offset := 0
	var existing []notification.Notification
	if more {
		existing = p.store.Snapshot().Notifications
		offset = len(existing)
	}

	page, err := p.source.List(ctx, auth.UserID, notification.FilterAll, refreshPageSize, offset)
	if err != nil {
		p.store.SetError(err)
		p.toaster.Error("Failed to load notifications")
		return err
	}

	p.store.SetNotifications(append(existing, page.Items...))
	p.store.SetError(nil)
	return nil
}

func (p *Provider) MarkAsRead(ctx context.Context, id int64) error {
	auth := p.Auth()
	if !auth.Authenticated {
		return ErrNotAuthenticated
	}
	if err := p.source.MarkAsRead(ctx, id, auth.UserID); err != nil {
		p.store.SetError(err)
		p.changed()
		p.toaster.Error("Failed to mark notification as read")
		return err
	}
	p.store.MarkAsRead(id)
	p.changed()
	return nil
}

func (p *Provider) MarkAllAsRead(ctx context.Context) error {
	auth := p.Auth()
	if !auth.Authenticated {
		return ErrNotAuthenticated
	}
	if _, err := p.source.MarkAllAsRead(ctx, auth.UserID); err != nil {
		p.store.SetError(err)
		p.changed()
		p.toaster.Error("Failed to mark notifications as read")
		return err
	}
	p.store.MarkAllAsRead()
	p.changed()
	return nil
}

func (p *Provider) markReadQuietly(ctx context.Context, id int64) {
	auth := p.Auth()
	if !auth.Authenticated || p.source == nil {
		return
	}
	if err := p.source.MarkAsRead(ctx, id, auth.UserID); err != nil {
		log.Printf("notify_mark_read_error notification_id=%d error=%v", id, err)
		return
	}
	p.store.MarkAsRead(id)
	p.changed()
}

func (p *Provider) changed() {
	if p.onChange != nil {
		p.onChange(p.store.Snapshot())
	}
}
