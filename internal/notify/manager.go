// Package notify binds authenticated sessions to per-user realtime
// notification channels and turns incoming notifications into UI effects.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"staybook/internal/domain/notification"
	"staybook/internal/realtime"
)

const (
	notificationsTable      = "notifications"
	channelPrefix           = "notifications:user:"
	defaultSubscribeTimeout = 10 * time.Second
)

// ChannelName is the transport channel name for a user's notifications.
func ChannelName(userID int64) string {
	return channelPrefix + strconv.FormatInt(userID, 10)
}

// Callback receives every notification inserted for the subscribed user.
type Callback func(notification.Notification)

type Option func(*Manager)

// WithSingleUser keeps at most one user channel open: subscribing a user
// tears down the channel of any other user and drops its subscribers.
func WithSingleUser() Option {
	return func(m *Manager) { m.singleUser = true }
}

// WithSubscribeTimeout bounds how long Subscribe waits for the channel to join.
func WithSubscribeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.subscribeTimeout = d
		}
	}
}

type subscriber struct {
	token uuid.UUID
	cb    Callback
}

// userSlot exists while the user has at least one subscriber. channel is nil
// between a transport failure and the next Subscribe. gen identifies the slot
// so a creation started for a released slot is never joined by a newer one.
type userSlot struct {
	gen         uint64
	channel     realtime.Channel
	subscribers []subscriber
}

// Manager owns the realtime channels for notification delivery. It keeps at
// most one channel per user and shares it between all of that user's
// subscribers.
type Manager struct {
	client           realtime.Client
	singleUser       bool
	subscribeTimeout time.Duration

	mu      sync.Mutex
	slots   map[int64]*userSlot
	nextGen uint64
	closed  bool

	opening  singleflight.Group
	created  atomic.Int64
	tornDown atomic.Int64
}

func NewManager(client realtime.Client, opts ...Option) *Manager {
	m := &Manager{
		client:           client,
		subscribeTimeout: defaultSubscribeTimeout,
		slots:            make(map[int64]*userSlot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers cb for userID's notifications, opening the user's
// channel when none is open. Concurrent callers for the same user share one
// channel creation. The returned func releases this registration; it is safe
// to call more than once, and the last release for a user closes the channel.
func (m *Manager) Subscribe(ctx context.Context, userID int64, cb Callback) (func(), error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	if cb == nil {
		return nil, ErrNilCallback
	}

	token := uuid.New()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	var evicted []realtime.Channel
	if m.singleUser {
		for other, slot := range m.slots {
			if other == userID {
				continue
			}
			if slot.channel != nil {
				evicted = append(evicted, slot.channel)
			}
			delete(m.slots, other)
			log.Printf("notify_evict user_id=%d subscribers=%d next_user_id=%d", other, len(slot.subscribers), userID)
		}
	}
	slot, ok := m.slots[userID]
	if !ok {
		m.nextGen++
		slot = &userSlot{gen: m.nextGen}
		m.slots[userID] = slot
	}
	slot.subscribers = append(slot.subscribers, subscriber{token: token, cb: cb})
	needsChannel := slot.channel == nil
	m.mu.Unlock()

	for _, ch := range evicted {
		m.teardown(ch)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { m.release(userID, token) })
	}

	if !needsChannel {
		return release, nil
	}

	key := ChannelName(userID) + "#" + strconv.FormatUint(slot.gen, 10)
	result := m.opening.DoChan(key, func() (any, error) {
		return nil, m.open(userID, slot)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			release()
			return nil, res.Err
		}
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}

	return release, nil
}

// open creates and joins the channel for slot unless another caller already
// did or the slot was released in the meantime.
func (m *Manager) open(userID int64, slot *userSlot) error {
	name := ChannelName(userID)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if current, ok := m.slots[userID]; !ok || current != slot || slot.channel != nil {
		m.mu.Unlock()
		return nil
	}

	for _, stale := range m.client.Channels() {
		if stale.Name() == name {
			if err := m.client.RemoveChannel(stale); err != nil {
				log.Printf("notify_stale_channel_error channel=%s error=%v", name, err)
			}
		}
	}

	binding := realtime.Binding{Table: notificationsTable, Filter: "user_id=eq." + strconv.FormatInt(userID, 10)}
	ch := m.client.Channel(name)
	ch.On(realtime.EventInsert, binding, m.onInsert(userID, ch)).
		On(realtime.EventUpdate, binding, m.onUpdate(userID))

	slot.channel = ch
	m.created.Add(1)
	m.mu.Unlock()

	joined := make(chan error, 1)
	var first sync.Once
	ch.Subscribe(func(status realtime.Status, err error) {
		if status != realtime.StatusSubscribed {
			log.Printf("realtime_channel_status user_id=%d channel=%s status=%s error=%v", userID, name, status, err)
			m.reset(userID, ch)
		}
		first.Do(func() {
			if status == realtime.StatusSubscribed {
				joined <- nil
				return
			}
			joined <- fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, status, err)
		})
	})

	timer := time.NewTimer(m.subscribeTimeout)
	defer timer.Stop()
	select {
	case err := <-joined:
		return err
	case <-timer.C:
		log.Printf("realtime_channel_status user_id=%d channel=%s status=%s", userID, name, realtime.StatusTimedOut)
		m.reset(userID, ch)
		return fmt.Errorf("%w: %s", ErrSubscribeFailed, realtime.StatusTimedOut)
	}
}

// Live reports whether userID has an open or joining channel. It turns false
// after a transport failure until the next Subscribe reopens the channel.
func (m *Manager) Live(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[userID]
	return ok && slot.channel != nil
}

// reset forgets ch as userID's channel so the next Subscribe reopens it.
// Subscribers stay registered.
func (m *Manager) reset(userID int64, ch realtime.Channel) {
	m.mu.Lock()
	slot, ok := m.slots[userID]
	if !ok || slot.channel != ch {
		m.mu.Unlock()
		return
	}
	slot.channel = nil
	m.mu.Unlock()

	m.teardown(ch)
}

func (m *Manager) release(userID int64, token uuid.UUID) {
	m.mu.Lock()
	slot, ok := m.slots[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	idx := -1
	for i, s := range slot.subscribers {
		if s.token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	slot.subscribers = append(slot.subscribers[:idx], slot.subscribers[idx+1:]...)
	if len(slot.subscribers) > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.slots, userID)
	ch := slot.channel
	m.mu.Unlock()

	if ch != nil {
		m.teardown(ch)
	}
}

func (m *Manager) teardown(ch realtime.Channel) {
	if err := m.client.RemoveChannel(ch); err != nil {
		log.Printf("notify_teardown_error channel=%s error=%v", ch.Name(), err)
	}
	m.tornDown.Add(1)
}

func (m *Manager) onInsert(userID int64, ch realtime.Channel) realtime.Handler {
	return func(ev realtime.Event) {
		var n notification.Notification
		if err := json.Unmarshal(ev.Row, &n); err != nil {
			log.Printf("notify_decode_error user_id=%d error=%v", userID, err)
			return
		}

		m.mu.Lock()
		slot, ok := m.slots[userID]
		if !ok || slot.channel != ch {
			m.mu.Unlock()
			return
		}
		callbacks := make([]Callback, len(slot.subscribers))
		for i, s := range slot.subscribers {
			callbacks[i] = s.cb
		}
		m.mu.Unlock()

		for _, cb := range callbacks {
			deliver(userID, cb, n)
		}
	}
}

func (m *Manager) onUpdate(userID int64) realtime.Handler {
	return func(ev realtime.Event) {
		log.Printf("notify_update_received user_id=%d row=%s", userID, ev.Row)
	}
}

func deliver(userID int64, cb Callback, n notification.Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notify_callback_panic user_id=%d notification_id=%d panic=%v", userID, n.ID, r)
		}
	}()
	cb(n)
}

// Close tears down every channel and rejects further subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	channels := make([]realtime.Channel, 0, len(m.slots))
	for _, slot := range m.slots {
		if slot.channel != nil {
			channels = append(channels, slot.channel)
		}
	}
	m.slots = make(map[int64]*userSlot)
	m.mu.Unlock()

	for _, ch := range channels {
		m.teardown(ch)
	}
}

// ChannelCount is the number of user channels currently open.
func (m *Manager) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, slot := range m.slots {
		if slot.channel != nil {
			n++
		}
	}
	return n
}

func (m *Manager) SubscriberCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok := m.slots[userID]; ok {
		return len(slot.subscribers)
	}
	return 0
}

// CreatedCount is the number of channels opened since construction.
func (m *Manager) CreatedCount() int64 {
	return m.created.Load()
}

// TornDownCount is the number of channels closed since construction.
func (m *Manager) TornDownCount() int64 {
	return m.tornDown.Load()
}
