package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/notification"
	"staybook/internal/realtime"
)

type inbox struct {
	mu    sync.Mutex
	items []notification.Notification
}

func (b *inbox) add(n notification.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
}

func (b *inbox) ids() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int64, 0, len(b.items))
	for _, n := range b.items {
		out = append(out, n.ID)
	}
	return out
}

func publishTo(t *testing.T, broker *realtime.MemoryBroker, userID, id int64) {
	t.Helper()
	n := notification.Notification{
		ID:      id,
		UserID:  userID,
		Role:    notification.RoleGuest,
		Type:    notification.TypeSystemAnnouncement,
		Title:   "Hello",
		Message: "world",
	}
	require.NoError(t, broker.Publish(context.Background(), "notifications", realtime.EventInsert, n))
}

func TestManager_SharesOneChannelPerUser(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := broker.NewClient()
	m := NewManager(client)
	ctx := context.Background()

	var a, b inbox
	releaseA, err := m.Subscribe(ctx, 7, a.add)
	require.NoError(t, err)
	releaseB, err := m.Subscribe(ctx, 7, b.add)
	require.NoError(t, err)

	assert.Equal(t, 1, m.ChannelCount())
	assert.Equal(t, 2, m.SubscriberCount(7))
	assert.Equal(t, int64(1), m.CreatedCount())
	assert.Len(t, client.Channels(), 1)

	publishTo(t, broker, 7, 1)
	publishTo(t, broker, 8, 2)

	assert.Equal(t, []int64{1}, a.ids())
	assert.Equal(t, []int64{1}, b.ids())

	releaseA()
	assert.Equal(t, 1, m.ChannelCount())
	assert.Equal(t, int64(0), m.TornDownCount())

	releaseB()
	assert.Equal(t, 0, m.ChannelCount())
	assert.Equal(t, int64(1), m.TornDownCount())
	assert.Empty(t, client.Channels())

	publishTo(t, broker, 7, 3)
	assert.Equal(t, []int64{1}, a.ids())
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	m := NewManager(broker.NewClient())
	ctx := context.Background()

	release, err := m.Subscribe(ctx, 7, func(notification.Notification) {})
	require.NoError(t, err)
	other, err := m.Subscribe(ctx, 7, func(notification.Notification) {})
	require.NoError(t, err)

	release()
	release()
	assert.Equal(t, 1, m.SubscriberCount(7))
	assert.Equal(t, 1, m.ChannelCount())

	other()
	other()
	assert.Equal(t, 0, m.SubscriberCount(7))
	assert.Equal(t, int64(1), m.TornDownCount())
}

func TestManager_RejectsInvalidInput(t *testing.T) {
	m := NewManager(realtime.NewMemoryBroker().NewClient())
	ctx := context.Background()

	_, err := m.Subscribe(ctx, 0, func(notification.Notification) {})
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = m.Subscribe(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrNilCallback)

	m.Close()
	_, err = m.Subscribe(ctx, 1, func(notification.Notification) {})
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_SingleUserEvictsOtherUsers(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := broker.NewClient()
	m := NewManager(client, WithSingleUser())
	ctx := context.Background()

	var first, second inbox
	_, err := m.Subscribe(ctx, 1, first.add)
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, 2, second.add)
	require.NoError(t, err)

	assert.Equal(t, 1, m.ChannelCount())
	assert.Equal(t, 0, m.SubscriberCount(1))
	assert.Equal(t, 1, m.SubscriberCount(2))
	require.Len(t, client.Channels(), 1)
	assert.Equal(t, ChannelName(2), client.Channels()[0].Name())

	publishTo(t, broker, 1, 10)
	publishTo(t, broker, 2, 11)
	assert.Empty(t, first.ids())
	assert.Equal(t, []int64{11}, second.ids())
}

func TestManager_MultiUserKeepsChannelsApart(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	m := NewManager(broker.NewClient())
	ctx := context.Background()

	var first, second inbox
	_, err := m.Subscribe(ctx, 1, first.add)
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, 2, second.add)
	require.NoError(t, err)
	assert.Equal(t, 2, m.ChannelCount())

	publishTo(t, broker, 1, 10)
	publishTo(t, broker, 2, 11)
	assert.Equal(t, []int64{10}, first.ids())
	assert.Equal(t, []int64{11}, second.ids())
}

func TestManager_RemovesStaleChannelWithSameName(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := broker.NewClient()

	var stale inbox
	client.Channel(ChannelName(7)).
		On(realtime.EventInsert, realtime.Binding{Table: "notifications", Filter: "user_id=eq.7"}, func(ev realtime.Event) {
			stale.add(notification.Notification{ID: -1})
		}).
		Subscribe(nil)
	require.Len(t, client.Channels(), 1)

	m := NewManager(client)
	var fresh inbox
	_, err := m.Subscribe(context.Background(), 7, fresh.add)
	require.NoError(t, err)

	assert.Len(t, client.Channels(), 1)
	publishTo(t, broker, 7, 5)
	assert.Empty(t, stale.ids())
	assert.Equal(t, []int64{5}, fresh.ids())
}

func TestManager_FailedJoinReleasesCaller(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := broker.NewClient()
	m := NewManager(client)
	ctx := context.Background()

	broker.RejectSubscribes(realtime.StatusChannelError)
	_, err := m.Subscribe(ctx, 7, func(notification.Notification) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Equal(t, 0, m.SubscriberCount(7))
	assert.Equal(t, 0, m.ChannelCount())
	assert.Empty(t, client.Channels())

	broker.RejectSubscribes("")
	var box inbox
	_, err = m.Subscribe(ctx, 7, box.add)
	require.NoError(t, err)
	publishTo(t, broker, 7, 1)
	assert.Equal(t, []int64{1}, box.ids())
	assert.Equal(t, int64(2), m.CreatedCount())
}

func TestManager_ChannelFailureResetsAndNextSubscribeReopens(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	m := NewManager(broker.NewClient())
	ctx := context.Background()

	var early inbox
	_, err := m.Subscribe(ctx, 7, early.add)
	require.NoError(t, err)

	assert.Equal(t, 1, broker.Fail(ChannelName(7), realtime.StatusClosed, errors.New("socket dropped")))
	assert.Equal(t, 0, m.ChannelCount())
	assert.Equal(t, 1, m.SubscriberCount(7))

	publishTo(t, broker, 7, 1)
	assert.Empty(t, early.ids())

	var late inbox
	_, err = m.Subscribe(ctx, 7, late.add)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ChannelCount())
	assert.Equal(t, int64(2), m.CreatedCount())

	publishTo(t, broker, 7, 2)
	assert.Equal(t, []int64{2}, early.ids())
	assert.Equal(t, []int64{2}, late.ids())
}

func TestManager_ConcurrentSubscribeCreatesOneChannel(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := broker.NewClient()
	m := NewManager(client)
	ctx := context.Background()

	const callers = 32
	releases := make([]func(), callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, err := m.Subscribe(ctx, 7, func(notification.Notification) {})
			assert.NoError(t, err)
			releases[i] = release
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), m.CreatedCount())
	assert.Equal(t, callers, m.SubscriberCount(7))
	assert.Len(t, client.Channels(), 1)

	for _, release := range releases {
		if release != nil {
			release()
		}
	}
	assert.Equal(t, 0, m.ChannelCount())
	assert.Empty(t, client.Channels())
}

func TestManager_PanickingCallbackDoesNotStopFanOut(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	m := NewManager(broker.NewClient())
	ctx := context.Background()

	_, err := m.Subscribe(ctx, 7, func(notification.Notification) { panic("boom") })
	require.NoError(t, err)
	var box inbox
	_, err = m.Subscribe(ctx, 7, box.add)
	require.NoError(t, err)

	publishTo(t, broker, 7, 1)
	assert.Equal(t, []int64{1}, box.ids())
}

func TestManager_CloseTearsDownEverything(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := broker.NewClient()
	m := NewManager(client)
	ctx := context.Background()

	release, err := m.Subscribe(ctx, 1, func(notification.Notification) {})
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, 2, func(notification.Notification) {})
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 0, m.ChannelCount())
	assert.Equal(t, int64(2), m.TornDownCount())
	assert.Empty(t, client.Channels())

	release()
	assert.Equal(t, int64(2), m.TornDownCount())
}

type silentChannel struct {
	name string
}

func (c *silentChannel) Name() string { return c.name }
func (c *silentChannel) On(realtime.EventKind, realtime.Binding, realtime.Handler) realtime.Channel {
	return c
}
func (c *silentChannel) Subscribe(realtime.StatusHandler) realtime.Channel { return c }
func (c *silentChannel) Unsubscribe() error                                { return nil }

type silentClient struct {
	mu       sync.Mutex
	channels []realtime.Channel
	removed  int
}

func (c *silentClient) Channel(name string) realtime.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := &silentChannel{name: name}
	c.channels = append(c.channels, ch)
	return ch
}

func (c *silentClient) Channels() []realtime.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.Channel(nil), c.channels...)
}

func (c *silentClient) RemoveChannel(ch realtime.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.channels {
		if existing == ch {
			c.channels = append(c.channels[:i], c.channels[i+1:]...)
			c.removed++
			return nil
		}
	}
	return realtime.ErrUnknownChannel
}

func TestManager_SubscribeTimesOut(t *testing.T) {
	client := &silentClient{}
	m := NewManager(client, WithSubscribeTimeout(20*time.Millisecond))

	_, err := m.Subscribe(context.Background(), 7, func(notification.Notification) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Contains(t, err.Error(), string(realtime.StatusTimedOut))
	assert.Equal(t, 0, m.SubscriberCount(7))
	assert.Empty(t, client.Channels())
	assert.Equal(t, 1, client.removed)
}

func TestManager_SubscribeHonorsContext(t *testing.T) {
	client := &silentClient{}
	m := NewManager(client, WithSubscribeTimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Subscribe(ctx, 7, func(notification.Notification) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, m.SubscriberCount(7))
}

// gatedClient holds the join of the first channel it creates until gate is
// closed. Later channels join immediately.
type gatedClient struct {
	*realtime.MemoryClient
	gate chan struct{}

	mu    sync.Mutex
	gated bool
}

type gatedChannel struct {
	realtime.Channel
	gate chan struct{}
}

func (c *gatedChannel) Subscribe(cb realtime.StatusHandler) realtime.Channel {
	go func() {
		<-c.gate
		c.Channel.Subscribe(cb)
	}()
	return c
}

func (c *gatedClient) Channel(name string) realtime.Channel {
	ch := c.MemoryClient.Channel(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gated {
		return ch
	}
	c.gated = true
	return &gatedChannel{Channel: ch, gate: c.gate}
}

func (c *gatedClient) RemoveChannel(ch realtime.Channel) error {
	if g, ok := ch.(*gatedChannel); ok {
		ch = g.Channel
	}
	return c.MemoryClient.RemoveChannel(ch)
}

func TestManager_SubscribeAfterAbandonedJoinOpensFreshChannel(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	client := &gatedClient{MemoryClient: broker.NewClient(), gate: make(chan struct{})}
	t.Cleanup(func() { close(client.gate) })
	m := NewManager(client, WithSubscribeTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := m.Subscribe(ctx, 7, func(notification.Notification) {})
		errc <- err
	}()
	require.Eventually(t, func() bool { return m.CreatedCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, m.SubscriberCount(7))
	assert.False(t, m.Live(7))

	var box inbox
	start := time.Now()
	release, err := m.Subscribe(context.Background(), 7, box.add)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(2), m.CreatedCount())
	assert.Equal(t, 1, m.ChannelCount())
	assert.True(t, m.Live(7))

	publishTo(t, broker, 7, 1)
	assert.Equal(t, []int64{1}, box.ids())

	release()
	assert.False(t, m.Live(7))
}

func TestManager_LiveTracksChannelFailure(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	m := NewManager(broker.NewClient())

	assert.False(t, m.Live(7))
	_, err := m.Subscribe(context.Background(), 7, func(notification.Notification) {})
	require.NoError(t, err)
	assert.True(t, m.Live(7))

	broker.Fail(ChannelName(7), realtime.StatusChannelError, errors.New("socket dropped"))
	assert.False(t, m.Live(7))
	assert.Equal(t, 1, m.SubscriberCount(7))
}
