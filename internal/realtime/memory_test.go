package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusLog struct {
	statuses []Status
	errs     []error
}

func (l *statusLog) record(s Status, err error) {
	l.statuses = append(l.statuses, s)
	l.errs = append(l.errs, err)
}

func TestMemoryChannel_DeliversMatchingInserts(t *testing.T) {
	broker := NewMemoryBroker()
	client := broker.NewClient()

	var got []Event
	var log statusLog
	client.Channel("notifications:user:1").
		On(EventInsert, Binding{Table: "notifications", Filter: "user_id=eq.1"}, func(ev Event) {
			got = append(got, ev)
		}).
		Subscribe(log.record)

	require.Equal(t, []Status{StatusSubscribed}, log.statuses)

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, "notifications", EventInsert, map[string]any{"id": 1, "user_id": 1}))
	require.NoError(t, broker.Publish(ctx, "notifications", EventInsert, map[string]any{"id": 2, "user_id": 2}))
	require.NoError(t, broker.Publish(ctx, "notifications", EventUpdate, map[string]any{"id": 1, "user_id": 1}))
	require.NoError(t, broker.Publish(ctx, "bookings", EventInsert, map[string]any{"id": 3, "user_id": 1}))

	require.Len(t, got, 1)
	assert.Equal(t, EventInsert, got[0].Kind)
	assert.JSONEq(t, `{"id":1,"user_id":1}`, string(got[0].Row))
}

func TestMemoryChannel_UnsubscribeStopsDeliveryAndForgets(t *testing.T) {
	broker := NewMemoryBroker()
	client := broker.NewClient()

	count := 0
	ch := client.Channel("c").
		On(EventAll, Binding{Table: "notifications", Filter: "user_id=eq.5"}, func(Event) { count++ }).
		Subscribe(nil)
	require.Len(t, client.Channels(), 1)

	require.NoError(t, client.RemoveChannel(ch))
	require.NoError(t, ch.Unsubscribe())
	assert.Empty(t, client.Channels())

	require.NoError(t, broker.Publish(context.Background(), "notifications", EventInsert, map[string]any{"user_id": 5}))
	assert.Zero(t, count)
}

func TestMemoryChannel_RejectedSubscribe(t *testing.T) {
	broker := NewMemoryBroker()
	broker.RejectSubscribes(StatusTimedOut)
	client := broker.NewClient()

	var log statusLog
	client.Channel("c").On(EventInsert, Binding{Table: "notifications"}, func(Event) {}).Subscribe(log.record)

	assert.Equal(t, []Status{StatusTimedOut}, log.statuses)
	assert.Empty(t, client.Channels())
}

func TestMemoryChannel_BadFilterIsChannelError(t *testing.T) {
	client := NewMemoryBroker().NewClient()

	var log statusLog
	client.Channel("c").On(EventInsert, Binding{Table: "notifications", Filter: "user_id=lt.3"}, func(Event) {}).Subscribe(log.record)

	require.Equal(t, []Status{StatusChannelError}, log.statuses)
	assert.ErrorIs(t, log.errs[0], ErrUnsupportedFilter)
}

func TestMemoryBroker_Fail(t *testing.T) {
	broker := NewMemoryBroker()
	client := broker.NewClient()

	var log statusLog
	client.Channel("c").On(EventInsert, Binding{Table: "notifications"}, func(Event) {}).Subscribe(log.record)

	boom := errors.New("socket dropped")
	assert.Equal(t, 1, broker.Fail("c", StatusChannelError, boom))
	assert.Equal(t, []Status{StatusSubscribed, StatusChannelError}, log.statuses)
	assert.Equal(t, boom, log.errs[1])
	assert.Empty(t, client.Channels())
	assert.Zero(t, broker.Fail("c", StatusChannelError, boom))
}

func TestMemoryClient_RemoveForeignChannel(t *testing.T) {
	broker := NewMemoryBroker()
	a, b := broker.NewClient(), broker.NewClient()

	ch := a.Channel("x")
	assert.ErrorIs(t, b.RemoveChannel(ch), ErrUnknownChannel)
}

func TestMemoryChannel_HandlerPanicIsContained(t *testing.T) {
	broker := NewMemoryBroker()
	client := broker.NewClient()

	second := 0
	client.Channel("c").
		On(EventInsert, Binding{Table: "t"}, func(Event) { panic("boom") }).
		On(EventInsert, Binding{Table: "t"}, func(Event) { second++ }).
		Subscribe(nil)

	require.NoError(t, broker.Publish(context.Background(), "t", EventInsert, map[string]any{"id": 1}))
	assert.Equal(t, 1, second)
}
