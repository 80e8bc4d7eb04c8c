package realtime

import (
	"context"
	"sync"
	"time"
)

var now = time.Now

// MemoryBroker is an in-process transport with the same contract as the
// redis one. It is both the Publisher and the factory for Clients.
type MemoryBroker struct {
	mu         sync.Mutex
	topics     map[string][]*memoryChannel
	partitions []string
	reject     Status
}

func NewMemoryBroker(partitionColumns ...string) *MemoryBroker {
	if len(partitionColumns) == 0 {
		partitionColumns = []string{"user_id"}
	}
	return &MemoryBroker{
		topics:     make(map[string][]*memoryChannel),
		partitions: partitionColumns,
	}
}

// NewClient returns a fresh channel registry attached to the broker.
func (b *MemoryBroker) NewClient() *MemoryClient {
	return &MemoryClient{broker: b}
}

// RejectSubscribes makes every following Subscribe report status instead of
// SUBSCRIBED. An empty status restores normal behavior.
func (b *MemoryBroker) RejectSubscribes(status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reject = status
}

// Fail detaches every channel named name and reports status to it, the way a
// transport reports a dropped socket.
func (b *MemoryBroker) Fail(name string, status Status, err error) int {
	b.mu.Lock()
	var failed []*memoryChannel
	for topic, chans := range b.topics {
		kept := chans[:0]
		for _, ch := range chans {
			if ch.name == name {
				failed = appendUnique(failed, ch)
				continue
			}
			kept = append(kept, ch)
		}
		b.topics[topic] = kept
	}
	b.mu.Unlock()

	for _, ch := range failed {
		ch.fail(status, err)
	}
	return len(failed)
}

func (b *MemoryBroker) Publish(ctx context.Context, table string, kind EventKind, row any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev, _, err := encodeEvent(table, kind, row)
	if err != nil {
		return err
	}

	type target struct {
		topic string
		ch    *memoryChannel
	}
	b.mu.Lock()
	var targets []target
	for _, topic := range TopicsForRow(table, ev.Row, b.partitions) {
		for _, ch := range b.topics[topic] {
			targets = append(targets, target{topic: topic, ch: ch})
		}
	}
	b.mu.Unlock()

	for _, t := range targets {
		t.ch.bindings.dispatch(t.ch.name, t.topic, ev)
	}
	return nil
}

func (b *MemoryBroker) attach(ch *memoryChannel, topics []string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reject != "" {
		return b.reject
	}
	for _, topic := range topics {
		b.topics[topic] = append(b.topics[topic], ch)
	}
	return StatusSubscribed
}

func (b *MemoryBroker) detach(ch *memoryChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, chans := range b.topics {
		kept := chans[:0]
		for _, c := range chans {
			if c != ch {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(b.topics, topic)
			continue
		}
		b.topics[topic] = kept
	}
}

// MemoryClient is the per-connection channel registry of a MemoryBroker.
type MemoryClient struct {
	broker   *MemoryBroker
	mu       sync.Mutex
	channels []*memoryChannel
}

func (c *MemoryClient) Channel(name string) Channel {
	ch := &memoryChannel{name: name, client: c}
	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()
	return ch
}

func (c *MemoryClient) Channels() []Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *MemoryClient) RemoveChannel(ch Channel) error {
	mc, ok := ch.(*memoryChannel)
	if !ok || mc.client != c {
		return ErrUnknownChannel
	}
	return mc.Unsubscribe()
}

func (c *MemoryClient) forget(ch *memoryChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.channels {
		if existing == ch {
			c.channels = append(c.channels[:i], c.channels[i+1:]...)
			return
		}
	}
}

type memoryChannel struct {
	name     string
	client   *MemoryClient
	bindings bindings

	mu       sync.Mutex
	statusCb StatusHandler
	joined   bool
	closed   bool
}

func (ch *memoryChannel) Name() string { return ch.name }

func (ch *memoryChannel) On(kind EventKind, b Binding, h Handler) Channel {
	ch.bindings.add(kind, b, h)
	return ch
}

func (ch *memoryChannel) Subscribe(cb StatusHandler) Channel {
	ch.mu.Lock()
	if ch.joined || ch.closed {
		ch.mu.Unlock()
		return ch
	}
	ch.statusCb = cb
	ch.mu.Unlock()

	if err := ch.bindings.bindError(); err != nil {
		ch.client.forget(ch)
		notify(cb, StatusChannelError, err)
		return ch
	}

	status := ch.client.broker.attach(ch, ch.bindings.topics())
	if status != StatusSubscribed {
		ch.client.forget(ch)
		notify(cb, status, ErrChannelClosed)
		return ch
	}

	ch.mu.Lock()
	ch.joined = true
	ch.mu.Unlock()
	notify(cb, StatusSubscribed, nil)
	return ch
}

func (ch *memoryChannel) Unsubscribe() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.mu.Unlock()

	ch.client.broker.detach(ch)
	ch.client.forget(ch)
	return nil
}

func (ch *memoryChannel) fail(status Status, err error) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	cb := ch.statusCb
	ch.mu.Unlock()

	ch.client.forget(ch)
	notify(cb, status, err)
}

func appendUnique(list []*memoryChannel, ch *memoryChannel) []*memoryChannel {
	for _, existing := range list {
		if existing == ch {
			return list
		}
	}
	return append(list, ch)
}

var (
	_ Client    = (*MemoryClient)(nil)
	_ Publisher = (*MemoryBroker)(nil)
)
