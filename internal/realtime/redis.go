package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSubscribeTimeout = 10 * time.Second

// RedisClient opens channels as Redis Pub/Sub subscriptions. Each channel
// owns one PubSub connection for its lifetime.
type RedisClient struct {
	rdb              *redis.Client
	subscribeTimeout time.Duration

	mu       sync.Mutex
	channels []*redisChannel
}

func NewRedisClient(rdb *redis.Client, subscribeTimeout time.Duration) *RedisClient {
	if subscribeTimeout <= 0 {
		subscribeTimeout = defaultSubscribeTimeout
	}
	return &RedisClient{rdb: rdb, subscribeTimeout: subscribeTimeout}
}

func (c *RedisClient) Channel(name string) Channel {
	ch := &redisChannel{name: name, client: c}
	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()
	return ch
}

func (c *RedisClient) Channels() []Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *RedisClient) RemoveChannel(ch Channel) error {
	rc, ok := ch.(*redisChannel)
	if !ok || rc.client != c {
		return ErrUnknownChannel
	}
	return rc.Unsubscribe()
}

func (c *RedisClient) forget(ch *redisChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.channels {
		if existing == ch {
			c.channels = append(c.channels[:i], c.channels[i+1:]...)
			return
		}
	}
}

type redisChannel struct {
	name     string
	client   *RedisClient
	bindings bindings

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	closed bool
}

func (ch *redisChannel) Name() string { return ch.name }

func (ch *redisChannel) On(kind EventKind, b Binding, h Handler) Channel {
	ch.bindings.add(kind, b, h)
	return ch
}

func (ch *redisChannel) Subscribe(cb StatusHandler) Channel {
	if err := ch.bindings.bindError(); err != nil {
		ch.client.forget(ch)
		notify(cb, StatusChannelError, err)
		return ch
	}

	ch.mu.Lock()
	if ch.pubsub != nil || ch.closed {
		ch.mu.Unlock()
		return ch
	}
	ctx, cancel := context.WithCancel(context.Background())
	ps := ch.client.rdb.Subscribe(ctx, ch.bindings.topics()...)
	ch.pubsub = ps
	ch.cancel = cancel
	ch.mu.Unlock()

	go ch.run(ctx, ps, cb)
	return ch
}

func (ch *redisChannel) run(ctx context.Context, ps *redis.PubSub, cb StatusHandler) {
	recvCtx, cancel := context.WithTimeout(ctx, ch.client.subscribeTimeout)
	_, err := ps.Receive(recvCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ch.shutdown()
		if errors.Is(err, context.DeadlineExceeded) {
			notify(cb, StatusTimedOut, fmt.Errorf("subscribe %s: %w", ch.name, err))
			return
		}
		notify(cb, StatusChannelError, fmt.Errorf("subscribe %s: %w", ch.name, err))
		return
	}

	notify(cb, StatusSubscribed, nil)

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() == nil {
					ch.shutdown()
					notify(cb, StatusClosed, nil)
				}
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("realtime_decode_error channel=%s topic=%s error=%v", ch.name, msg.Channel, err)
				continue
			}
			ch.bindings.dispatch(ch.name, msg.Channel, ev)
		}
	}
}

func (ch *redisChannel) Unsubscribe() error {
	return ch.shutdown()
}

func (ch *redisChannel) shutdown() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ps, cancel := ch.pubsub, ch.cancel
	ch.mu.Unlock()

	ch.client.forget(ch)
	if cancel != nil {
		cancel()
	}
	if ps != nil {
		return ps.Close()
	}
	return nil
}

// RedisPublisher publishes row events to the table topic and to one topic per
// partition column found in the row.
type RedisPublisher struct {
	rdb        *redis.Client
	partitions []string
}

func NewRedisPublisher(rdb *redis.Client, partitionColumns ...string) *RedisPublisher {
	if len(partitionColumns) == 0 {
		partitionColumns = []string{"user_id"}
	}
	return &RedisPublisher{rdb: rdb, partitions: partitionColumns}
}

func (p *RedisPublisher) Publish(ctx context.Context, table string, kind EventKind, row any) error {
	ev, payload, err := encodeEvent(table, kind, row)
	if err != nil {
		return err
	}
	for _, topic := range TopicsForRow(table, ev.Row, p.partitions) {
		if err := p.rdb.Publish(ctx, topic, payload).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	}
	return nil
}

var (
	_ Client    = (*RedisClient)(nil)
	_ Publisher = (*RedisPublisher)(nil)
)
