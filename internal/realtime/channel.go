package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

type listener struct {
	kind    EventKind
	table   string
	filter  Filter
	topic   string
	handler Handler
}

// bindings is the listener table shared by the redis and memory channels.
type bindings struct {
	mu        sync.RWMutex
	listeners []listener
	err       error
}

func (b *bindings) add(kind EventKind, bind Binding, h Handler) {
	f, err := ParseFilter(bind.Filter)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("bind %s on %s: %w", kind, bind.Table, err)
		}
		return
	}
	b.listeners = append(b.listeners, listener{
		kind:    kind,
		table:   bind.Table,
		filter:  f,
		topic:   Topic(bind.Table, f),
		handler: h,
	})
}

func (b *bindings) bindError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

func (b *bindings) topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]bool, len(b.listeners))
	out := make([]string, 0, len(b.listeners))
	for _, l := range b.listeners {
		if seen[l.topic] {
			continue
		}
		seen[l.topic] = true
		out = append(out, l.topic)
	}
	return out
}

// dispatch calls every listener bound to topic whose kind and filter match.
func (b *bindings) dispatch(channel, topic string, ev Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.listeners))
	for _, l := range b.listeners {
		if l.topic != topic || l.table != ev.Table {
			continue
		}
		if l.kind != EventAll && l.kind != ev.Kind {
			continue
		}
		if !l.filter.Matches(ev.Row) {
			continue
		}
		matched = append(matched, l.handler)
	}
	b.mu.RUnlock()

	for _, h := range matched {
		invoke(channel, h, ev)
	}
}

func invoke(channel string, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("realtime_handler_panic channel=%s kind=%s table=%s panic=%v", channel, ev.Kind, ev.Table, r)
		}
	}()
	h(ev)
}

func notify(cb StatusHandler, status Status, err error) {
	if cb != nil {
		cb(status, err)
	}
}

func encodeEvent(table string, kind EventKind, row any) (Event, []byte, error) {
	raw, ok := row.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(row)
		if err != nil {
			return Event{}, nil, fmt.Errorf("encode row: %w", err)
		}
		raw = b
	}

	ev := Event{Kind: kind, Table: table, Row: raw, CommitTime: now()}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Event{}, nil, fmt.Errorf("encode event: %w", err)
	}
	return ev, payload, nil
}
