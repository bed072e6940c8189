// Package eventbus is the in-process publish/subscribe mechanism (component
// F) that delivers config-changed and template-changed notifications from
// the Config Store and Mapping Catalog to subscribed Sessions and external
// collaborators.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Topic identifies the kind of change being published.
type Topic string

const (
	TopicConfigChanged   Topic = "config_changed"
	TopicTemplateChanged Topic = "template_changed"
)

// Event is the payload delivered to subscribers. Data carries the new
// snapshot (an opaque any so eventbus has no dependency on configstore or
// mapping); subscribers type-assert to the shape they expect for Topic.
type Event struct {
	Topic Topic
	// Path is the file that triggered the reload, when applicable (mapping
	// hot-reload callbacks per spec §4.3 "passing the path that triggered
	// the reload").
	Path string
	Data any
}

// Callback receives published events. Bus guarantees a Callback is invoked
// without the Bus's internal lock held (spec §4.1, §4.3: "Callbacks are
// invoked without holding the catalog's internal lock"). Publish does not
// serialize callers, so concurrent Publish calls may run the same Callback
// concurrently.
type Callback func(Event)

// Bus is a minimal synchronous pub/sub bus. Unlike a bounded-channel
// broadcast worker, publishing here is synchronous and ordered: a publisher
// observing Publish returning knows every subscriber's callback has already
// run. The Config Store and Mapping Catalog both rely on this to guarantee
// "notifications are delivered after the new snapshot has been installed"
// (spec §5) without a data race between swap and notify.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]subscription
	logger      *slog.Logger
}

type subscription struct {
	topic Topic
	cb    Callback
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]subscription),
		logger:      logger.With("component", "eventbus"),
	}
}

// Subscribe registers cb for topic and returns an opaque id for Unsubscribe.
func (b *Bus) Subscribe(topic Topic, cb Callback) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subscribers[id] = subscription{topic: topic, cb: cb}
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered callback. Unsubscribing an
// unknown id is a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// Publish invokes every subscriber registered for ev.Topic. Each callback
// runs with its panic recovered and logged so one misbehaving subscriber
// cannot affect others (spec §4.3: "Exceptions thrown by a callback are
// caught and logged; they do not affect other callbacks").
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	targets := make([]Callback, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if s.topic == ev.Topic {
			targets = append(targets, s.cb)
		}
	}
	b.mu.RUnlock()

	for _, cb := range targets {
		b.invoke(cb, ev)
	}
}

func (b *Bus) invoke(cb Callback, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("eventbus subscriber panicked", "topic", ev.Topic, "recover", r)
		}
	}()
	cb(ev)
}

// SubscriberCount returns the number of currently registered subscribers,
// for tests and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
