// Package bus is the in-process publish/subscribe channel between the
// command interpreter and the page-level consumers of voice commands.
package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
)

// TopicVoiceCommand carries navigation-independent commands to the mounted page.
const TopicVoiceCommand = "voice-command"

// Handler receives published events.
type Handler func(event domain.CommandEvent)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously, in registration order, to every
// handler subscribed at publish time.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscription
	logger *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscription),
		logger: logging.Component(logger, "bus"),
	}
}

// Subscribe registers handler on topic and returns a function removing it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}
}

// Publish delivers event to the current subscribers of topic and returns
// how many handlers ran to completion. A panicking handler is logged and
// does not prevent delivery to the others.
func (b *Bus) Publish(topic string, event domain.CommandEvent) int {
	b.mu.RLock()
	subs := make([]subscription, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if err := b.deliver(sub, event); err != nil {
			b.logger.Warn("subscriber failed", "topic", topic, "kind", event.Kind, "error", err)
			continue
		}
		delivered++
	}

	b.logger.Debug("event published", "topic", topic, "kind", event.Kind, "delivered", delivered)
	return delivered
}

// Subscribers reports the number of handlers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) deliver(sub subscription, event domain.CommandEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %d panicked: %v", sub.id, r)
		}
	}()
	sub.handler(event)
	return nil
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.topics, topic)
		} else {
			b.topics[topic] = next
		}
		return
	}
}
