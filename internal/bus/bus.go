// Package bus provides the publish/subscribe boundary the lifecycle engine
// depends on. The engine never talks to a transport directly; it publishes
// snapshots here and reconciles whatever arrives. The in-process
// implementation guarantees per-topic delivery order to each subscriber and
// nothing more: no history replay, no cross-topic ordering, no acks.
package bus

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives every event published on a subscribed topic after the
// subscription was made, in publish order.
type Handler func(event interface{})

// Notifier is the narrow pub/sub interface injected into the engine. It is
// a dependency, never a global, so tests can substitute their own.
type Notifier interface {
	// Publish delivers the event to current subscribers of the topic.
	// Fire-and-forget: no acknowledgment, no error.
	Publish(topic string, event interface{})
	// Subscribe registers a handler for a topic and returns a function
	// that removes the subscription.
	Subscribe(topic string, handler Handler) (unsubscribe func())
}

const subscriberBuffer = 256

type subscription struct {
	ch   chan interface{}
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// InProcess is the single-process Notifier used when all modules share one
// binary. Each subscription drains its own buffered channel on its own
// goroutine, which preserves publish order per topic per subscriber while
// keeping Publish non-blocking.
type InProcess struct {
	mu     sync.Mutex
	subs   map[string]map[int]*subscription
	nextID int
	closed bool
	logger zerolog.Logger
}

// NewInProcess creates an in-process notifier.
func NewInProcess(logger zerolog.Logger) *InProcess {
	return &InProcess{
		subs:   make(map[string]map[int]*subscription),
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Publish delivers the event to every current subscriber of the topic.
// A subscriber that has fallen subscriberBuffer events behind loses this
// event; that is logged, not surfaced.
func (b *InProcess) Publish(topic string, event interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn().Str("topic", topic).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribe registers a handler for a topic. The handler runs on a dedicated
// goroutine; events on the same topic arrive in publish order. Calling the
// returned function stops delivery and releases the goroutine.
func (b *InProcess) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	sub := &subscription{ch: make(chan interface{}, subscriberBuffer)}
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]*subscription)
	}
	b.subs[topic][id] = sub

	go func() {
		for event := range sub.ch {
			handler(event)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.subs[topic][id]; ok && cur == sub {
			delete(b.subs[topic], id)
			sub.close()
		}
	}
}

// Close removes every subscription. Events published after Close are
// discarded.
func (b *InProcess) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, sub := range subs {
			delete(subs, id)
			sub.close()
		}
		delete(b.subs, topic)
	}
}
