// Package notify is the typed publish/subscribe bus connecting state, relay, orchestrator and
// view. Delivery is non-blocking: a subscriber whose buffer is full misses the message.
package notify

import (
	"sync"
	"time"

	"earn_usdc/internal/domain/entity"
)

// Subscription is a registered receiver. Read from C until Close.
type Subscription struct {
	C      <-chan entity.Notification
	ch     chan entity.Notification
	topics map[entity.Topic]struct{}
	bus    *Bus
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) wants(topic entity.Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Bus fans out notifications to all subscribers via buffered channels.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	now    func() time.Time
}

// NewBus creates a bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
}

// Publish stamps and delivers a notification, dropping it for slow readers.
func (b *Bus) Publish(topic entity.Topic, payload any) {
	n := entity.Notification{Topic: topic, Payload: payload, At: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a subscription receiving the given topics, or every topic when none are
// given.
func (b *Bus) Subscribe(topics ...entity.Topic) *Subscription {
	ch := make(chan entity.Notification, b.buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b, topics: make(map[entity.Topic]struct{}, len(topics))}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
