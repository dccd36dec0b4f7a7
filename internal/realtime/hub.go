// Package realtime fans out record snapshots to live subscribers. Consumers
// hold a Subscription handle and must Close it on teardown; a closed
// subscription never receives another event, so a disposed view can't be
// written to by a stale callback.
package realtime

import (
	"sync"
)

// Event is one snapshot published to a topic.
type Event struct {
	Topic   string `json:"topic"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

const (
	KindApplication = "application"
	KindMessage     = "message"
	KindUnread      = "unread"
)

// ApplicationTopic names the per-applicant snapshot stream.
func ApplicationTopic(id string) string {
	return "applications/" + id
}

// Subscription is a cancellable stream of events. C is buffered; when a
// subscriber lags behind, the oldest pending event is dropped rather than
// blocking the publisher.
type Subscription struct {
	C     chan Event
	topic string
	hub   *Hub

	once sync.Once
}

// Close detaches the subscription and releases its channel. Safe to call
// more than once and concurrently with Publish.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.C)
	})
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: 16,
	}
}

func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		C:     make(chan Event, h.buffer),
		topic: topic,
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

func (h *Hub) Publish(topic, kind string, payload any) {
	event := Event{Topic: topic, Kind: kind, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[topic] {
		select {
		case sub.C <- event:
		default:
			// Slow subscriber: drop the oldest pending event to make room.
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- event:
			default:
			}
		}
	}
}

// Subscribers reports the live subscription count for a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
}
