package store

import "sync"

// Topic names for the subscription hub. Lab-scoped machine
// subscriptions share the collection-level machines topic and filter
// when they re-read their snapshot.
const (
	topicMachines = "machines"
	topicSettings = "settings"
)

func topicHistory(machineID string) string {
	return "history/" + machineID
}

// subscriber guards one registered callback. Its own mutex makes
// cancellation deterministic: once cancel returns, any in-flight
// delivery has finished and no further one can start.
type subscriber struct {
	mu     sync.Mutex
	notify func()
	closed bool
}

// hub is the in-process fan-out point shared by both backends. A
// notify callback carries no payload; each subscription closure
// re-reads its own snapshot from the store, which keeps delivery in
// commit order within one stream.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]*subscriber)}
}

// subscribe registers notify under a topic and replays the current
// snapshot synchronously before returning.
func (h *hub) subscribe(topic string, notify func()) CancelFunc {
	sub := &subscriber{notify: notify}

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]*subscriber)
	}
	h.subs[topic][id] = sub
	h.mu.Unlock()

	notify()

	return func() {
		h.mu.Lock()
		delete(h.subs[topic], id)
		h.mu.Unlock()

		// Wait out any delivery that is already running.
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
	}
}

// publish invokes every live callback registered under the topic.
func (h *hub) publish(topic string) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[topic]))
	for _, sub := range h.subs[topic] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		if !sub.closed {
			sub.notify()
		}
		sub.mu.Unlock()
	}
}
