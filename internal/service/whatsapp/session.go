package whatsapp

import (
	"sync"
	"time"
)

// deliveryTracker remembers recently handled message ids. Meta redelivers a
// webhook until it is acknowledged, so the same message can arrive twice.
type deliveryTracker struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func newDeliveryTracker(ttl time.Duration) *deliveryTracker {
	return &deliveryTracker{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// firstDelivery records id and reports whether it was not seen within the ttl.
func (t *deliveryTracker) firstDelivery(id string) bool {
	if id == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, at := range t.seen {
		if now.Sub(at) > t.ttl {
			delete(t.seen, key)
		}
	}

	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = now
	return true
}

// forget drops id so a failed message can be retried.
func (t *deliveryTracker) forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, id)
}
