// Package notify broadcasts completion signals to dependent surfaces
// (schedule, progress). Events carry no payload beyond the trigger itself.
package notify

import "sync"

// Event identifies what changed.
type Event string

const (
	EventScheduleUpdated Event = "schedule-updated"
	EventPlanCompleted   Event = "plan-completed"
)

// Notifier fans events out to subscribers. Delivery is best-effort: a
// subscriber that is not draining its channel misses events rather than
// blocking the publisher.
type Notifier struct {
	mu   sync.Mutex
	subs []chan Event
}

// New creates an empty notifier.
func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers a new subscriber channel.
func (n *Notifier) Subscribe() <-chan Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan Event, 8)
	n.subs = append(n.subs, ch)
	return ch
}

// Publish delivers ev to every subscriber without blocking.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
