package engine

import (
	"sync"
	"time"
)

// NotificationKind labels the change a notification describes.
type NotificationKind string

const (
	NotifyEventRecorded NotificationKind = "event_recorded"
	NotifyRunReset      NotificationKind = "run_reset"
	NotifyRunCompleted  NotificationKind = "run_completed"
	NotifyStatusChanged NotificationKind = "status_changed"
)

// Notification is a change signal for one run. It carries no payload; the
// state of record lives in the store and subscribers re-read what they need.
type Notification struct {
	RunID      string
	Kind       NotificationKind
	Generation int64
	At         time.Time
}

// Notifier fans notifications out to per-run subscribers.
//
// Delivery is best-effort: sends never block, and a subscriber whose buffer
// is full misses the signal. Subscribers treat notifications as a hint to
// refresh, so a missed signal is corrected by the next one.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Notification
	next int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]chan Notification)}
}

// Subscribe registers interest in a run's notifications.
// The returned cancel function must be called to release the subscription.
func (n *Notifier) Subscribe(runID string) (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Notification, 16)
	if n.subs[runID] == nil {
		n.subs[runID] = make(map[int]chan Notification)
	}
	id := n.next
	n.next++
	n.subs[runID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subs[runID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(n.subs, runID)
			}
		}
	}

	return ch, cancel
}

// Publish delivers a notification to every subscriber of its run.
// Never blocks; full subscriber buffers drop the signal.
func (n *Notifier) Publish(note Notification) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[note.RunID] {
		select {
		case ch <- note:
		default:
		}
	}
}
