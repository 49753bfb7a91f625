package services

import (
	"fmt"
	"sync"
	"time"
)

// NotifyService pushes "something changed" signals to organizer
// dashboards. Bursts of check-ins for the same organizer/event within
// the debounce window collapse into a single publish.
type NotifyService struct {
	pub    Publisher
	window time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewNotifyService(pub Publisher, window time.Duration) *NotifyService {
	return &NotifyService{
		pub:     pub,
		window:  window,
		pending: make(map[string]*time.Timer),
	}
}

// Notify schedules a checkin_update publish for the organizer's
// dashboard channel. Calls arriving while a publish is pending are
// absorbed into it.
func (n *NotifyService) Notify(organizerID, eventID string) {
	if n.pub == nil {
		return
	}

	key := fmt.Sprintf("%s:%s", organizerID, eventID)

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.pending[key]; ok {
		return
	}

	n.pending[key] = time.AfterFunc(n.window, func() {
		n.mu.Lock()
		delete(n.pending, key)
		n.mu.Unlock()

		n.pub.Publish(fmt.Sprintf("organizer-%s", organizerID), map[string]any{
			"type":     "checkin_update",
			"event_id": eventID,
		})
	})
}

// Stop cancels all pending publishes.
func (n *NotifyService) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for key, timer := range n.pending {
		timer.Stop()
		delete(n.pending, key)
	}
}
