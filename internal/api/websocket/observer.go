package websocket

import (
	"strings"

	"github.com/ramonehamilton/deckvault/internal/events"
)

// forwardedPrefixes are the event families admin clients see.
var forwardedPrefixes = []string{"catalog:", "backup:"}

// Observer forwards catalog and backup events to WebSocket clients.
type Observer struct {
	name string
	hub  *Hub
}

// NewObserver creates an observer that broadcasts through hub.
func NewObserver(hub *Hub) *Observer {
	return &Observer{name: "WebSocketObserver", hub: hub}
}

// OnEvent broadcasts the event.
func (o *Observer) OnEvent(event events.Event) error {
	if o.hub == nil {
		return nil
	}
	o.hub.BroadcastEvent(Event{Type: event.Type, Data: event.Data})
	return nil
}

// GetName returns the observer's name.
func (o *Observer) GetName() string {
	return o.name
}

// ShouldHandle accepts catalog and backup events.
func (o *Observer) ShouldHandle(eventType string) bool {
	for _, p := range forwardedPrefixes {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}

var _ events.Observer = (*Observer)(nil)
