// Package events decouples ring topology changes from whatever consumes
// them, so internal/ring never depends on the monitoring transport.
package events

// EventType classifies a ring topology change.
type EventType string

const (
	NodeJoin      EventType = "node_join"
	NodeLeave     EventType = "node_leave"
	Stabilization EventType = "stabilization"
)

// Event describes one ring topology change.
type Event struct {
	Type      EventType `json:"type"`
	NodeID    string    `json:"node_id"`
	Timestamp int64     `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// Broadcaster fans ring events out to external consumers (e.g. the
// monitoring websocket hub) without the ring package knowing who's
// listening.
type Broadcaster interface {
	Publish(event Event)
}

// nopBroadcaster discards every event; used when no monitoring surface is
// attached to a node.
type nopBroadcaster struct{}

// NewNopBroadcaster returns a Broadcaster that discards all events.
func NewNopBroadcaster() Broadcaster { return nopBroadcaster{} }

func (nopBroadcaster) Publish(Event) {}
