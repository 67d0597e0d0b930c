package bus

import "time"

// Event is a domain event published on the bus.
//
// Kinds used by the gateway, by namespace:
//
//	wa.*       transport events (wa.qr, wa.connected, wa.disconnected, wa.message)
//	session.*  supervisor events (session.status_changed, session.qr)
//	message.*  dispatch results (message.received)
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// New builds an event stamped with the current time.
func New(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
