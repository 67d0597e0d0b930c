package store

// SelfSender is the sender sentinel for records of messages we sent.
const SelfSender = "self"

// Record is one inbox or outgoing entry, keyed by the transport-assigned
// message id. Append-only: re-delivery of an already-recorded id is a no-op.
type Record struct {
	ID        string
	Sender    string
	Content   string
	Timestamp int64
	Read      bool
	Outgoing  bool
}

// NewMessageFlag is the single mutable row overwritten on every inbound
// message. It exists purely as a cheap polling signal for consumers that
// cannot subscribe to push notifications.
type NewMessageFlag struct {
	HasNew        bool
	LastMessageAt int64
	LastMessageID string
}
