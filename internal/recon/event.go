// Package recon classifies transport disconnect events into reconnection
// decisions. The policy is a pure function over the event; it never touches
// the session state itself.
package recon

// Close codes reported by the network when a session ends. These follow the
// server's HTTP-flavored close-code convention.
const (
	CodeLoggedOut          = 401
	CodeTimedOut           = 408
	CodeConnectionLost     = 408
	CodeConnectionClosed   = 428
	CodeConnectionReplaced = 440
	CodeBadSession         = 500
	CodeRestartRequired    = 515
)

// DisconnectEvent describes why the transport closed. Produced by the wa
// event layer, consumed immediately by Classify. Code 0 means the network
// supplied no reason.
type DisconnectEvent struct {
	Code          int
	Message       string
	LoggedOut     bool
	DeviceRemoved bool
}
