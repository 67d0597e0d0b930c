package recon

import (
	"strings"
	"time"
)

// Class names the disconnect classification; used for logging only.
type Class string

const (
	Permanent         Class = "permanent"
	TransientCorrupt  Class = "transient-corrupt"
	TransientConflict Class = "transient-conflict"
	TransientNetwork  Class = "transient-network"
	TransientUnknown  Class = "transient-unknown"
)

// Reconnect delays per classification.
const (
	BadSessionDelay = 2 * time.Second
	NetworkDelay    = 3 * time.Second
	DefaultDelay    = 5 * time.Second
	ReplacedDelay   = 10 * time.Second
)

// Decision is the action the supervisor takes for a disconnect.
type Decision struct {
	Class            Class
	Reconnect        bool
	Delay            time.Duration
	ClearCredentials bool
}

// Classify maps a disconnect event to a decision.
//
// Permanent causes (logout, device removal) never auto-retry: retrying
// against a revoked credential would loop forever. A corrupt session
// clears credentials and retries fast. A replaced connection backs off
// longest so we do not fight whatever session replaced us. Network blips
// retry fast; everything else gets a middle-ground delay.
func Classify(evt DisconnectEvent) Decision {
	if evt.LoggedOut || evt.DeviceRemoved {
		return Decision{Class: Permanent, ClearCredentials: true}
	}

	switch evt.Code {
	case CodeBadSession:
		return Decision{Class: TransientCorrupt, Reconnect: true, Delay: BadSessionDelay, ClearCredentials: true}
	case CodeConnectionReplaced:
		return Decision{Class: TransientConflict, Reconnect: true, Delay: ReplacedDelay}
	case CodeConnectionClosed, CodeConnectionLost:
		return Decision{Class: TransientNetwork, Reconnect: true, Delay: NetworkDelay}
	}

	if strings.Contains(strings.ToLower(evt.Message), "timed out") {
		return Decision{Class: TransientNetwork, Reconnect: true, Delay: NetworkDelay}
	}

	return Decision{Class: TransientUnknown, Reconnect: true, Delay: DefaultDelay}
}
