package wa

import (
	"fmt"

	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/recon"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventHandler converts whatsmeow callbacks into bus events so the
// supervisor's single control loop stays the only writer of session state.
// It holds no state of its own.
type EventHandler struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:    b,
		logger: logger,
	}
}

// Handle is the whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.bus.Publish(bus.New("wa.message", ParseMessage(evt)))

	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.bus.Publish(bus.New("wa.connected", nil))

	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.publishClose(recon.DisconnectEvent{
			Code:    recon.CodeConnectionClosed,
			Message: "connection closed",
		})

	case *events.StreamReplaced:
		h.logger.Warn("WhatsApp stream replaced by another session")
		h.publishClose(recon.DisconnectEvent{
			Code:    recon.CodeConnectionReplaced,
			Message: "connection replaced",
		})

	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		h.publishClose(recon.DisconnectEvent{
			Code:          int(evt.Reason),
			Message:       evt.Reason.String(),
			LoggedOut:     true,
			DeviceRemoved: evt.Reason == events.ConnectFailureMainDeviceGone,
		})

	case *events.ConnectFailure:
		h.logger.Warn("WhatsApp connect failure",
			zap.Int("code", int(evt.Reason)), zap.String("message", evt.Message))
		h.publishClose(recon.DisconnectEvent{
			Code:    int(evt.Reason),
			Message: evt.Message,
		})

	case *events.ClientOutdated:
		h.logger.Error("WhatsApp client version rejected")
		h.publishClose(recon.DisconnectEvent{Message: "client outdated"})

	case *events.TemporaryBan:
		h.logger.Error("WhatsApp temporary ban",
			zap.String("reason", evt.Code.String()), zap.Duration("expire", evt.Expire))
		h.publishClose(recon.DisconnectEvent{
			Message: fmt.Sprintf("temporary ban: %s", evt.Code.String()),
		})
	}
}

func (h *EventHandler) publishClose(evt recon.DisconnectEvent) {
	h.bus.Publish(bus.New("wa.disconnected", evt))
}
