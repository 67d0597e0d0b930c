package wa

import (
	"context"
	"os"

	"github.com/mdp/qrterminal/v3"
	"github.com/wagw/wagw/internal/bus"
	"go.uber.org/zap"
)

// StartPairing begins the QR credential-bootstrap flow: it obtains the QR
// channel, connects, and publishes each code on the bus as "wa.qr" until the
// flow ends. Codes are also rendered to the daemon's terminal so a session
// can be paired without the web surface.
//
// Must only be called when no credentials exist; with credentials present
// the plain Connect path applies.
func (a *Adapter) StartPairing(ctx context.Context) error {
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return err
	}

	// Connect must be called after GetQRChannel.
	if err := a.Connect(); err != nil {
		return err
	}

	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				a.logger.Info("pairing QR code issued")
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
				a.bus.Publish(bus.New("wa.qr", item.Code))
			case "success":
				a.logger.Info("pairing accepted, waiting for connection")
				return
			case "timeout":
				a.logger.Warn("pairing QR timed out")
				a.bus.Publish(bus.New("wa.pairing_failed", "timed out"))
				return
			default:
				if item.Error != nil {
					a.logger.Error("pairing failed", zap.Error(item.Error))
					a.bus.Publish(bus.New("wa.pairing_failed", item.Error.Error()))
					return
				}
			}
		}
	}()

	return nil
}
