// Package supervisor owns the session connection lifecycle. It is the only
// writer of the status machine: transport events arrive over the bus,
// reconnect decisions come from the recon policy, and every connect attempt
// funnels through Initiate.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/recon"
	"github.com/wagw/wagw/internal/status"
	"go.uber.org/zap"
)

// QR polling bounds for GetQRCode. The transport usually issues a code well
// inside a second; the bound only matters when pairing stalls.
const (
	qrPollAttempts = 20
	qrPollInterval = 500 * time.Millisecond
)

var (
	// ErrAlreadyConnected is returned by GetQRCode when the session is
	// connected and no pairing is needed.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrQRTimeout is returned when no QR code arrived within the polling
	// window.
	ErrQRTimeout = errors.New("timed out waiting for QR code")
)

// Transport is the slice of the WhatsApp adapter the supervisor drives.
type Transport interface {
	IsLoggedIn() bool
	IsConnected() bool
	Connect() error
	Disconnect()
	StartPairing(ctx context.Context) error
	ClearCredentials(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Supervisor drives the session state machine from transport events.
type Supervisor struct {
	machine   *status.Machine
	transport Transport
	bus       *bus.Bus
	logger    *zap.Logger

	mu        sync.Mutex
	pendingQR string

	// schedule defaults to time.AfterFunc; tests inject a capture.
	schedule func(d time.Duration, f func()) *time.Timer
}

// New creates a supervisor. Call Run to start processing transport events.
func New(machine *status.Machine, transport Transport, b *bus.Bus, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		machine:   machine,
		transport: transport,
		bus:       b,
		logger:    logger,
		schedule:  time.AfterFunc,
	}
}

// Run processes transport lifecycle events until ctx is cancelled. It must
// run in its own goroutine; all state transitions happen on this loop.
//
// The subscriptions name the lifecycle kinds individually rather than the
// whole wa. namespace: the chat stream (wa.message) belongs to dispatch,
// and a message burst must never be able to evict a control event from
// these buffers.
func (s *Supervisor) Run(ctx context.Context) {
	qr, unsubQR := s.bus.Subscribe("wa.qr", 8)
	defer unsubQR()
	pairing, unsubPairing := s.bus.Subscribe("wa.pairing_failed", 8)
	defer unsubPairing()
	connected, unsubConnected := s.bus.Subscribe("wa.connected", 16)
	defer unsubConnected()
	disconnected, unsubDisconnected := s.bus.Subscribe("wa.disconnected", 16)
	defer unsubDisconnected()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-qr:
			s.handle(ctx, evt)
		case evt := <-pairing:
			s.handle(ctx, evt)
		case evt := <-connected:
			s.handle(ctx, evt)
		case evt := <-disconnected:
			s.handle(ctx, evt)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case "wa.qr":
		code, _ := evt.Payload.(string)
		s.setPendingQR(code)

	case "wa.pairing_failed":
		reason, _ := evt.Payload.(string)
		s.logger.Warn("pairing failed", zap.String("reason", reason))
		s.setPendingQR("")
		if err := s.machine.Transition(status.Disconnected); err != nil {
			s.logger.Debug("pairing failure in non-connecting state", zap.Error(err))
		}

	case "wa.connected":
		s.setPendingQR("")
		if err := s.machine.Transition(status.Connected); err != nil {
			s.logger.Warn("unexpected connected event", zap.Error(err))
		}

	case "wa.disconnected":
		closeEvt, ok := evt.Payload.(recon.DisconnectEvent)
		if !ok {
			closeEvt = recon.DisconnectEvent{}
		}
		s.handleClose(ctx, closeEvt)
	}
}

// handleClose records the disconnect and applies the reconnection policy.
// The state moves to Disconnected before anything else so that readers
// never observe a stale Connected during cleanup.
func (s *Supervisor) handleClose(ctx context.Context, evt recon.DisconnectEvent) {
	if err := s.machine.Transition(status.Disconnected); err != nil {
		// Duplicate close for a session already marked down; the first
		// event already scheduled whatever recovery applies.
		s.logger.Debug("duplicate disconnect event", zap.Int("code", evt.Code))
		return
	}

	decision := recon.Classify(evt)
	s.logger.Warn("session disconnected",
		zap.Int("code", evt.Code),
		zap.String("message", evt.Message),
		zap.String("class", string(decision.Class)),
		zap.Bool("reconnect", decision.Reconnect),
		zap.Duration("delay", decision.Delay),
	)

	if decision.ClearCredentials {
		if err := s.transport.ClearCredentials(ctx); err != nil {
			s.logger.Error("clear credentials", zap.Error(err))
		}
	}

	if decision.Reconnect {
		s.scheduleReconnect(decision.Delay)
	}
}

// Initiate starts a connection attempt. Valid only while Disconnected;
// concurrent callers race on the state transition and all but one fail.
// Without credentials it starts the QR pairing flow instead of a plain
// connect.
func (s *Supervisor) Initiate(ctx context.Context) error {
	if err := s.machine.Transition(status.Connecting); err != nil {
		return err
	}

	var err error
	if s.transport.IsLoggedIn() {
		err = s.transport.Connect()
	} else {
		s.logger.Info("no credentials stored, starting pairing")
		err = s.transport.StartPairing(ctx)
	}
	if err != nil {
		// The transport can report "already connected" when a socket came
		// up between our state check and the dial. That socket is ours to
		// adopt, not an error to roll back from.
		if s.transport.IsConnected() {
			s.logger.Info("transport already connected, adopting live socket")
			if terr := s.machine.Transition(status.Connected); terr != nil {
				s.logger.Warn("adopt live socket failed", zap.Error(terr))
			}
			return nil
		}
		s.logger.Error("connection attempt failed", zap.Error(err))
		if terr := s.machine.Transition(status.Disconnected); terr != nil {
			s.logger.Warn("rollback to disconnected failed", zap.Error(terr))
		}
		return err
	}
	return nil
}

// Status returns the current session state.
func (s *Supervisor) Status() status.State {
	return s.machine.Current()
}

// PendingQR returns the most recent unexpired QR code, or empty.
func (s *Supervisor) PendingQR() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingQR
}

func (s *Supervisor) setPendingQR(code string) {
	s.mu.Lock()
	s.pendingQR = code
	s.mu.Unlock()
	if code != "" {
		s.bus.Publish(bus.New("session.qr", code))
	}
}

// GetQRCode returns a QR code for pairing, initiating a connection attempt
// if the session is idle. A connected session has no code to offer and
// returns ErrAlreadyConnected. The wait is bounded; a session that neither
// connects nor produces a code within the window returns ErrQRTimeout.
func (s *Supervisor) GetQRCode(ctx context.Context) (string, error) {
	if code := s.PendingQR(); code != "" {
		return code, nil
	}

	switch s.machine.Current() {
	case status.Connected:
		return "", ErrAlreadyConnected
	case status.Disconnected:
		if err := s.Initiate(ctx); err != nil {
			// Lost the race to another initiator; fall through and poll.
			s.logger.Debug("initiate during QR fetch", zap.Error(err))
		}
	}

	for i := 0; i < qrPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(qrPollInterval):
		}
		if code := s.PendingQR(); code != "" {
			return code, nil
		}
		if s.machine.Current() == status.Connected {
			return "", ErrAlreadyConnected
		}
	}
	return "", ErrQRTimeout
}

// ForceReconnect tears down a session the caller has judged dead and
// schedules a fresh attempt. Used by the keep-alive probe and the health
// sweeper; a session not currently Connected only gets the schedule.
func (s *Supervisor) ForceReconnect(reason string, delay time.Duration) {
	s.logger.Warn("forcing reconnect", zap.String("reason", reason), zap.Duration("delay", delay))
	if s.machine.Current() == status.Connected {
		s.transport.Disconnect()
		if err := s.machine.Transition(status.Disconnected); err != nil {
			s.logger.Warn("force reconnect transition failed", zap.Error(err))
		}
	}
	s.scheduleReconnect(delay)
}

// Logout invalidates the credentials server-side and marks the session
// down. The user must pair again before the next connect.
func (s *Supervisor) Logout(ctx context.Context) error {
	s.setPendingQR("")
	if err := s.transport.Logout(ctx); err != nil {
		return err
	}
	if err := s.machine.Transition(status.Disconnected); err != nil {
		s.logger.Debug("logout from non-connected state", zap.Error(err))
	}
	return nil
}

// scheduleReconnect arms a deferred Initiate. The guard re-checks the state
// when the timer fires: an attempt that already started (or a session that
// reconnected on its own) wins and the timer becomes a no-op.
func (s *Supervisor) scheduleReconnect(delay time.Duration) {
	s.schedule(delay, func() {
		if s.machine.Current() != status.Disconnected {
			return
		}
		if err := s.Initiate(context.Background()); err != nil {
			s.logger.Debug("scheduled reconnect lost race", zap.Error(err))
		}
	})
}
