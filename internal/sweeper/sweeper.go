// Package sweeper periodically reconciles the recorded session state with
// the actual socket. It is the safety net behind the event-driven paths: a
// missed disconnect event or a stalled reconnect gets corrected here.
package sweeper

import (
	"context"
	"time"

	"github.com/wagw/wagw/internal/status"
	"go.uber.org/zap"
)

const (
	// Interval between health sweeps.
	Interval = 120 * time.Second

	// ReconnectDelay applies when the sweep finds the socket dead under a
	// Connected state.
	ReconnectDelay = 3 * time.Second
)

// Lifecycle is the slice of the connection supervisor the sweeper drives.
type Lifecycle interface {
	Status() status.State
	Initiate(ctx context.Context) error
	ForceReconnect(reason string, delay time.Duration)
}

// Socket reports actual transport liveness, independent of recorded state.
type Socket interface {
	IsConnected() bool
}

// Sweeper runs the periodic reconciliation.
type Sweeper struct {
	lifecycle Lifecycle
	socket    Socket
	logger    *zap.Logger
	interval  time.Duration
}

// New creates a sweeper. Call Run to start it.
func New(lifecycle Lifecycle, socket Socket, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		lifecycle: lifecycle,
		socket:    socket,
		logger:    logger,
		interval:  Interval,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one reconciliation pass.
func (s *Sweeper) sweep(ctx context.Context) {
	switch s.lifecycle.Status() {
	case status.Connecting:
		// An attempt is in flight; interfering would only race it.

	case status.Disconnected:
		s.logger.Info("health sweep found idle session, initiating")
		if err := s.lifecycle.Initiate(ctx); err != nil {
			s.logger.Debug("sweep initiate lost race", zap.Error(err))
		}

	case status.Connected:
		if s.socket.IsConnected() {
			return
		}
		// Recorded state drifted from reality; correct it and retry.
		s.logger.Warn("health sweep found dead socket under connected state")
		s.lifecycle.ForceReconnect("health sweep", ReconnectDelay)
	}
}
