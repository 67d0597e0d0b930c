// Package keepalive probes a connected session at a fixed interval and
// escalates sustained probe failure into a forced reconnect. It watches
// status changes on the bus, so the supervisor never has to know it exists.
package keepalive

import (
	"context"
	"sync"
	"time"

	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/status"
	"go.uber.org/zap"
)

const (
	// Interval between liveness probes while Connected.
	Interval = 45 * time.Second

	// FailureThreshold is the number of consecutive probe failures that
	// marks the connection dead.
	FailureThreshold = 3

	// ReconnectDelay applies after an escalation.
	ReconnectDelay = 5 * time.Second

	probeTimeout = 10 * time.Second
)

// Prober is the liveness check, a lightweight presence send in practice.
type Prober interface {
	Probe(ctx context.Context) error
}

// Reconnector tears down a dead session and schedules a retry.
type Reconnector interface {
	ForceReconnect(reason string, delay time.Duration)
}

// KeepAlive runs the probe cycle. A probe loop starts whenever the session
// reaches Connected and stops when it leaves, or when escalation fires.
type KeepAlive struct {
	prober   Prober
	recon    Reconnector
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	failures int
	stop     context.CancelFunc
}

// New creates a keep-alive watcher. Call Run to start it.
func New(prober Prober, recon Reconnector, b *bus.Bus, logger *zap.Logger) *KeepAlive {
	return &KeepAlive{
		prober:   prober,
		recon:    recon,
		bus:      b,
		logger:   logger,
		interval: Interval,
	}
}

// Run reacts to session status changes until ctx is cancelled.
func (k *KeepAlive) Run(ctx context.Context) {
	events, unsubscribe := k.bus.Subscribe("session.status_changed", 16)
	defer unsubscribe()
	defer k.stopProbing()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok {
				continue
			}
			switch {
			case change.To == status.Connected:
				k.startProbing(ctx)
			case change.From == status.Connected:
				k.stopProbing()
			}
		}
	}
}

// startProbing begins a fresh probe loop with a zeroed failure counter.
func (k *KeepAlive) startProbing(parent context.Context) {
	k.mu.Lock()
	if k.stop != nil {
		k.stop()
	}
	loopCtx, cancel := context.WithCancel(parent)
	k.stop = cancel
	k.failures = 0
	k.mu.Unlock()

	go k.probeLoop(loopCtx)
}

func (k *KeepAlive) stopProbing() {
	k.mu.Lock()
	if k.stop != nil {
		k.stop()
		k.stop = nil
	}
	k.mu.Unlock()
}

func (k *KeepAlive) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if k.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one probe. Returns true when the loop must stop because
// the failure threshold was reached and escalation fired.
func (k *KeepAlive) tick(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := k.prober.Probe(probeCtx)
	cancel()

	k.mu.Lock()
	defer k.mu.Unlock()

	if err == nil {
		if k.failures > 0 {
			k.logger.Info("keep-alive recovered", zap.Int("after_failures", k.failures))
		}
		k.failures = 0
		return false
	}

	k.failures++
	k.logger.Warn("keep-alive probe failed",
		zap.Int("consecutive", k.failures),
		zap.Error(err),
	)
	if k.failures < FailureThreshold {
		return false
	}

	// Counts as dead. The next Connected event starts a new loop with a
	// clean counter, so escalation fires at most once per connection.
	k.recon.ForceReconnect("keep-alive probe failures", ReconnectDelay)
	return true
}
