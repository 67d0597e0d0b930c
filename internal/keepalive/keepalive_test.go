package keepalive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wagw/wagw/internal/bus"
	"go.uber.org/zap"
)

type fakeProber struct {
	errs []error
	call int
}

func (f *fakeProber) Probe(context.Context) error {
	if f.call >= len(f.errs) {
		return nil
	}
	err := f.errs[f.call]
	f.call++
	return err
}

type fakeReconnector struct {
	calls   int
	reasons []string
	delays  []time.Duration
}

func (f *fakeReconnector) ForceReconnect(reason string, delay time.Duration) {
	f.calls++
	f.reasons = append(f.reasons, reason)
	f.delays = append(f.delays, delay)
}

func newTestKeepAlive(prober Prober, recon Reconnector) *KeepAlive {
	return New(prober, recon, bus.NewBus(), zap.NewNop())
}

func TestTickSuccessKeepsLoopAlive(t *testing.T) {
	recon := &fakeReconnector{}
	k := newTestKeepAlive(&fakeProber{}, recon)

	for i := 0; i < 5; i++ {
		if stop := k.tick(context.Background()); stop {
			t.Fatal("successful probe must not stop the loop")
		}
	}
	if recon.calls != 0 {
		t.Errorf("reconnect calls = %d, want 0", recon.calls)
	}
}

func TestThresholdFailuresEscalateOnce(t *testing.T) {
	probeErr := errors.New("presence send failed")
	recon := &fakeReconnector{}
	k := newTestKeepAlive(&fakeProber{errs: []error{probeErr, probeErr, probeErr}}, recon)

	if k.tick(context.Background()) {
		t.Fatal("first failure must not escalate")
	}
	if k.tick(context.Background()) {
		t.Fatal("second failure must not escalate")
	}
	if !k.tick(context.Background()) {
		t.Fatal("third failure must escalate and stop the loop")
	}

	if recon.calls != 1 {
		t.Fatalf("reconnect calls = %d, want 1", recon.calls)
	}
	if recon.delays[0] != ReconnectDelay {
		t.Errorf("delay = %v, want %v", recon.delays[0], ReconnectDelay)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	probeErr := errors.New("presence send failed")
	recon := &fakeReconnector{}
	// Two failures, a recovery, then two more failures: never reaches the
	// threshold of three consecutive.
	k := newTestKeepAlive(&fakeProber{errs: []error{probeErr, probeErr, nil, probeErr, probeErr}}, recon)

	for i := 0; i < 5; i++ {
		if k.tick(context.Background()) {
			t.Fatalf("tick %d escalated without three consecutive failures", i+1)
		}
	}
	if recon.calls != 0 {
		t.Errorf("reconnect calls = %d, want 0", recon.calls)
	}
}

func TestStartProbingResetsCounter(t *testing.T) {
	probeErr := errors.New("presence send failed")
	recon := &fakeReconnector{}
	k := newTestKeepAlive(&fakeProber{errs: []error{probeErr, probeErr}}, recon)
	k.interval = time.Hour // loop goroutine stays idle during the test

	k.tick(context.Background())
	k.tick(context.Background())

	// A fresh connection starts a clean loop; the old failures must not
	// carry over.
	k.startProbing(context.Background())
	k.mu.Lock()
	failures := k.failures
	k.mu.Unlock()
	if failures != 0 {
		t.Errorf("failures after restart = %d, want 0", failures)
	}
	k.stopProbing()
}
