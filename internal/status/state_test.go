package status

import (
	"testing"

	"github.com/wagw/wagw/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		walk []State
	}{
		{[]State{Connecting}},
		{[]State{Connecting, Connected}},
		{[]State{Connecting, Disconnected}},
		{[]State{Connecting, Connected, Disconnected}},
		{[]State{Connecting, Connected, Disconnected, Connecting}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, s := range tt.walk {
			if err := m.Transition(s); err != nil {
				t.Fatalf("walk %v: transition to %s: %v", tt.walk, s, err)
			}
		}
		if m.Current() != tt.walk[len(tt.walk)-1] {
			t.Errorf("walk %v: state = %s", tt.walk, m.Current())
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	// Disconnected cannot jump straight to Connected: the supervisor must
	// always pass through Connecting so the QR/bootstrap path is observable.
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(DISCONNECTED -> CONNECTED) should fail")
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, should not have changed", m.Current())
	}

	// Self-transitions are rejected too.
	_ = m.Transition(Connecting)
	if err := m.Transition(Connecting); err == nil {
		t.Error("Transition(CONNECTING -> CONNECTING) should fail")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.NewBus()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "session.status_changed" {
		t.Errorf("event kind = %q, want session.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Disconnected || change.To != Connecting {
		t.Errorf("change = %v -> %v, want DISCONNECTED -> CONNECTING", change.From, change.To)
	}
}

// TestFailedTransitionEmitsNothing guards against broadcasting a status
// the machine never actually entered.
func TestFailedTransitionEmitsNothing(t *testing.T) {
	b := bus.NewBus()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connected); err == nil {
		t.Fatal("transition should have failed")
	}

	select {
	case evt := <-ch:
		t.Errorf("got event %q for failed transition", evt.Kind)
	default:
	}
}

// TestReconnectCycle simulates the full lifecycle across a dropped
// connection: connect, lose it, reconnect.
func TestReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	steps := []State{Connecting, Connected, Disconnected, Connecting, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Connected {
		t.Errorf("final state = %s, want CONNECTED", m.Current())
	}
}
