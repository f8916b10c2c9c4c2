package supervisor

import (
	"encoding/json"
	"testing"
)

func TestPhaseTransitions(t *testing.T) {
	legal := []struct{ from, to Phase }{
		{PhaseUnstarted, PhaseStarting},
		{PhaseUnstarted, PhaseBlocked},
		{PhaseStarting, PhaseRunning},
		{PhaseStarting, PhaseFailed},
		{PhaseRunning, PhaseExited},
		{PhaseRunning, PhaseFailed},
		{PhaseRunning, PhaseStopped},
		{PhaseExited, PhaseRestarting},
		{PhaseFailed, PhaseRestarting},
		{PhaseRestarting, PhaseStarting},
		{PhaseFailed, PhaseStopped},
		{PhaseBlocked, PhaseStopped},
	}
	for _, tc := range legal {
		if got := tc.from.Transition(tc.to); got != tc.to {
			t.Fatalf("Transition(%s -> %s) = %s, want %s", tc.from, tc.to, got, tc.to)
		}
	}
}

func TestPhaseStringRoundTrip(t *testing.T) {
	phases := []Phase{
		PhaseUnstarted, PhaseStarting, PhaseRunning, PhaseExited,
		PhaseFailed, PhaseRestarting, PhaseBlocked, PhaseStopped,
	}
	for _, p := range phases {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal %s: %v", p, err)
		}
		var back Phase
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != p {
			t.Fatalf("round trip %s = %s", p, back)
		}
	}
}

func TestPhaseInvalid(t *testing.T) {
	var p Phase
	if p.IsValid() {
		t.Fatalf("zero phase should be invalid")
	}
	if _, err := json.Marshal(Phase(99)); err == nil {
		t.Fatalf("marshal of invalid phase should fail")
	}
}
