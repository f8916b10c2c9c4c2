package supervisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"skiff/internal/check"
)

// Phase is the supervision state of a single service.
type Phase uint8

const (
	PhaseUnstarted Phase = iota + 1
	PhaseStarting
	PhaseRunning
	PhaseExited
	PhaseFailed
	PhaseRestarting
	PhaseBlocked
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseExited:
		return "exited"
	case PhaseFailed:
		return "failed"
	case PhaseRestarting:
		return "restarting"
	case PhaseBlocked:
		return "blocked"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseUnstarted, PhaseStarting, PhaseRunning, PhaseExited,
		PhaseFailed, PhaseRestarting, PhaseBlocked, PhaseStopped:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are expected without
// outside intervention.
func (p Phase) Terminal() bool {
	return p == PhaseStopped
}

// Transition moves to the target phase, asserting the edge is legal.
// In release builds an illegal transition is ignored and p is returned.
func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case PhaseUnstarted:
		ok = to == PhaseStarting || to == PhaseBlocked || to == PhaseStopped
	case PhaseStarting:
		ok = to == PhaseRunning || to == PhaseFailed || to == PhaseStopped
	case PhaseRunning:
		ok = to == PhaseExited || to == PhaseFailed || to == PhaseStopped
	case PhaseExited:
		ok = to == PhaseRestarting || to == PhaseStopped
	case PhaseFailed:
		ok = to == PhaseRestarting || to == PhaseStopped
	case PhaseRestarting:
		ok = to == PhaseStarting || to == PhaseStopped
	case PhaseBlocked:
		ok = to == PhaseStarting || to == PhaseStopped
	case PhaseStopped:
		ok = false
	}
	check.Assertf(ok, "phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

func (p Phase) MarshalJSON() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid phase: %d", p)
	}
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next, ok := parsePhase(raw)
	if !ok {
		return fmt.Errorf("invalid phase: %q", raw)
	}
	*p = next
	return nil
}

func parsePhase(raw string) (Phase, bool) {
	switch strings.TrimSpace(raw) {
	case "unstarted":
		return PhaseUnstarted, true
	case "starting":
		return PhaseStarting, true
	case "running":
		return PhaseRunning, true
	case "exited":
		return PhaseExited, true
	case "failed":
		return PhaseFailed, true
	case "restarting":
		return PhaseRestarting, true
	case "blocked":
		return PhaseBlocked, true
	case "stopped":
		return PhaseStopped, true
	default:
		return 0, false
	}
}
