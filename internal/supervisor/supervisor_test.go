package supervisor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"skiff/internal/adapter/fake"
	"skiff/internal/topology"
)

func newSupervisor(rt *fake.ContainerRuntime, topo *topology.Topology) *Supervisor {
	return &Supervisor{
		Runtime:      rt,
		Topology:     topo,
		Session:      "sess-1",
		Clock:        fake.NewClock(time.Unix(1700000000, 0)),
		RestartDelay: time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func phaseOf(s *Supervisor, service string) Phase {
	for _, st := range s.Statuses() {
		if st.Service == service {
			return st.Phase
		}
	}
	return 0
}

func twoTierTopology() *topology.Topology {
	return &topology.Topology{
		Name: "app",
		Services: []topology.ServiceSpec{
			{Name: "backend", Image: "backend:latest", DependsOn: []string{"db"}},
			{Name: "db", Image: "mongo:6.0"},
		},
	}
}

func TestStartRespectsTierOrder(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	s := newSupervisor(rt, twoTierTopology())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	starts := rt.Calls("ContainerStart")
	if len(starts) != 2 {
		t.Fatalf("ContainerStart calls = %d, want 2", len(starts))
	}
	if starts[0].Args[0] != "skiff-app-db" || starts[1].Args[0] != "skiff-app-backend" {
		t.Fatalf("start order = [%v, %v], want db then backend", starts[0].Args[0], starts[1].Args[0])
	}
	if phaseOf(s, "db") != PhaseRunning || phaseOf(s, "backend") != PhaseRunning {
		t.Fatalf("phases = %v / %v, want running", phaseOf(s, "db"), phaseOf(s, "backend"))
	}
}

func TestStartFailureBlocksDependents(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	rt.ContainerStartErr = func(ctx context.Context, name string) error {
		if name == "skiff-app-db" {
			return fmt.Errorf("image broken")
		}
		return nil
	}

	topo := twoTierTopology()
	topo.Services = append(topo.Services, topology.ServiceSpec{Name: "standalone", Image: "nginx:1.25"})
	s := newSupervisor(rt, topo)

	err := s.Start(ctx)
	var unavailable *ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Start() error = %v, want ServiceUnavailableError", err)
	}
	if unavailable.Service != "db" {
		t.Fatalf("unavailable.Service = %q, want db", unavailable.Service)
	}
	if len(unavailable.Blocked) != 1 || unavailable.Blocked[0] != "backend" {
		t.Fatalf("unavailable.Blocked = %v, want [backend]", unavailable.Blocked)
	}

	if phaseOf(s, "db") != PhaseFailed {
		t.Fatalf("db phase = %v, want failed", phaseOf(s, "db"))
	}
	if phaseOf(s, "backend") != PhaseBlocked {
		t.Fatalf("backend phase = %v, want blocked", phaseOf(s, "backend"))
	}
	// Unrelated services still come up.
	if phaseOf(s, "standalone") != PhaseRunning {
		t.Fatalf("standalone phase = %v, want running", phaseOf(s, "standalone"))
	}
	s.Stop(ctx)
}

func TestOnFailureRestartsNonZeroExit(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	topo := &topology.Topology{
		Name: "app",
		Services: []topology.ServiceSpec{
			{Name: "worker", Image: "worker:1", Restart: topology.RestartPolicy{Mode: topology.RestartOnFailure}},
		},
	}
	s := newSupervisor(rt, topo)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	rt.ExitContainer("skiff-app-worker", 1)
	waitFor(t, "worker restart", func() bool {
		return len(rt.Calls("ContainerStart")) == 2 && rt.Running("skiff-app-worker")
	})
	if phaseOf(s, "worker") != PhaseRunning {
		t.Fatalf("worker phase = %v, want running after restart", phaseOf(s, "worker"))
	}
}

func TestOnFailureIgnoresCleanExit(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	topo := &topology.Topology{
		Name: "app",
		Services: []topology.ServiceSpec{
			{Name: "job", Image: "job:1", Restart: topology.RestartPolicy{Mode: topology.RestartOnFailure}},
		},
	}
	s := newSupervisor(rt, topo)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	rt.ExitContainer("skiff-app-job", 0)
	waitFor(t, "job exited phase", func() bool { return phaseOf(s, "job") == PhaseExited })

	if got := len(rt.Calls("ContainerStart")); got != 1 {
		t.Fatalf("ContainerStart calls = %d, want 1 (no restart on clean exit)", got)
	}
}

func TestAlwaysRestartsCleanExit(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	topo := &topology.Topology{
		Name: "app",
		Services: []topology.ServiceSpec{
			{Name: "web", Image: "web:1", Restart: topology.RestartPolicy{Mode: topology.RestartAlways}},
		},
	}
	s := newSupervisor(rt, topo)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	rt.ExitContainer("skiff-app-web", 0)
	waitFor(t, "web restart", func() bool {
		return len(rt.Calls("ContainerStart")) == 2 && rt.Running("skiff-app-web")
	})
}

func TestOnFailureRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	topo := &topology.Topology{
		Name: "app",
		Services: []topology.ServiceSpec{
			{Name: "flaky", Image: "flaky:1", Restart: topology.RestartPolicy{Mode: topology.RestartOnFailure, MaxRetries: 2}},
		},
	}
	s := newSupervisor(rt, topo)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	for i := 0; i < 3; i++ {
		starts := i + 1
		waitFor(t, "flaky running", func() bool {
			return len(rt.Calls("ContainerStart")) == starts && rt.Running("skiff-app-flaky")
		})
		rt.ExitContainer("skiff-app-flaky", 1)
	}

	waitFor(t, "flaky giving up", func() bool { return phaseOf(s, "flaky") == PhaseFailed })
	// Initial start plus two retries, never a third.
	time.Sleep(10 * time.Millisecond)
	if got := len(rt.Calls("ContainerStart")); got != 3 {
		t.Fatalf("ContainerStart calls = %d, want 3", got)
	}
}

func TestStopReverseOrderAndNoRestart(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	topo := twoTierTopology()
	topo.Services[1].Restart = topology.RestartPolicy{Mode: topology.RestartAlways}
	s := newSupervisor(rt, topo)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stops := rt.Calls("ContainerStop")
	if len(stops) != 2 {
		t.Fatalf("ContainerStop calls = %d, want 2", len(stops))
	}
	if stops[0].Args[0] != "skiff-app-backend" || stops[1].Args[0] != "skiff-app-db" {
		t.Fatalf("stop order = [%v, %v], want backend then db", stops[0].Args[0], stops[1].Args[0])
	}

	// A deliberate stop must not trigger the restart policy.
	time.Sleep(10 * time.Millisecond)
	if got := len(rt.Calls("ContainerStart")); got != 2 {
		t.Fatalf("ContainerStart calls = %d after stop, want 2", got)
	}
	if phaseOf(s, "db") != PhaseStopped || phaseOf(s, "backend") != PhaseStopped {
		t.Fatalf("phases after stop = %v / %v, want stopped", phaseOf(s, "db"), phaseOf(s, "backend"))
	}
}

func TestStopTwiceStopsContainersOnce(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	s := newSupervisor(rt, twoTierTopology())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if got := len(rt.Calls("ContainerStop")); got != 2 {
		t.Fatalf("ContainerStop calls = %d, want 2", got)
	}
}

func TestStartRecreatesExistingContainer(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	topo := &topology.Topology{
		Name:     "app",
		Services: []topology.ServiceSpec{{Name: "web", Image: "web:2"}},
	}

	first := newSupervisor(rt, topo)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := first.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	second := newSupervisor(rt, topo)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	defer second.Stop(ctx)

	if got := len(rt.Calls("ContainerRemove")); got != 1 {
		t.Fatalf("ContainerRemove calls = %d, want 1 (stale container replaced)", got)
	}
	if got := len(rt.Calls("ContainerCreate")); got != 2 {
		t.Fatalf("ContainerCreate calls = %d, want 2", got)
	}
}

func TestEventsEmitted(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	events := make(chan Event, 64)
	s := newSupervisor(rt, &topology.Topology{
		Name:     "app",
		Services: []topology.ServiceSpec{{Name: "web", Image: "web:1"}},
	})
	s.OnEvent = func(ev Event) { events <- ev }

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	var types []EventType
	for len(types) < 2 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("events seen so far: %v", types)
		}
	}
	if types[0] != EventStarting || types[1] != EventRunning {
		t.Fatalf("event order = %v, want [starting running]", types)
	}
}
