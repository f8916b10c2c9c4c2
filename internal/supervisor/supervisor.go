// Package supervisor owns the lifecycle of a topology's containers: tiered
// startup, exit monitoring, restart policies, and ordered shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"skiff/internal/check"
	"skiff/internal/deploy"
	"skiff/internal/runtime"
	"skiff/internal/topology"
)

const (
	// defaultRestartDelay is the base backoff; each failed attempt doubles it.
	defaultRestartDelay = time.Second
	// maxRestartDelay caps the exponential backoff.
	maxRestartDelay = time.Minute
	// restartResetAfter: a container running at least this long resets the
	// attempt counter, matching docker's backoff reset behavior.
	restartResetAfter = 10 * time.Second
	// defaultGrace is how long a container gets to exit after SIGTERM.
	defaultGrace = 10 * time.Second
)

// ServiceStatus is a point-in-time view of one supervised service.
type ServiceStatus struct {
	Service   string
	Container string
	Phase     Phase
	ExitCode  int64
	Attempts  int
}

// Supervisor runs a topology against a container runtime. Configure the
// exported fields, then call Start; Stop shuts everything down in reverse
// dependency order.
type Supervisor struct {
	Runtime  runtime.ContainerRuntime
	Topology *topology.Topology
	Session  string
	Clock    runtime.Clock
	// Grace is the stop grace period per container.
	Grace time.Duration
	// RestartDelay is the base restart backoff.
	RestartDelay time.Duration
	// OnEvent receives supervision events. Must not block.
	OnEvent func(Event)

	mu             sync.Mutex
	handles        map[string]*handle
	dependents     map[string][]string
	tiers          []deploy.Tier
	monitorCtx     context.Context
	cancelMonitors context.CancelFunc
	stopping       bool

	monitors sync.WaitGroup
	log      *slog.Logger
}

type handle struct {
	spec      topology.ServiceSpec
	container string

	mu        sync.Mutex
	phase     Phase
	attempts  int
	exitCode  int64
	lastStart time.Time
}

// Start brings every service up tier by tier. Services whose dependency
// failed are withheld rather than started; when that happens Start returns
// a ServiceUnavailableError after all unaffected services are up.
func (s *Supervisor) Start(ctx context.Context) error {
	check.Assert(s.Runtime != nil, "Supervisor.Start: Runtime must not be nil")
	check.Assert(s.Topology != nil, "Supervisor.Start: Topology must not be nil")
	s.log = slog.With("component", "supervisor", "project", s.Topology.Name)

	tiers, err := deploy.BuildGraph(s.Topology)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tiers = tiers
	s.dependents = deploy.Dependents(s.Topology)
	s.handles = make(map[string]*handle, len(s.Topology.Services))
	for _, svc := range s.Topology.Services {
		s.handles[svc.Name] = &handle{
			spec:      svc,
			container: deploy.ContainerName(s.Topology.Name, svc.Name),
			phase:     PhaseUnstarted,
		}
	}
	s.monitorCtx, s.cancelMonitors = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.Runtime.WaitReady(ctx); err != nil {
		return err
	}

	var unavailable *ServiceUnavailableError
	for _, tier := range tiers {
		g := new(errgroup.Group)
		for _, svc := range tier {
			h := s.handles[svc.Name]
			if s.phaseOf(h) == PhaseBlocked {
				continue
			}
			g.Go(func() error { return s.launch(ctx, h) })
		}
		if err := g.Wait(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var su *ServiceUnavailableError
			if errors.As(err, &su) {
				if unavailable == nil {
					unavailable = su
				}
				continue
			}
			return err
		}
	}
	if unavailable != nil {
		return unavailable
	}
	return nil
}

func (s *Supervisor) launch(ctx context.Context, h *handle) error {
	s.setPhase(h, PhaseStarting, EventStarting, "")

	if err := s.create(ctx, h); err != nil {
		return s.launchFailed(h, err)
	}
	if err := s.Runtime.ContainerStart(ctx, h.container); err != nil {
		return s.launchFailed(h, err)
	}

	h.mu.Lock()
	h.lastStart = s.clock().Now()
	h.mu.Unlock()
	s.setPhase(h, PhaseRunning, EventRunning, "")

	s.monitors.Add(1)
	go s.monitor(h)
	return nil
}

func (s *Supervisor) launchFailed(h *handle, cause error) error {
	s.setPhase(h, PhaseFailed, EventFailed, cause.Error())
	blocked := s.blockDependents(h.spec.Name)
	s.log.Warn("service failed to start", "service", h.spec.Name, "err", cause)
	return &ServiceUnavailableError{Service: h.spec.Name, Blocked: blocked, Cause: cause}
}

// create converges to a fresh container: an existing one, running or not,
// is removed first so the new spec always applies.
func (s *Supervisor) create(ctx context.Context, h *handle) error {
	info, err := s.Runtime.ContainerInspect(ctx, h.container)
	if err != nil {
		return err
	}
	if info.Exists {
		if err := s.Runtime.ContainerRemove(ctx, h.container, true); err != nil {
			return err
		}
	}
	if h.spec.Image != "" {
		if err := s.Runtime.ImagePull(ctx, h.spec.Image); err != nil {
			return err
		}
	}
	return s.Runtime.ContainerCreate(ctx, deploy.CreateConfig(s.Topology.Name, s.Session, h.spec))
}

func (s *Supervisor) monitor(h *handle) {
	defer s.monitors.Done()
	ctx := s.monitorCtx

	for {
		code, err := s.Runtime.ContainerWait(ctx, h.container)
		if err != nil {
			return
		}
		if s.isStopping() {
			return
		}

		h.mu.Lock()
		h.exitCode = code
		ranLong := s.clock().Now().Sub(h.lastStart) >= restartResetAfter
		if ranLong {
			h.attempts = 0
		}
		attempts := h.attempts
		h.mu.Unlock()

		if code == 0 {
			s.setPhase(h, PhaseExited, EventExited, "exit code 0")
		} else {
			s.setPhase(h, PhaseFailed, EventFailed, fmt.Sprintf("exit code %d", code))
		}

		if !shouldRestart(h.spec.Restart, code, attempts) {
			if code != 0 {
				blocked := s.blockDependents(h.spec.Name)
				if len(blocked) > 0 {
					s.log.Warn("service unavailable", "service", h.spec.Name, "blocked", blocked)
				}
			}
			return
		}

		h.mu.Lock()
		h.attempts++
		attempts = h.attempts
		h.mu.Unlock()

		s.setPhase(h, PhaseRestarting, EventRestarting, fmt.Sprintf("attempt %d", attempts))
		timer := time.NewTimer(backoff(s.restartDelay(), attempts))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if s.isStopping() {
			return
		}

		s.setPhase(h, PhaseStarting, EventStarting, "")
		if err := s.Runtime.ContainerStart(ctx, h.container); err != nil {
			s.setPhase(h, PhaseFailed, EventFailed, err.Error())
			s.blockDependents(h.spec.Name)
			s.log.Warn("restart failed", "service", h.spec.Name, "err", err)
			return
		}
		h.mu.Lock()
		h.lastStart = s.clock().Now()
		h.mu.Unlock()
		s.setPhase(h, PhaseRunning, EventRunning, "")
	}
}

// shouldRestart applies the service restart policy. attempts counts
// restarts already made since the last long-enough run.
func shouldRestart(policy topology.RestartPolicy, code int64, attempts int) bool {
	switch policy.Mode {
	case topology.RestartAlways, topology.RestartUnlessStopped:
		return true
	case topology.RestartOnFailure:
		if code == 0 {
			return false
		}
		return policy.MaxRetries == 0 || attempts < policy.MaxRetries
	default:
		return false
	}
}

func backoff(base time.Duration, attempts int) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRestartDelay {
			return maxRestartDelay
		}
	}
	if delay > maxRestartDelay {
		return maxRestartDelay
	}
	return delay
}

// blockDependents withholds every not-yet-started transitive dependent of
// the named service and returns their names.
func (s *Supervisor) blockDependents(name string) []string {
	s.mu.Lock()
	dependents := s.dependents[name]
	s.mu.Unlock()

	var blocked []string
	for _, dep := range dependents {
		h, ok := s.handleFor(dep)
		if !ok {
			continue
		}
		h.mu.Lock()
		withhold := h.phase == PhaseUnstarted
		h.mu.Unlock()
		if !withhold {
			continue
		}
		s.setPhase(h, PhaseBlocked, EventBlocked, fmt.Sprintf("dependency %q unavailable", name))
		blocked = append(blocked, dep)
	}
	return blocked
}

// Wait blocks until every monitor goroutine has settled, which happens when
// all services reach a terminal phase or Stop drains them.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.monitors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels monitoring and stops every container in reverse tier
// order. Services already in a terminal phase are left alone, so calling
// Stop again is a no-op. It is safe to call with a fresh context after
// Start's context was canceled.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	cancel := s.cancelMonitors
	tiers := s.tiers
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.monitors.Wait()

	grace := s.grace()
	var firstErr error
	for i := len(tiers) - 1; i >= 0; i-- {
		g := new(errgroup.Group)
		for _, svc := range tiers[i] {
			h, ok := s.handleFor(svc.Name)
			if !ok {
				continue
			}
			g.Go(func() error {
				if s.phaseOf(h).Terminal() {
					return nil
				}
				if err := s.Runtime.ContainerStop(ctx, h.container, grace); err != nil {
					return err
				}
				s.setPhase(h, PhaseStopped, EventStopped, "")
				return nil
			})
		}
		if err := g.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Statuses returns the current state of every service, sorted by name.
func (s *Supervisor) Statuses() []ServiceStatus {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	out := make([]ServiceStatus, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		out = append(out, ServiceStatus{
			Service:   h.spec.Name,
			Container: h.container,
			Phase:     h.phase,
			ExitCode:  h.exitCode,
			Attempts:  h.attempts,
		})
		h.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

func (s *Supervisor) setPhase(h *handle, to Phase, eventType EventType, message string) {
	h.mu.Lock()
	if h.phase == to {
		h.mu.Unlock()
		return
	}
	h.phase = h.phase.Transition(to)
	reached := h.phase == to
	h.mu.Unlock()
	if !reached {
		return
	}
	s.emit(Event{Type: eventType, Service: h.spec.Name, Phase: to, Message: message})
}

func (s *Supervisor) emit(ev Event) {
	if s.OnEvent != nil {
		s.OnEvent(ev)
	}
	if s.log != nil {
		s.log.Debug("supervision event", "event", string(ev.Type), "service", ev.Service, "message", ev.Message)
	}
}

func (s *Supervisor) handleFor(name string) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[name]
	return h, ok
}

func (s *Supervisor) phaseOf(h *handle) Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

func (s *Supervisor) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Supervisor) clock() runtime.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return runtime.RealClock{}
}

func (s *Supervisor) grace() time.Duration {
	if s.Grace > 0 {
		return s.Grace
	}
	return defaultGrace
}

func (s *Supervisor) restartDelay() time.Duration {
	if s.RestartDelay > 0 {
		return s.RestartDelay
	}
	return defaultRestartDelay
}
