package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"skiff/internal/runtime"
)

var _ runtime.ContainerRuntime = (*ContainerRuntime)(nil)

type containerState struct {
	Config   runtime.ContainerCreateConfig
	Running  bool
	ExitCode int64
	Logs     string
	waiters  []chan int64
}

// ContainerRuntime is an in-memory implementation of
// runtime.ContainerRuntime. Tests drive container lifecycles with
// ExitContainer and observe behavior through the CallRecorder.
type ContainerRuntime struct {
	CallRecorder
	mu         sync.Mutex
	ready      bool
	containers map[string]*containerState
	networks   map[string]map[string]string
	volumes    map[string]map[string]string
	images     map[string]bool

	WaitReadyErr       func(ctx context.Context) error
	ContainerCreateErr func(ctx context.Context, cfg runtime.ContainerCreateConfig) error
	ContainerStartErr  func(ctx context.Context, name string) error
	ContainerStopErr   func(ctx context.Context, name string) error
	ContainerRemoveErr func(ctx context.Context, name string, force bool) error
	ContainerInspectErr func(ctx context.Context, name string) error
	ContainerLogsErr   func(ctx context.Context, name string, lines int) error
	ImagePullErr       func(ctx context.Context, image string) error
	NetworkEnsureErr   func(ctx context.Context, name string) error
	NetworkRemoveErr   func(ctx context.Context, name string) error
	VolumeEnsureErr    func(ctx context.Context, name string) error
	VolumeRemoveErr    func(ctx context.Context, name string, force bool) error
}

// NewContainerRuntime creates a ContainerRuntime that is ready by default.
func NewContainerRuntime() *ContainerRuntime {
	return &ContainerRuntime{
		ready:      true,
		containers: make(map[string]*containerState),
		networks:   make(map[string]map[string]string),
		volumes:    make(map[string]map[string]string),
		images:     make(map[string]bool),
	}
}

// SetReady flips daemon readiness.
func (r *ContainerRuntime) SetReady(ready bool) {
	r.mu.Lock()
	r.ready = ready
	r.mu.Unlock()
}

// ExitContainer marks a running container as exited with the given code
// and wakes every ContainerWait blocked on it.
func (r *ContainerRuntime) ExitContainer(name string, code int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return
	}
	cs.Running = false
	cs.ExitCode = code
	for _, ch := range cs.waiters {
		ch <- code
	}
	cs.waiters = nil
}

// SetLogs sets the log content returned for a container.
func (r *ContainerRuntime) SetLogs(name, logs string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		cs.Logs = logs
	}
}

// Running reports whether the named container exists and is running.
func (r *ContainerRuntime) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	return ok && cs.Running
}

// Networks returns the names of ensured networks, sorted.
func (r *ContainerRuntime) Networks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.networks))
	for name := range r.networks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Volumes returns the names of ensured volumes, sorted.
func (r *ContainerRuntime) Volumes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.volumes))
	for name := range r.volumes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *ContainerRuntime) WaitReady(ctx context.Context) error {
	r.record("WaitReady")
	if r.WaitReadyErr != nil {
		if err := r.WaitReadyErr(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return fmt.Errorf("container runtime not ready")
	}
	return nil
}

func (r *ContainerRuntime) ContainerCreate(ctx context.Context, cfg runtime.ContainerCreateConfig) error {
	r.record("ContainerCreate", cfg)
	if r.ContainerCreateErr != nil {
		if err := r.ContainerCreateErr(ctx, cfg); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.containers[cfg.Name]; exists {
		return fmt.Errorf("container %q already exists", cfg.Name)
	}
	r.containers[cfg.Name] = &containerState{Config: cfg}
	return nil
}

func (r *ContainerRuntime) ContainerStart(ctx context.Context, name string) error {
	r.record("ContainerStart", name)
	if r.ContainerStartErr != nil {
		if err := r.ContainerStartErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return fmt.Errorf("container %q not found", name)
	}
	cs.Running = true
	return nil
}

func (r *ContainerRuntime) ContainerStop(ctx context.Context, name string, grace time.Duration) error {
	r.record("ContainerStop", name, grace)
	if r.ContainerStopErr != nil {
		if err := r.ContainerStopErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return nil
	}
	if cs.Running {
		cs.Running = false
		cs.ExitCode = 0
		for _, ch := range cs.waiters {
			ch <- cs.ExitCode
		}
		cs.waiters = nil
	}
	return nil
}

func (r *ContainerRuntime) ContainerRemove(ctx context.Context, name string, force bool) error {
	r.record("ContainerRemove", name, force)
	if r.ContainerRemoveErr != nil {
		if err := r.ContainerRemoveErr(ctx, name, force); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return nil
	}
	if cs.Running && !force {
		return fmt.Errorf("container %q is running", name)
	}
	for _, ch := range cs.waiters {
		ch <- cs.ExitCode
	}
	delete(r.containers, name)
	return nil
}

func (r *ContainerRuntime) ContainerInspect(ctx context.Context, name string) (runtime.ContainerInfo, error) {
	r.record("ContainerInspect", name)
	if r.ContainerInspectErr != nil {
		if err := r.ContainerInspectErr(ctx, name); err != nil {
			return runtime.ContainerInfo{}, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return runtime.ContainerInfo{Exists: false}, nil
	}
	return runtime.ContainerInfo{Exists: true, Running: cs.Running, ExitCode: int(cs.ExitCode)}, nil
}

func (r *ContainerRuntime) ContainerWait(ctx context.Context, name string) (int64, error) {
	r.record("ContainerWait", name)
	r.mu.Lock()
	cs, ok := r.containers[name]
	if !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("container %q not found", name)
	}
	if !cs.Running {
		code := cs.ExitCode
		r.mu.Unlock()
		return code, nil
	}
	ch := make(chan int64, 1)
	cs.waiters = append(cs.waiters, ch)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case code := <-ch:
		return code, nil
	}
}

func (r *ContainerRuntime) ContainerLogs(ctx context.Context, name string, lines int) (string, error) {
	r.record("ContainerLogs", name, lines)
	if r.ContainerLogsErr != nil {
		if err := r.ContainerLogsErr(ctx, name, lines); err != nil {
			return "", err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return "", fmt.Errorf("container %q not found", name)
	}
	return cs.Logs, nil
}

func (r *ContainerRuntime) ContainerList(ctx context.Context, labels map[string]string) ([]runtime.ContainerSummary, error) {
	r.record("ContainerList", labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.containers))
	for name := range r.containers {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []runtime.ContainerSummary
	for _, name := range names {
		cs := r.containers[name]
		if !labelsMatch(cs.Config.Labels, labels) {
			continue
		}
		state := "exited"
		if cs.Running {
			state = "running"
		}
		out = append(out, runtime.ContainerSummary{
			Name:   name,
			Image:  cs.Config.Image,
			State:  state,
			Status: state,
			Labels: cs.Config.Labels,
		})
	}
	return out, nil
}

func (r *ContainerRuntime) ImagePull(ctx context.Context, image string) error {
	r.record("ImagePull", image)
	if r.ImagePullErr != nil {
		if err := r.ImagePullErr(ctx, image); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.images[image] = true
	r.mu.Unlock()
	return nil
}

func (r *ContainerRuntime) NetworkEnsure(ctx context.Context, name string, labels map[string]string) error {
	r.record("NetworkEnsure", name)
	if r.NetworkEnsureErr != nil {
		if err := r.NetworkEnsureErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.networks[name]; !exists {
		r.networks[name] = labels
	}
	return nil
}

func (r *ContainerRuntime) NetworkRemove(ctx context.Context, name string) error {
	r.record("NetworkRemove", name)
	if r.NetworkRemoveErr != nil {
		if err := r.NetworkRemoveErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	delete(r.networks, name)
	r.mu.Unlock()
	return nil
}

func (r *ContainerRuntime) VolumeEnsure(ctx context.Context, name string, labels map[string]string) error {
	r.record("VolumeEnsure", name)
	if r.VolumeEnsureErr != nil {
		if err := r.VolumeEnsureErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.volumes[name]; !exists {
		r.volumes[name] = labels
	}
	return nil
}

func (r *ContainerRuntime) VolumeRemove(ctx context.Context, name string, force bool) error {
	r.record("VolumeRemove", name, force)
	if r.VolumeRemoveErr != nil {
		if err := r.VolumeRemoveErr(ctx, name, force); err != nil {
			return err
		}
	}
	r.mu.Lock()
	delete(r.volumes, name)
	r.mu.Unlock()
	return nil
}

func (r *ContainerRuntime) Close() error {
	r.record("Close")
	return nil
}

func labelsMatch(have, want map[string]string) bool {
	for key, value := range want {
		if have[key] != value {
			return false
		}
	}
	return true
}
