// Package runtime defines the ports the orchestration core needs from a
// container runtime. Implementations live under internal/adapter: docker for
// the real engine, fake for tests.
package runtime

import (
	"context"
	"time"
)

// ContainerRuntime is the boundary to an external container engine. Image
// references are opaque to the core; the runtime resolves and runs them.
//
// Stop and Remove are idempotent: a missing container is not an error.
type ContainerRuntime interface {
	// WaitReady blocks until the runtime answers, or ctx expires.
	WaitReady(ctx context.Context) error

	ContainerCreate(ctx context.Context, cfg ContainerCreateConfig) error
	ContainerStart(ctx context.Context, name string) error
	// ContainerStop signals graceful termination and kills after grace.
	ContainerStop(ctx context.Context, name string, grace time.Duration) error
	ContainerRemove(ctx context.Context, name string, force bool) error
	ContainerInspect(ctx context.Context, name string) (ContainerInfo, error)
	// ContainerWait blocks until the named container exits and returns its
	// exit code. Unblocks with ctx.Err() on cancellation.
	ContainerWait(ctx context.Context, name string) (int64, error)
	ContainerLogs(ctx context.Context, name string, lines int) (string, error)
	// ContainerList returns containers matching all given label pairs,
	// including stopped ones.
	ContainerList(ctx context.Context, labels map[string]string) ([]ContainerSummary, error)

	ImagePull(ctx context.Context, image string) error

	// NetworkEnsure and VolumeEnsure create the named resource if absent.
	// Re-ensuring an existing one is a no-op.
	NetworkEnsure(ctx context.Context, name string, labels map[string]string) error
	NetworkRemove(ctx context.Context, name string) error
	VolumeEnsure(ctx context.Context, name string, labels map[string]string) error
	VolumeRemove(ctx context.Context, name string, force bool) error

	Close() error
}

// ContainerCreateConfig is everything the runtime needs to create one
// container. The runtime-side restart policy is always disabled: restart
// decisions belong to the supervisor.
type ContainerCreateConfig struct {
	Name       string
	Image      string
	Entrypoint []string
	Cmd        []string
	Env        []string
	Ports      []PortBinding
	Mounts     []Mount
	Networks   []string
	Aliases    []string
	Labels     map[string]string
	LogDriver  string
	LogOptions map[string]string
}

// Mount attaches either a host path (type "bind") or a named volume
// (type "volume") into the container.
type Mount struct {
	Type     string
	Source   string
	Target   string
	ReadOnly bool
}

// PortBinding publishes a container port on the host. HostPort 0 means
// unpublished.
type PortBinding struct {
	HostIP        string
	HostPort      uint16
	ContainerPort uint16
	Protocol      string
}

// ContainerInfo is the result of a point-in-time inspect.
type ContainerInfo struct {
	Exists   bool
	Running  bool
	ExitCode int
}

// ContainerSummary is one row of a label-filtered container listing.
type ContainerSummary struct {
	Name   string
	Image  string
	State  string
	Status string
	Labels map[string]string
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
