package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"skiff/internal/runtime"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

var _ runtime.ContainerRuntime = (*Runtime)(nil)

// Runtime implements runtime.ContainerRuntime using the Docker Engine API.
type Runtime struct {
	cli *client.Client
}

// NewRuntime creates a Runtime with a new Docker client from the environment.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewRuntimeFromClient(cli), nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli *client.Client) *Runtime {
	return &Runtime{cli: cli}
}

func (r *Runtime) WaitReady(ctx context.Context) error {
	return WaitReady(ctx, r.cli)
}

func (r *Runtime) ContainerCreate(ctx context.Context, cfg runtime.ContainerCreateConfig) error {
	exposed, bindings, err := portMaps(cfg.Ports)
	if err != nil {
		return fmt.Errorf("create container %q: %w", cfg.Name, err)
	}

	cc := &container.Config{
		Image:        cfg.Image,
		Entrypoint:   cfg.Entrypoint,
		Cmd:          cfg.Cmd,
		Env:          cfg.Env,
		Labels:       cfg.Labels,
		ExposedPorts: exposed,
	}
	hc := &container.HostConfig{
		PortBindings: bindings,
		// Restart decisions belong to the supervisor, never the engine.
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}
	if cfg.LogDriver != "" {
		hc.LogConfig = container.LogConfig{Type: cfg.LogDriver, Config: cfg.LogOptions}
	}
	for _, m := range cfg.Mounts {
		mountType := mount.TypeVolume
		if m.Type == "bind" {
			mountType = mount.TypeBind
		}
		hc.Mounts = append(hc.Mounts, mount.Mount{
			Type:     mountType,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	// The create API accepts a single endpoint; join the rest afterwards.
	var nc *dockernetwork.NetworkingConfig
	if len(cfg.Networks) > 0 {
		nc = &dockernetwork.NetworkingConfig{
			EndpointsConfig: map[string]*dockernetwork.EndpointSettings{
				cfg.Networks[0]: {Aliases: cfg.Aliases},
			},
		}
	}

	created, err := r.cli.ContainerCreate(ctx, cc, hc, nc, nil, cfg.Name)
	if err != nil {
		return fmt.Errorf("create container %q: %w", cfg.Name, err)
	}
	if len(cfg.Networks) > 1 {
		for _, nw := range cfg.Networks[1:] {
			err := r.cli.NetworkConnect(ctx, nw, created.ID, &dockernetwork.EndpointSettings{Aliases: cfg.Aliases})
			if err != nil {
				return fmt.Errorf("connect container %q to network %q: %w", cfg.Name, nw, err)
			}
		}
	}
	return nil
}

func (r *Runtime) ContainerStart(ctx context.Context, name string) error {
	if err := r.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) ContainerStop(ctx context.Context, name string, grace time.Duration) error {
	seconds := int(grace.Round(time.Second) / time.Second)
	err := r.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &seconds})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("stop container %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) ContainerRemove(ctx context.Context, name string, force bool) error {
	err := r.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) ContainerInspect(ctx context.Context, name string) (runtime.ContainerInfo, error) {
	info, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.ContainerInfo{Exists: false}, nil
		}
		return runtime.ContainerInfo{}, fmt.Errorf("inspect container %q: %w", name, err)
	}
	out := runtime.ContainerInfo{Exists: true}
	if info.State != nil {
		out.Running = info.State.Running
		out.ExitCode = info.State.ExitCode
	}
	return out, nil
}

func (r *Runtime) ContainerWait(ctx context.Context, name string) (int64, error) {
	resultCh, errCh := r.cli.ContainerWait(ctx, name, container.WaitConditionNotRunning)
	select {
	case result := <-resultCh:
		if result.Error != nil {
			return 0, fmt.Errorf("wait for container %q: %s", name, result.Error.Message)
		}
		return result.StatusCode, nil
	case err := <-errCh:
		return 0, fmt.Errorf("wait for container %q: %w", name, err)
	}
}

func (r *Runtime) ContainerLogs(ctx context.Context, name string, lines int) (string, error) {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(lines),
	}
	rc, err := r.cli.ContainerLogs(ctx, name, opts)
	if err != nil {
		return "", fmt.Errorf("container logs %q: %w", name, err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	// Strip docker stream framing (8-byte header per chunk).
	var clean []byte
	for len(data) >= 8 {
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]
		if size > len(data) {
			size = len(data)
		}
		clean = append(clean, data[:size]...)
		data = data[size:]
	}
	return string(bytes.TrimSpace(clean)), nil
}

func (r *Runtime) ContainerList(ctx context.Context, labels map[string]string) ([]runtime.ContainerSummary, error) {
	args := filters.NewArgs()
	for key, value := range labels {
		args.Add("label", key+"="+value)
	}
	rows, err := r.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]runtime.ContainerSummary, 0, len(rows))
	for _, row := range rows {
		name := ""
		if len(row.Names) > 0 {
			name = trimLeadingSlash(row.Names[0])
		}
		out = append(out, runtime.ContainerSummary{
			Name:   name,
			Image:  row.Image,
			State:  row.State,
			Status: row.Status,
			Labels: row.Labels,
		})
	}
	return out, nil
}

func (r *Runtime) ImagePull(ctx context.Context, img string) error {
	pull, err := r.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", img, err)
	}
	_, _ = io.Copy(io.Discard, pull)
	_ = pull.Close()
	return nil
}

func (r *Runtime) NetworkEnsure(ctx context.Context, name string, labels map[string]string) error {
	_, err := r.cli.NetworkInspect(ctx, name, dockernetwork.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network %q: %w", name, err)
	}
	_, err = r.cli.NetworkCreate(ctx, name, dockernetwork.CreateOptions{
		Driver: "bridge",
		Labels: labels,
	})
	if err != nil {
		return fmt.Errorf("create network %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) NetworkRemove(ctx context.Context, name string) error {
	if err := r.cli.NetworkRemove(ctx, name); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove network %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) VolumeEnsure(ctx context.Context, name string, labels map[string]string) error {
	_, err := r.cli.VolumeInspect(ctx, name)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect volume %q: %w", name, err)
	}
	_, err = r.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels})
	if err != nil {
		return fmt.Errorf("create volume %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) VolumeRemove(ctx context.Context, name string, force bool) error {
	if err := r.cli.VolumeRemove(ctx, name, force); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove volume %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) Close() error {
	return r.cli.Close()
}

func portMaps(ports []runtime.PortBinding) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for _, p := range ports {
		port, err := nat.NewPort(p.Protocol, strconv.Itoa(int(p.ContainerPort)))
		if err != nil {
			return nil, nil, err
		}
		exposed[port] = struct{}{}
		if p.HostPort == 0 {
			continue
		}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   p.HostIP,
			HostPort: strconv.Itoa(int(p.HostPort)),
		})
	}
	return exposed, bindings, nil
}

func trimLeadingSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
