package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultNetwork is the network every service joins when it declares none.
const DefaultNetwork = "default"

// Topology is the validated, in-memory form of one deployment description.
// It is built once at load time and read-only afterwards.
type Topology struct {
	Name     string        `yaml:"name"`
	Services []ServiceSpec `yaml:"services"`
	Networks []NetworkSpec `yaml:"networks,omitempty"`
	Volumes  []VolumeSpec  `yaml:"volumes,omitempty"`
}

// ServiceSpec is one service's declared configuration, normalized from the
// source document. Image or Build is an opaque reference handed to the
// container runtime.
type ServiceSpec struct {
	Name        string            `yaml:"name"`
	Image       string            `yaml:"image,omitempty"`
	Build       string            `yaml:"build,omitempty"`
	Command     []string          `yaml:"command,omitempty"`
	Entrypoint  []string          `yaml:"entrypoint,omitempty"`
	Environment []string          `yaml:"environment,omitempty"`
	Ports       []PortMapping     `yaml:"ports,omitempty"`
	Mounts      []Mount           `yaml:"mounts,omitempty"`
	Networks    []string          `yaml:"networks,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Restart     RestartPolicy     `yaml:"restart,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	LogDriver   string            `yaml:"log_driver,omitempty"`
	LogOptions  map[string]string `yaml:"log_options,omitempty"`
}

// PortMapping publishes a container port on the host. HostPort 0 means the
// port is exposed but not published.
type PortMapping struct {
	HostIP        string `yaml:"host_ip,omitempty"`
	HostPort      uint16 `yaml:"host_port,omitempty"`
	ContainerPort uint16 `yaml:"container_port"`
	Protocol      string `yaml:"protocol"`
}

func (p PortMapping) String() string {
	host := strconv.Itoa(int(p.HostPort))
	if p.HostIP != "" {
		host = p.HostIP + ":" + host
	}
	return fmt.Sprintf("%s:%d/%s", host, p.ContainerPort, p.Protocol)
}

// Mount attaches a host path (type "bind") or a named volume
// (type "volume") into the container filesystem.
type Mount struct {
	Type     string `yaml:"type"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	ReadOnly bool   `yaml:"read_only,omitempty"`
}

// NetworkSpec is a named flat virtual network. Membership is derived from
// the services referencing it.
type NetworkSpec struct {
	Name   string            `yaml:"name"`
	Driver string            `yaml:"driver,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// VolumeSpec is a named persistent volume. Its backing store is managed by
// the runtime and outlives supervision runs.
type VolumeSpec struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// RestartMode enumerates the supported restart policies.
type RestartMode string

const (
	RestartNone          RestartMode = "no"
	RestartOnFailure     RestartMode = "on-failure"
	RestartAlways        RestartMode = "always"
	RestartUnlessStopped RestartMode = "unless-stopped"
)

// RestartPolicy governs whether a service is relaunched after exit.
// MaxRetries 0 means unbounded; it is only meaningful for on-failure.
type RestartPolicy struct {
	Mode       RestartMode `yaml:"mode"`
	MaxRetries int         `yaml:"max_retries,omitempty"`
}

// ParseRestartPolicy parses compose-style restart values:
// "", "no", "always", "unless-stopped", "on-failure", "on-failure:N".
func ParseRestartPolicy(raw string) (RestartPolicy, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "no", "none":
		return RestartPolicy{Mode: RestartNone}, nil
	case "always":
		return RestartPolicy{Mode: RestartAlways}, nil
	case "unless-stopped":
		return RestartPolicy{Mode: RestartUnlessStopped}, nil
	case "on-failure":
		return RestartPolicy{Mode: RestartOnFailure}, nil
	}

	if rest, ok := strings.CutPrefix(raw, "on-failure:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return RestartPolicy{}, fmt.Errorf("invalid on-failure retry count %q", rest)
		}
		return RestartPolicy{Mode: RestartOnFailure, MaxRetries: n}, nil
	}

	return RestartPolicy{}, fmt.Errorf("unknown restart policy %q", raw)
}

// Service looks up a service by name.
func (t *Topology) Service(name string) (ServiceSpec, bool) {
	for _, svc := range t.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceSpec{}, false
}

// HasNetwork reports whether a network is declared in the topology.
func (t *Topology) HasNetwork(name string) bool {
	for _, nw := range t.Networks {
		if nw.Name == name {
			return true
		}
	}
	return false
}

// HasVolume reports whether a named volume is declared in the topology.
func (t *Topology) HasVolume(name string) bool {
	for _, vol := range t.Volumes {
		if vol.Name == name {
			return true
		}
	}
	return false
}
