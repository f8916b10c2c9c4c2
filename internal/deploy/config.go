package deploy

import (
	"fmt"

	"skiff/internal/runtime"
	"skiff/internal/topology"
)

// Labels stamped on every container, network, and volume the tool owns.
// They are how a later run finds resources left behind by an earlier one.
const (
	LabelProject = "skiff.project"
	LabelService = "skiff.service"
	LabelSession = "skiff.session"
)

// ResourceName derives the runtime-visible name of a project-scoped
// network or volume.
func ResourceName(project, name string) string {
	return fmt.Sprintf("skiff-%s-%s", project, name)
}

// CreateConfig converts a service spec into the runtime create config for
// its container. A declared entrypoint replaces the image's; the service
// name is attached as a network alias on every network the service joins.
func CreateConfig(project, session string, spec topology.ServiceSpec) runtime.ContainerCreateConfig {
	mounts := make([]runtime.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		source := m.Source
		if m.Type == "volume" {
			source = ResourceName(project, m.Source)
		}
		mounts = append(mounts, runtime.Mount{
			Type:     m.Type,
			Source:   source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	if len(mounts) == 0 {
		mounts = nil
	}

	ports := make([]runtime.PortBinding, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		ports = append(ports, runtime.PortBinding{
			HostIP:        p.HostIP,
			HostPort:      p.HostPort,
			ContainerPort: p.ContainerPort,
			Protocol:      p.Protocol,
		})
	}
	if len(ports) == 0 {
		ports = nil
	}

	networks := make([]string, 0, len(spec.Networks))
	for _, nw := range spec.Networks {
		networks = append(networks, ResourceName(project, nw))
	}

	return runtime.ContainerCreateConfig{
		Name:       ContainerName(project, spec.Name),
		Image:      spec.Image,
		Entrypoint: append([]string(nil), spec.Entrypoint...),
		Cmd:        append([]string(nil), spec.Command...),
		Env:        append([]string(nil), spec.Environment...),
		Ports:      ports,
		Mounts:     mounts,
		Networks:   networks,
		Aliases:    []string{spec.Name},
		Labels:     mergeManagedLabels(spec.Labels, project, spec.Name, session),
		LogDriver:  spec.LogDriver,
		LogOptions: spec.LogOptions,
	}
}

// ManagedLabels returns the label set identifying resources owned by a
// project. Pass an empty service to label project-level resources.
func ManagedLabels(project, service string) map[string]string {
	labels := map[string]string{LabelProject: project}
	if service != "" {
		labels[LabelService] = service
	}
	return labels
}

func mergeManagedLabels(base map[string]string, project, service, session string) map[string]string {
	out := make(map[string]string, len(base)+3)
	for key, value := range base {
		out[key] = value
	}
	out[LabelProject] = project
	out[LabelService] = service
	out[LabelSession] = session
	return out
}
