package topology

import (
	"sort"
	"strconv"
	"strings"

	compose "github.com/compose-spec/compose-go/v2/types"
)

// normalizeProject extracts the fields the orchestration core cares about
// from a compose Project into the immutable Topology model.
func normalizeProject(project *compose.Project) *Topology {
	topo := &Topology{Name: project.Name}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		topo.Services = append(topo.Services, normalizeService(name, project.Services[name]))
	}

	topo.Networks = normalizeNetworks(project.Networks)
	topo.Volumes = normalizeVolumes(project.Volumes)

	// Services without declared networks join the default network; make
	// sure it exists even when the document declares no networks at all.
	if !topo.HasNetwork(DefaultNetwork) {
		topo.Networks = append(topo.Networks, NetworkSpec{Name: DefaultNetwork})
		sort.Slice(topo.Networks, func(i, j int) bool { return topo.Networks[i].Name < topo.Networks[j].Name })
	}

	return topo
}

func normalizeService(name string, svc compose.ServiceConfig) ServiceSpec {
	spec := ServiceSpec{
		Name:        name,
		Image:       strings.TrimSpace(svc.Image),
		Command:     copyStrings([]string(svc.Command)),
		Entrypoint:  copyStrings([]string(svc.Entrypoint)),
		Environment: normalizeEnvironment(svc.Environment),
		Ports:       normalizePorts(svc.Ports),
		Mounts:      normalizeMounts(svc.Volumes),
		Networks:    sortedKeys(svc.Networks),
		DependsOn:   sortedKeys(svc.DependsOn),
		Labels:      copyLabels(svc.Labels),
	}
	if svc.Build != nil {
		spec.Build = strings.TrimSpace(svc.Build.Context)
	}
	if len(spec.Networks) == 0 {
		spec.Networks = []string{DefaultNetwork}
	}
	if policy, err := ParseRestartPolicy(svc.Restart); err == nil {
		spec.Restart = policy
	} else {
		spec.Restart = RestartPolicy{Mode: RestartNone}
	}
	if svc.Logging != nil {
		spec.LogDriver = svc.Logging.Driver
		if len(svc.Logging.Options) > 0 {
			spec.LogOptions = make(map[string]string, len(svc.Logging.Options))
			for k, v := range svc.Logging.Options {
				spec.LogOptions[k] = v
			}
		}
	}
	return spec
}

func normalizeEnvironment(env compose.MappingWithEquals) []string {
	if len(env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		value := ""
		if p := env[key]; p != nil {
			value = *p
		}
		out = append(out, key+"="+value)
	}
	return out
}

func normalizePorts(ports []compose.ServicePortConfig) []PortMapping {
	if len(ports) == 0 {
		return nil
	}

	out := make([]PortMapping, 0, len(ports))
	for _, p := range ports {
		protocol := strings.ToLower(strings.TrimSpace(p.Protocol))
		if protocol == "" {
			protocol = "tcp"
		}

		containerPort := uint16(0)
		if p.Target <= uint32(^uint16(0)) {
			containerPort = uint16(p.Target)
		}

		out = append(out, PortMapping{
			HostIP:        strings.TrimSpace(p.HostIP),
			HostPort:      parsePublishedPort(p.Published),
			ContainerPort: containerPort,
			Protocol:      protocol,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].HostPort != out[j].HostPort {
			return out[i].HostPort < out[j].HostPort
		}
		if out[i].ContainerPort != out[j].ContainerPort {
			return out[i].ContainerPort < out[j].ContainerPort
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

func parsePublishedPort(published string) uint16 {
	published = strings.TrimSpace(published)
	if published == "" {
		return 0
	}
	n, err := strconv.ParseUint(published, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(n)
}

func normalizeMounts(volumes []compose.ServiceVolumeConfig) []Mount {
	if len(volumes) == 0 {
		return nil
	}

	out := make([]Mount, 0, len(volumes))
	for _, v := range volumes {
		if strings.TrimSpace(v.Target) == "" {
			continue
		}
		mountType := v.Type
		if mountType == "" {
			mountType = compose.VolumeTypeVolume
		}
		if mountType != compose.VolumeTypeBind && mountType != compose.VolumeTypeVolume {
			continue
		}
		out = append(out, Mount{
			Type:     mountType,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}
	if len(out) == 0 {
		return nil
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

func normalizeNetworks(networks compose.Networks) []NetworkSpec {
	out := make([]NetworkSpec, 0, len(networks))
	for name, nw := range networks {
		out = append(out, NetworkSpec{
			Name:   name,
			Driver: nw.Driver,
			Labels: copyLabels(nw.Labels),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalizeVolumes(volumes compose.Volumes) []VolumeSpec {
	if len(volumes) == 0 {
		return nil
	}
	out := make([]VolumeSpec, 0, len(volumes))
	for name, vol := range volumes {
		out = append(out, VolumeSpec{
			Name:   name,
			Labels: copyLabels(vol.Labels),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func copyStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
