package topology

import "fmt"

// validate enforces the structural invariants the rest of the system
// relies on. Every violation surfaces as a MalformedDocumentError so
// callers can treat load failures uniformly.
func (t *Topology) validate() error {
	if len(t.Services) == 0 {
		return &MalformedDocumentError{Detail: "document declares no services"}
	}

	names := make(map[string]bool, len(t.Services))
	for _, svc := range t.Services {
		names[svc.Name] = true
	}

	hostPorts := make(map[string]string)
	for _, svc := range t.Services {
		if svc.Image == "" && svc.Build == "" {
			return &MalformedDocumentError{
				Detail: fmt.Sprintf("service %q declares neither image nor build", svc.Name),
			}
		}

		for _, network := range svc.Networks {
			if !t.HasNetwork(network) {
				return &MalformedDocumentError{
					Detail: fmt.Sprintf("service %q references undeclared network %q", svc.Name, network),
				}
			}
		}

		for _, m := range svc.Mounts {
			if m.Type == "volume" && !t.HasVolume(m.Source) {
				return &MalformedDocumentError{
					Detail: fmt.Sprintf("service %q references undeclared volume %q", svc.Name, m.Source),
				}
			}
		}

		for _, dep := range svc.DependsOn {
			if dep == svc.Name {
				return &MalformedDocumentError{
					Detail: fmt.Sprintf("service %q depends on itself", svc.Name),
				}
			}
			if !names[dep] {
				return &MalformedDocumentError{
					Detail: fmt.Sprintf("service %q depends on unknown service %q", svc.Name, dep),
				}
			}
		}

		for _, port := range svc.Ports {
			if port.HostPort == 0 {
				continue
			}
			hostIP := port.HostIP
			if hostIP == "0.0.0.0" {
				hostIP = ""
			}
			key := fmt.Sprintf("%s:%d/%s", hostIP, port.HostPort, port.Protocol)
			if other, taken := hostPorts[key]; taken {
				if other == svc.Name {
					return &MalformedDocumentError{
						Detail: fmt.Sprintf("service %q publishes host port %d/%s twice", svc.Name, port.HostPort, port.Protocol),
					}
				}
				return &MalformedDocumentError{
					Detail: fmt.Sprintf("services %q and %q both publish host port %d/%s", other, svc.Name, port.HostPort, port.Protocol),
				}
			}
			hostPorts[key] = svc.Name
		}
	}

	return nil
}
