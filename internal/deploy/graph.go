package deploy

import (
	"fmt"
	"sort"
	"strings"

	"skiff/internal/topology"
)

// Tier is a set of services with no dependency edges among them. All
// services in a tier may be started concurrently once every earlier tier
// is up.
type Tier []topology.ServiceSpec

// Names returns the service names of the tier in order.
func (t Tier) Names() []string {
	out := make([]string, 0, len(t))
	for _, svc := range t {
		out = append(out, svc.Name)
	}
	return out
}

// BuildGraph orders the topology's services into dependency tiers using
// Kahn's algorithm. Tier 0 holds services with no dependencies; each
// subsequent tier depends only on earlier ones. Ordering is deterministic:
// within a tier services are sorted by name.
func BuildGraph(topo *topology.Topology) ([]Tier, error) {
	if len(topo.Services) == 0 {
		return nil, nil
	}

	specByName := make(map[string]topology.ServiceSpec, len(topo.Services))
	inDegree := make(map[string]int, len(topo.Services))
	adj := make(map[string][]string, len(topo.Services))

	for _, svc := range topo.Services {
		name := strings.TrimSpace(svc.Name)
		if name == "" {
			return nil, fmt.Errorf("build graph: service name is required")
		}
		if _, exists := specByName[name]; exists {
			return nil, fmt.Errorf("build graph: duplicate service %q", name)
		}
		specByName[name] = svc
		inDegree[name] = 0
		adj[name] = nil
	}

	for _, svc := range topo.Services {
		for _, dep := range svc.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if dep == svc.Name {
				return nil, fmt.Errorf("build graph: service %q depends on itself", svc.Name)
			}
			if _, ok := specByName[dep]; !ok {
				return nil, fmt.Errorf("build graph: service %q depends on unknown service %q", svc.Name, dep)
			}
			adj[dep] = append(adj[dep], svc.Name)
			inDegree[svc.Name]++
		}
	}

	for name := range adj {
		sort.Strings(adj[name])
	}

	ready := make([]string, 0, len(topo.Services))
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	processed := 0
	tiers := make([]Tier, 0)
	for len(ready) > 0 {
		tierNames := append([]string(nil), ready...)
		ready = ready[:0]

		tier := make(Tier, 0, len(tierNames))
		for _, name := range tierNames {
			tier = append(tier, specByName[name])
			processed++
			for _, dependent := range adj[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					ready = append(ready, dependent)
				}
			}
		}
		sort.Strings(ready)
		tiers = append(tiers, tier)
	}

	if processed != len(topo.Services) {
		remaining := make([]string, 0, len(topo.Services)-processed)
		for name, degree := range inDegree {
			if degree > 0 {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, &CyclicDependencyError{Services: remaining}
	}

	return tiers, nil
}

// Dependents computes, for every service, the set of services that
// transitively depend on it. Used to decide which services must be
// withheld when a dependency fails.
func Dependents(topo *topology.Topology) map[string][]string {
	children := make(map[string][]string, len(topo.Services))
	for _, svc := range topo.Services {
		for _, dep := range svc.DependsOn {
			children[dep] = append(children[dep], svc.Name)
		}
	}

	out := make(map[string][]string, len(topo.Services))
	for _, svc := range topo.Services {
		seen := map[string]bool{svc.Name: true}
		queue := append([]string(nil), children[svc.Name]...)
		var closure []string
		for len(queue) > 0 {
			name := queue[0]
			queue = queue[1:]
			if seen[name] {
				continue
			}
			seen[name] = true
			closure = append(closure, name)
			queue = append(queue, children[name]...)
		}
		sort.Strings(closure)
		out[svc.Name] = closure
	}
	return out
}
