// Package bind materializes the networks and volumes a topology declares
// before any container starts.
package bind

import (
	"context"
	"log/slog"

	"skiff/internal/deploy"
	"skiff/internal/runtime"
	"skiff/internal/topology"
)

// Binder ensures runtime networks and volumes for a topology.
type Binder struct {
	rt  runtime.ContainerRuntime
	log *slog.Logger
}

// New creates a Binder on the given runtime.
func New(rt runtime.ContainerRuntime) *Binder {
	return &Binder{rt: rt, log: slog.With("component", "bind")}
}

// Bind creates every network and volume the topology declares. Bind is
// idempotent: resources that already exist are left untouched, so it is
// safe to call on every up. Resources are labeled so Unbind can find them.
func (b *Binder) Bind(ctx context.Context, topo *topology.Topology) error {
	labels := deploy.ManagedLabels(topo.Name, "")

	for _, nw := range topo.Networks {
		name := deploy.ResourceName(topo.Name, nw.Name)
		merged := mergeLabels(labels, nw.Labels)
		if err := b.rt.NetworkEnsure(ctx, name, merged); err != nil {
			return &NetworkBindError{Network: nw.Name, Err: err}
		}
		b.log.Debug("network ensured", "network", name)
	}

	for _, vol := range topo.Volumes {
		name := deploy.ResourceName(topo.Name, vol.Name)
		merged := mergeLabels(labels, vol.Labels)
		if err := b.rt.VolumeEnsure(ctx, name, merged); err != nil {
			return &VolumeBindError{Volume: vol.Name, Err: err}
		}
		b.log.Debug("volume ensured", "volume", name)
	}

	return nil
}

// Unbind removes the topology's networks, and its volumes when
// removeVolumes is set. Volumes survive a plain down so data outlives
// supervision runs.
func (b *Binder) Unbind(ctx context.Context, topo *topology.Topology, removeVolumes bool) error {
	for _, nw := range topo.Networks {
		name := deploy.ResourceName(topo.Name, nw.Name)
		if err := b.rt.NetworkRemove(ctx, name); err != nil {
			return &NetworkBindError{Network: nw.Name, Err: err}
		}
		b.log.Debug("network removed", "network", name)
	}

	if !removeVolumes {
		return nil
	}
	for _, vol := range topo.Volumes {
		name := deploy.ResourceName(topo.Name, vol.Name)
		if err := b.rt.VolumeRemove(ctx, name, true); err != nil {
			return &VolumeBindError{Volume: vol.Name, Err: err}
		}
		b.log.Debug("volume removed", "volume", name)
	}
	return nil
}

func mergeLabels(managed, user map[string]string) map[string]string {
	out := make(map[string]string, len(managed)+len(user))
	for k, v := range user {
		out[k] = v
	}
	for k, v := range managed {
		out[k] = v
	}
	return out
}
