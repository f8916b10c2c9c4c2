package bind

import (
	"context"
	"errors"
	"testing"

	"skiff/internal/adapter/fake"
	"skiff/internal/topology"
)

func testTopology() *topology.Topology {
	return &topology.Topology{
		Name: "app",
		Networks: []topology.NetworkSpec{
			{Name: "app-net"},
			{Name: "db-net"},
		},
		Volumes: []topology.VolumeSpec{
			{Name: "db-data"},
		},
	}
}

func TestBind(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()

	if err := New(rt).Bind(ctx, testTopology()); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	networks := rt.Networks()
	if len(networks) != 2 || networks[0] != "skiff-app-app-net" || networks[1] != "skiff-app-db-net" {
		t.Fatalf("networks = %v", networks)
	}
	volumes := rt.Volumes()
	if len(volumes) != 1 || volumes[0] != "skiff-app-db-data" {
		t.Fatalf("volumes = %v", volumes)
	}
}

func TestBindIdempotent(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	binder := New(rt)

	if err := binder.Bind(ctx, testTopology()); err != nil {
		t.Fatalf("first Bind() error = %v", err)
	}
	if err := binder.Bind(ctx, testTopology()); err != nil {
		t.Fatalf("second Bind() error = %v", err)
	}
	if len(rt.Networks()) != 2 || len(rt.Volumes()) != 1 {
		t.Fatalf("resources duplicated: networks=%v volumes=%v", rt.Networks(), rt.Volumes())
	}
}

func TestBindNetworkError(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	boom := errors.New("boom")
	rt.NetworkEnsureErr = func(ctx context.Context, name string) error { return boom }

	err := New(rt).Bind(ctx, testTopology())
	var bindErr *NetworkBindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Bind() error = %v, want NetworkBindError", err)
	}
	if bindErr.Network != "app-net" {
		t.Fatalf("bindErr.Network = %q, want app-net", bindErr.Network)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error does not wrap the cause")
	}
}

func TestBindVolumeError(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	boom := errors.New("boom")
	rt.VolumeEnsureErr = func(ctx context.Context, name string) error { return boom }

	err := New(rt).Bind(ctx, testTopology())
	var bindErr *VolumeBindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Bind() error = %v, want VolumeBindError", err)
	}
	if bindErr.Volume != "db-data" {
		t.Fatalf("bindErr.Volume = %q, want db-data", bindErr.Volume)
	}
}

func TestUnbind(t *testing.T) {
	ctx := context.Background()
	rt := fake.NewContainerRuntime()
	binder := New(rt)
	topo := testTopology()

	if err := binder.Bind(ctx, topo); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	if err := binder.Unbind(ctx, topo, false); err != nil {
		t.Fatalf("Unbind() error = %v", err)
	}
	if len(rt.Networks()) != 0 {
		t.Fatalf("networks remain after unbind: %v", rt.Networks())
	}
	if len(rt.Volumes()) != 1 {
		t.Fatalf("volumes should survive a plain unbind: %v", rt.Volumes())
	}

	if err := binder.Unbind(ctx, topo, true); err != nil {
		t.Fatalf("Unbind(removeVolumes) error = %v", err)
	}
	if len(rt.Volumes()) != 0 {
		t.Fatalf("volumes remain after removeVolumes: %v", rt.Volumes())
	}
}
