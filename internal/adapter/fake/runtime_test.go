package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"skiff/internal/runtime"
)

func TestContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := NewContainerRuntime()

	if err := rt.ContainerCreate(ctx, runtime.ContainerCreateConfig{Name: "c1", Image: "img"}); err != nil {
		t.Fatalf("ContainerCreate() error = %v", err)
	}
	if err := rt.ContainerStart(ctx, "c1"); err != nil {
		t.Fatalf("ContainerStart() error = %v", err)
	}
	if !rt.Running("c1") {
		t.Fatalf("c1 not running after start")
	}

	info, err := rt.ContainerInspect(ctx, "c1")
	if err != nil {
		t.Fatalf("ContainerInspect() error = %v", err)
	}
	if !info.Exists || !info.Running {
		t.Fatalf("inspect = %+v, want exists and running", info)
	}

	if err := rt.ContainerStop(ctx, "c1", time.Second); err != nil {
		t.Fatalf("ContainerStop() error = %v", err)
	}
	if rt.Running("c1") {
		t.Fatalf("c1 still running after stop")
	}
	if err := rt.ContainerRemove(ctx, "c1", false); err != nil {
		t.Fatalf("ContainerRemove() error = %v", err)
	}
	info, _ = rt.ContainerInspect(ctx, "c1")
	if info.Exists {
		t.Fatalf("c1 still exists after remove")
	}
}

func TestContainerWaitBlocksUntilExit(t *testing.T) {
	ctx := context.Background()
	rt := NewContainerRuntime()
	_ = rt.ContainerCreate(ctx, runtime.ContainerCreateConfig{Name: "c1", Image: "img"})
	_ = rt.ContainerStart(ctx, "c1")

	done := make(chan int64, 1)
	go func() {
		code, err := rt.ContainerWait(ctx, "c1")
		if err != nil {
			t.Errorf("ContainerWait() error = %v", err)
		}
		done <- code
	}()

	select {
	case code := <-done:
		t.Fatalf("ContainerWait returned %d before exit", code)
	case <-time.After(20 * time.Millisecond):
	}

	rt.ExitContainer("c1", 137)
	select {
	case code := <-done:
		if code != 137 {
			t.Fatalf("exit code = %d, want 137", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("ContainerWait did not return after exit")
	}
}

func TestContainerWaitReturnsImmediatelyWhenStopped(t *testing.T) {
	ctx := context.Background()
	rt := NewContainerRuntime()
	_ = rt.ContainerCreate(ctx, runtime.ContainerCreateConfig{Name: "c1", Image: "img"})
	_ = rt.ContainerStart(ctx, "c1")
	rt.ExitContainer("c1", 1)

	code, err := rt.ContainerWait(ctx, "c1")
	if err != nil {
		t.Fatalf("ContainerWait() error = %v", err)
	}
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestErrorHook(t *testing.T) {
	ctx := context.Background()
	rt := NewContainerRuntime()
	boom := errors.New("boom")
	rt.ContainerStartErr = func(ctx context.Context, name string) error { return boom }

	_ = rt.ContainerCreate(ctx, runtime.ContainerCreateConfig{Name: "c1", Image: "img"})
	if err := rt.ContainerStart(ctx, "c1"); !errors.Is(err, boom) {
		t.Fatalf("ContainerStart() error = %v, want boom", err)
	}
	if got := len(rt.Calls("ContainerStart")); got != 1 {
		t.Fatalf("recorded calls = %d, want 1", got)
	}
}

func TestListFiltersByLabels(t *testing.T) {
	ctx := context.Background()
	rt := NewContainerRuntime()
	_ = rt.ContainerCreate(ctx, runtime.ContainerCreateConfig{Name: "a", Labels: map[string]string{"skiff.project": "app"}})
	_ = rt.ContainerCreate(ctx, runtime.ContainerCreateConfig{Name: "b", Labels: map[string]string{"skiff.project": "other"}})

	rows, err := rt.ContainerList(ctx, map[string]string{"skiff.project": "app"})
	if err != nil {
		t.Fatalf("ContainerList() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "a" {
		t.Fatalf("rows = %+v, want just a", rows)
	}
}
