package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"skiff/cmd/skiff/ui"
	"skiff/internal/adapter/docker"
	"skiff/internal/bind"
	"skiff/internal/supervisor"
	"skiff/internal/topology"
	"skiff/internal/watchfile"
)

func upCmd(opts *rootOptions) *cobra.Command {
	var (
		watch bool
		grace time.Duration
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the topology and supervise it until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if grace == 0 {
				grace = opts.grace
			}

			topo, err := loadTopology(ctx, opts)
			if err != nil {
				return err
			}

			rt, err := docker.NewRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			binder := bind.New(rt)
			if err := binder.Bind(ctx, topo); err != nil {
				return err
			}

			sup, err := startSupervisor(ctx, rt, topo, grace)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Project %s is up (%d services).", ui.Bold(topo.Name), len(topo.Services)))

			reload := make(chan struct{}, 1)
			if watch {
				w, err := watchfile.New(opts.file)
				if err != nil {
					return err
				}
				go func() {
					_ = w.Run(ctx, func() {
						select {
						case reload <- struct{}{}:
						default:
						}
					})
				}()
				fmt.Println(ui.InfoMsg("Watching %s for changes.", opts.file))
			}

			for {
				select {
				case <-ctx.Done():
					fmt.Println(ui.InfoMsg("Shutting down %s.", ui.Bold(topo.Name)))
					stopCtx, cancel := context.WithTimeout(context.Background(), grace+30*time.Second)
					defer cancel()
					return sup.Stop(stopCtx)
				case <-reload:
					fmt.Println(ui.InfoMsg("Topology changed, reloading."))
					next, err := loadTopology(ctx, opts)
					if err != nil {
						fmt.Println(ui.ErrorMsg("Reload failed: %v", err))
						continue
					}
					if err := sup.Stop(ctx); err != nil {
						fmt.Println(ui.WarnMsg("Stopping previous run: %v", err))
					}
					if err := binder.Bind(ctx, next); err != nil {
						fmt.Println(ui.ErrorMsg("Reload failed: %v", err))
						continue
					}
					replacement, err := startSupervisor(ctx, rt, next, grace)
					if err != nil {
						fmt.Println(ui.ErrorMsg("Reload failed: %v", err))
						continue
					}
					sup = replacement
					topo = next
					fmt.Println(ui.SuccessMsg("Project %s reloaded.", ui.Bold(topo.Name)))
				}
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reload when the topology file changes")
	cmd.Flags().DurationVarP(&grace, "timeout", "t", 0, "Stop grace period per container (default 10s)")
	return cmd
}

func startSupervisor(ctx context.Context, rt *docker.Runtime, topo *topology.Topology, grace time.Duration) (*supervisor.Supervisor, error) {
	sup := &supervisor.Supervisor{
		Runtime:  rt,
		Topology: topo,
		Session:  uuid.NewString(),
		Grace:    grace,
		OnEvent:  printEvent,
	}
	if err := sup.Start(ctx); err != nil {
		var unavailable *supervisor.ServiceUnavailableError
		if errors.As(err, &unavailable) {
			// Unaffected services keep running; report and supervise what came up.
			fmt.Println(ui.ErrorMsg("%v", unavailable))
			return sup, nil
		}
		return nil, err
	}
	return sup, nil
}

func printEvent(ev supervisor.Event) {
	name := ui.Bold(ev.Service)
	switch ev.Type {
	case supervisor.EventRunning:
		fmt.Println(ui.SuccessMsg("%s running", name))
	case supervisor.EventExited:
		fmt.Println(ui.InfoMsg("%s exited", name))
	case supervisor.EventFailed:
		fmt.Println(ui.ErrorMsg("%s failed: %s", name, ev.Message))
	case supervisor.EventRestarting:
		fmt.Println(ui.WarnMsg("%s restarting (%s)", name, ev.Message))
	case supervisor.EventBlocked:
		fmt.Println(ui.ErrorMsg("%s blocked: %s", name, ev.Message))
	case supervisor.EventStopped:
		fmt.Println(ui.InfoMsg("%s stopped", name))
	}
}
