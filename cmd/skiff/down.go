package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"skiff/cmd/skiff/ui"
	"skiff/internal/adapter/docker"
	"skiff/internal/bind"
	"skiff/internal/deploy"
	"skiff/internal/runtime"
)

func downCmd(opts *rootOptions) *cobra.Command {
	var (
		removeVolumes bool
		grace         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the project's containers and networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if grace == 0 {
				grace = opts.grace
			}
			if grace == 0 {
				grace = 10 * time.Second
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

			rows, err := rt.ContainerList(ctx, deploy.ManagedLabels(topo.Name, ""))
			if err != nil {
				return err
			}

			// Stop dependents before their dependencies.
			tiers, err := deploy.BuildGraph(topo)
			if err != nil {
				return err
			}
			byName := make(map[string]runtime.ContainerSummary, len(rows))
			for _, row := range rows {
				byName[row.Name] = row
			}
			for i := len(tiers) - 1; i >= 0; i-- {
				for _, svc := range tiers[i] {
					name := deploy.ContainerName(topo.Name, svc.Name)
					if _, ok := byName[name]; !ok {
						continue
					}
					delete(byName, name)
					if err := removeContainer(ctx, rt, name, grace); err != nil {
						return err
					}
					fmt.Println(ui.InfoMsg("Removed %s", ui.Bold(name)))
				}
			}
			// Strays: containers labeled for this project but no longer in
			// the document (renamed or deleted services).
			for name := range byName {
				if err := removeContainer(ctx, rt, name, grace); err != nil {
					return err
				}
				fmt.Println(ui.InfoMsg("Removed %s", ui.Bold(name)))
			}

			if err := bind.New(rt).Unbind(ctx, topo, removeVolumes); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Project %s is down.", ui.Bold(topo.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Also remove named volumes")
	cmd.Flags().DurationVarP(&grace, "timeout", "t", 0, "Stop grace period per container (default 10s)")
	return cmd
}

func removeContainer(ctx context.Context, rt *docker.Runtime, name string, grace time.Duration) error {
	if err := rt.ContainerStop(ctx, name, grace); err != nil {
		return err
	}
	return rt.ContainerRemove(ctx, name, true)
}
