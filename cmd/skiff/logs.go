package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skiff/internal/adapter/docker"
	"skiff/internal/deploy"
)

func logsCmd(opts *rootOptions) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs <service>",
		Short: "Show a service's container logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service := args[0]

			topo, err := loadTopology(ctx, opts)
			if err != nil {
				return err
			}
			if _, ok := topo.Service(service); !ok {
				return fmt.Errorf("unknown service %q", service)
			}

			rt, err := docker.NewRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			logs, err := rt.ContainerLogs(ctx, deploy.ContainerName(topo.Name, service), tail)
			if err != nil {
				return err
			}
			if logs != "" {
				fmt.Println(logs)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 100, "Number of log lines to show")
	return cmd
}
