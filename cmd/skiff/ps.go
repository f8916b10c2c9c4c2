package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skiff/cmd/skiff/ui"
	"skiff/internal/adapter/docker"
	"skiff/internal/deploy"
)

func psCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List the project's containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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
			if len(rows) == 0 {
				fmt.Println(ui.Muted("No containers for project " + topo.Name + "."))
				return nil
			}

			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{
					row.Labels[deploy.LabelService],
					row.Name,
					ui.Phase(row.State),
					row.Status,
					row.Image,
				})
			}
			fmt.Println(ui.Table([]string{"SERVICE", "CONTAINER", "STATE", "STATUS", "IMAGE"}, table))
			return nil
		},
	}
	return cmd
}
