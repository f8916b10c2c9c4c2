package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"skiff/cmd/skiff/ui"
	"skiff/internal/deploy"
)

func graphCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the dependency tiers services start in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology(cmd.Context(), opts)
			if err != nil {
				return err
			}

			tiers, err := deploy.BuildGraph(topo)
			if err != nil {
				return err
			}

			pairs := make([]ui.Pair, 0, len(tiers))
			for i, tier := range tiers {
				names := tier.Names()
				for j, name := range names {
					names[j] = ui.Accent(name)
				}
				pairs = append(pairs, ui.KV(fmt.Sprintf("tier %d", i), strings.Join(names, ", ")))
			}
			fmt.Print(ui.KeyValues("", pairs...))
			return nil
		},
	}
	return cmd
}
