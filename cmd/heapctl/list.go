package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/scenario"
)

func newListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			all := scenario.All()
			if g.jsonOut {
				type entry struct {
					Name string `json:"name"`
					Help string `json:"help"`
				}
				out := make([]entry, len(all))
				for i, s := range all {
					out[i] = entry{s.Name, s.Help}
				}
				return printJSON(w, out)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, s := range all {
				fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Help)
			}
			return tw.Flush()
		},
	}
}
