package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Adopt the rates the firmware left and print them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := openPlatform(cmd)
		if err != nil {
			return err
		}
		defer p.close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "CLOCK\tHANDOFF\tRATE (Hz)")
		for _, c := range p.registry.Clocks() {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name(), c.Handoff(), c.Rate())
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(handoffCmd)
}
