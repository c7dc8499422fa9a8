package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run a clock script.",
	Long: "`run script` executes one clock command per line, such as " +
		"`set_rate afab_clk 200M` or `enable afab_clk`. Without a script, " +
		"or with -, commands are read from standard input.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPlatform(cmd)
		if err != nil {
			return err
		}
		defer p.close()

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		keepGoing, _ := cmd.Flags().GetBool("keep-going")
		runner := &scriptRunner{
			registry:  p.registry,
			out:       cmd.OutOrStdout(),
			keepGoing: keepGoing,
		}

		return runner.Run(in)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("keep-going", false,
		"Report failing commands and continue")
}
