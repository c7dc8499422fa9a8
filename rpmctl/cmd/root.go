// Package cmd provides the command-line interface of rpmctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rpmctl",
	Short: "rpmctl votes for RPM-owned clocks and shows what the RPM applied.",
	Long: `rpmctl builds the RPM clock handles of a platform from its clock ` +
		`table, hands over the rates the firmware left, and lets you enable, ` +
		`disable and retune clocks through a script or a web monitor. By ` +
		`default it talks to an in-memory RPM.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env", ".env", "File with RPMCLK_* settings")
	flags.String("table", "", "Clock table file (default: built-in MSM8960)")
	flags.String("db", "", "Record every RPM exchange into this database")
	flags.String("transport", "",
		"RPM transport: \"sim\" or an rpmsg device path")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
