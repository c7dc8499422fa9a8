package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rpmclk/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Hand the clocks over and serve them with the web monitor.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := openPlatform(cmd)
		if err != nil {
			return err
		}
		defer p.close()

		p.registry.HandoffAll()

		port := p.settings.MonitorPort
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		m := monitoring.NewMonitor().WithPortNumber(port)
		m.RegisterDomain(p.domain)
		url := m.StartServer()

		if open, _ := cmd.Flags().GetBool("open"); open {
			if err := browser.OpenURL(url + "/api/clocks"); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
			}
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port of the monitor (default: random)")
	serveCmd.Flags().Bool("open", false, "Open the monitor in a browser")
}
