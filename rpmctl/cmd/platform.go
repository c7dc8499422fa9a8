package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rpmclk/clock"
	"github.com/sarchlab/rpmclk/config"
	"github.com/sarchlab/rpmclk/datarecording"
	"github.com/sarchlab/rpmclk/rpm"
	"github.com/sarchlab/rpmclk/rpmclk"
)

// localMaster is the name this processor votes under on the simulator.
const localMaster = "apps"

type platform struct {
	settings config.Settings
	table    *config.Table
	sim      *rpm.Simulator
	domain   *rpmclk.Domain
	registry *clock.Registry
	recorder *datarecording.VoteRecorder

	closeOnce sync.Once
	closers   []func()
}

func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	flags := cmd.Flags()

	envFile, _ := flags.GetString("env")
	s, err := config.LoadSettings(envFile)
	if err != nil {
		return s, err
	}

	if v, _ := flags.GetString("table"); v != "" {
		s.TablePath = v
	}
	if v, _ := flags.GetString("db"); v != "" {
		s.DBPath = v
	}
	if v, _ := flags.GetString("transport"); v != "" {
		s.Transport = v
	}

	return s, nil
}

func openPlatform(cmd *cobra.Command) (*platform, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	table, err := config.LoadTable(s.TablePath)
	if err != nil {
		return nil, err
	}

	p := &platform{
		settings: s,
		table:    table,
		registry: clock.NewRegistry(),
	}

	var resource rpm.Resource
	if s.Transport == config.TransportSim {
		p.sim = rpm.NewSimulator()
		table.Seed(p.sim)
		resource = p.sim.Master(localMaster)
	} else {
		ch, err := rpm.OpenRPMsg(s.Transport)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() { ch.Close() })
		resource = ch
	}

	p.domain = rpmclk.NewDomain(table.Domain, resource)
	table.Build(p.domain)

	if err := p.domain.Register(p.registry); err != nil {
		p.close()
		return nil, err
	}

	if s.DBPath != "" {
		writer := datarecording.NewDataRecorder(s.DBPath)
		p.recorder = datarecording.NewVoteRecorder(writer)
		p.domain.AcceptHook(p.recorder)
		p.closers = append(p.closers, func() {
			p.recorder.Flush()
			if err := writer.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Closing %s: %v\n", s.DBPath, err)
			}
		})
		atexit.Register(p.close)
	}

	return p, nil
}

// close runs the closers in reverse order. It runs once, either when the
// command returns or when the program exits through atexit.
func (p *platform) close() {
	p.closeOnce.Do(func() {
		for i := len(p.closers) - 1; i >= 0; i-- {
			p.closers[i]()
		}
		p.closers = nil
	})
}
