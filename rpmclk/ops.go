package rpmclk

import "github.com/sarchlab/rpmclk/clock"

// branchOps is the operation table of on/off RPM clocks. Rates mean nothing
// for them, so the rate operations are left out.
type branchOps struct {
	c *Clock
}

func (o branchOps) Enable() error { return o.c.Enable() }
func (o branchOps) Disable() { o.c.Disable() }
func (o branchOps) IsLocal() bool { return o.c.IsLocal() }
func (o branchOps) Handoff(clk *clock.Clk) clock.HandoffState { return o.c.Handoff(clk) }

// fullOps is the operation table of tunable RPM clocks.
type fullOps struct {
	branchOps
}

func (o fullOps) SetRate(rate uint64) error { return o.c.SetRate(rate) }
func (o fullOps) GetRate() (uint64, error) { return o.c.GetRate() }
func (o fullOps) IsEnabled() bool { return o.c.IsEnabled() }
func (o fullOps) RoundRate(rate uint64) uint64 { return o.c.RoundRate(rate) }

// Ops returns the operation table matching the kind of the handle.
func (c *Clock) Ops() clock.Ops {
	if c.branch {
		return branchOps{c: c}
	}

	return fullOps{branchOps{c: c}}
}

var (
	_ clock.Ops     = branchOps{}
	_ clock.RateOps = fullOps{}
)
