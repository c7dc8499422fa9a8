// Package clock provides the clock object that consumers hold and the
// operation tables that clock providers plug into it.
package clock

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrUnsupported is returned when a clock's operation table lacks the
// requested operation.
var ErrUnsupported = errors.New("clock: operation not supported")

// HandoffState tells whether a clock was found running at boot.
type HandoffState int

// Handoff results.
const (
	HandoffEnabled HandoffState = iota
	HandoffDisabled
)

func (s HandoffState) String() string {
	switch s {
	case HandoffEnabled:
		return "enabled"
	case HandoffDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("handoff(%d)", int(s))
	}
}

// Ops is the operation table every clock provides.
type Ops interface {
	Enable() error
	Disable()

	// IsLocal reports whether the clock is controlled by registers of this
	// processor.
	IsLocal() bool

	// Handoff adopts the state the clock had before the kernel started. It
	// may publish the adopted rate on c.
	Handoff(c *Clk) HandoffState
}

// RateOps is the operation table of clocks with a tunable rate.
type RateOps interface {
	Ops

	// SetRate asks for rate. Providers publish the rate they actually
	// applied on their clock object.
	SetRate(rate uint64) error
	GetRate() (uint64, error)
	IsEnabled() bool
	RoundRate(rate uint64) uint64
}

// Clk is a named clock handle backed by an operation table.
type Clk struct {
	name string
	ops  Ops
	rate atomic.Uint64
}

// New creates a clock handle.
func New(name string, ops Ops) *Clk {
	if ops == nil {
		panic("clock " + name + " has no operations")
	}

	return &Clk{name: name, ops: ops}
}

// Name returns the name of the clock.
func (c *Clk) Name() string { return c.name }

// Ops returns the operation table of the clock.
func (c *Clk) Ops() Ops { return c.ops }

// Rate returns the last rate published for the clock, in Hz.
func (c *Clk) Rate() uint64 { return c.rate.Load() }

// PublishRate records the rate of the clock, in Hz.
func (c *Clk) PublishRate(rate uint64) { c.rate.Store(rate) }

// Enable enables the clock.
func (c *Clk) Enable() error { return c.ops.Enable() }

// Disable disables the clock.
func (c *Clk) Disable() { c.ops.Disable() }

// IsLocal forwards to the operation table.
func (c *Clk) IsLocal() bool { return c.ops.IsLocal() }

// Handoff forwards to the operation table.
func (c *Clk) Handoff() HandoffState { return c.ops.Handoff(c) }

// SetRate changes the rate of the clock. The provider publishes the rate it
// applied, which may differ from rate.
func (c *Clk) SetRate(rate uint64) error {
	ops, ok := c.ops.(RateOps)
	if !ok {
		return ErrUnsupported
	}

	return ops.SetRate(rate)
}

// GetRate returns the rate reported by the provider, or the published rate
// when the provider has no rate operations.
func (c *Clk) GetRate() (uint64, error) {
	ops, ok := c.ops.(RateOps)
	if !ok {
		return c.Rate(), nil
	}

	return ops.GetRate()
}

// IsEnabled asks the provider whether the clock is running.
func (c *Clk) IsEnabled() (bool, error) {
	ops, ok := c.ops.(RateOps)
	if !ok {
		return false, ErrUnsupported
	}

	return ops.IsEnabled(), nil
}

// RoundRate returns the rate the clock would run at if asked for rate.
func (c *Clk) RoundRate(rate uint64) (uint64, error) {
	ops, ok := c.ops.(RateOps)
	if !ok {
		return 0, ErrUnsupported
	}

	return ops.RoundRate(rate), nil
}
