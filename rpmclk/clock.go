package rpmclk

import (
	"log"

	"github.com/sarchlab/rpmclk/clock"
	"github.com/sarchlab/rpmclk/rpm"
)

// Clock is one handle of an RPM clock.
type Clock struct {
	domain *Domain
	index  int
	peer   int
	clk    *clock.Clk

	name       string
	activeID   rpm.ResourceID
	statusID   rpm.ResourceID
	branch     bool
	activeOnly bool

	// Guarded by domain.lock.
	lastSetKHz      uint64
	lastSetSleepKHz uint64
	enabled         bool
}

// State is a snapshot of a handle.
type State struct {
	Name            string
	Peer            string
	ActiveID        rpm.ResourceID
	StatusID        rpm.ResourceID
	Branch          bool
	ActiveOnly      bool
	Enabled         bool
	LastSetKHz      uint64
	LastSetSleepKHz uint64
	PublishedRateHz uint64
}

// Name returns the name of the handle.
func (c *Clock) Name() string { return c.name }

// Domain returns the domain the handle belongs to.
func (c *Clock) Domain() *Domain { return c.domain }

// Peer returns the other handle of the same RPM clock.
func (c *Clock) Peer() *Clock {
	d := c.domain

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.clocks[c.peer]
}

// Clk returns the clock object consumers use.
func (c *Clock) Clk() *clock.Clk { return c.clk }

// State takes a snapshot of the handle.
func (c *Clock) State() State {
	d := c.domain

	d.lock.Lock()
	defer d.lock.Unlock()

	return State{
		Name:            c.name,
		Peer:            d.clocks[c.peer].name,
		ActiveID:        c.activeID,
		StatusID:        c.statusID,
		Branch:          c.branch,
		ActiveOnly:      c.activeOnly,
		Enabled:         c.enabled,
		LastSetKHz:      c.lastSetKHz,
		LastSetSleepKHz: c.lastSetSleepKHz,
		PublishedRateHz: c.clk.Rate(),
	}
}

// peerVotes returns what the peer currently asks for. The caller holds the
// domain lock.
func (c *Clock) peerVotes() (active, sleep uint64) {
	p := c.domain.clocks[c.peer]
	if !p.enabled {
		return 0, 0
	}

	return p.lastSetKHz, p.lastSetSleepKHz
}

func (c *Clock) coerce(v uint64) uint64 {
	if c.branch && v != 0 {
		return 1
	}

	return v
}

// Enable starts sending the handle's vote to the RPM. A handle whose rate
// was never set has nothing to vote and stays disabled.
func (c *Clock) Enable() error {
	d := c.domain

	d.lock.Lock()
	defer d.lock.Unlock()

	if c.lastSetKHz == 0 {
		return nil
	}

	peerKHz, peerSleepKHz := c.peerVotes()

	err := d.vote(c, rpm.ActiveSet, c.coerce(max(c.lastSetKHz, peerKHz)))
	if err != nil {
		return err
	}

	err = d.vote(c, rpm.SleepSet,
		c.coerce(max(c.lastSetSleepKHz, peerSleepKHz)))
	if err != nil {
		rbErr := d.vote(c, rpm.ActiveSet, c.coerce(peerKHz))
		if rbErr != nil {
			log.Printf("rpm clock %s: active vote rollback failed: %v",
				c.name, rbErr)
		}

		return err
	}

	c.enabled = true

	return nil
}

// Disable withdraws the handle's vote, leaving only the peer's. The handle
// is disabled even if the RPM refuses the new vote.
func (c *Clock) Disable() {
	d := c.domain

	d.lock.Lock()
	defer d.lock.Unlock()

	defer func() { c.enabled = false }()

	if c.lastSetKHz == 0 {
		return
	}

	peerKHz, peerSleepKHz := c.peerVotes()

	err := d.vote(c, rpm.ActiveSet, c.coerce(peerKHz))
	if err != nil {
		log.Printf("rpm clock %s: disable active vote failed: %v", c.name, err)
		return
	}

	err = d.vote(c, rpm.SleepSet, c.coerce(peerSleepKHz))
	if err != nil {
		log.Printf("rpm clock %s: disable sleep vote failed: %v", c.name, err)
	}
}

// SetRate changes the rate the handle asks for, rounded up to whole kHz. The
// vote reaches the RPM only while the handle is enabled. The rounded rate is
// published on the clock object.
func (c *Clock) SetRate(rateHz uint64) error {
	d := c.domain
	khz := hzToKHz(rateHz)

	d.lock.Lock()
	defer d.lock.Unlock()

	if c.lastSetKHz == khz {
		c.clk.PublishRate(khz * 1000)
		return nil
	}

	sleepKHz := khz
	if c.activeOnly {
		sleepKHz = 0
	}

	if c.enabled {
		peerKHz, peerSleepKHz := c.peerVotes()

		err := d.vote(c, rpm.ActiveSet, c.coerce(max(khz, peerKHz)))
		if err != nil {
			return err
		}

		err = d.vote(c, rpm.SleepSet, c.coerce(max(sleepKHz, peerSleepKHz)))
		if err != nil {
			return err
		}
	}

	c.lastSetKHz = khz
	c.lastSetSleepKHz = sleepKHz
	c.clk.PublishRate(khz * 1000)

	return nil
}

// GetRate returns the rate the RPM applied to the clock, in Hz. It may
// differ from what this handle asked for, since other masters vote too.
func (c *Clock) GetRate() (uint64, error) {
	d := c.domain

	d.lock.Lock()
	defer d.lock.Unlock()

	khz, err := d.status(c)
	if err != nil {
		return 0, err
	}

	return khz * 1000, nil
}

// IsEnabled reports whether the RPM runs the clock at a non-zero rate.
func (c *Clock) IsEnabled() bool {
	rate, err := c.GetRate()
	return err == nil && rate != 0
}

// RoundRate returns rate. The RPM accepts any rate.
func (c *Clock) RoundRate(rateHz uint64) uint64 { return rateHz }

// IsLocal returns false. The clock has no registers on this processor.
func (c *Clock) IsLocal() bool { return false }

// Handoff adopts the rate the RPM runs the clock at when the kernel starts.
// Clocks are reported enabled whenever the RPM answers, so that their
// children can be handed off as well.
func (c *Clock) Handoff(clk *clock.Clk) clock.HandoffState {
	d := c.domain

	d.lock.Lock()
	defer d.lock.Unlock()

	khz, err := d.status(c)
	if err != nil {
		return clock.HandoffDisabled
	}

	if !c.branch {
		c.lastSetKHz = khz
		if !c.activeOnly {
			c.lastSetSleepKHz = khz
		}

		clk.PublishRate(khz * 1000)
	}

	return clock.HandoffEnabled
}
