// Package rpmclk votes for clocks that are owned by the RPM.
//
// A Domain groups the clocks that share one RPM transport. Each physical RPM
// clock is exposed as two peer handles, typically one that keeps its vote
// during system sleep and an active-only one that does not. Whatever the
// consumers of the handles ask for, the domain always sends the RPM the
// larger of the two peers' requirements, so one peer dropping its vote never
// starves the other.
package rpmclk

import (
	"fmt"
	"sync"

	"github.com/sarchlab/rpmclk/clock"
	"github.com/sarchlab/rpmclk/hooking"
	"github.com/sarchlab/rpmclk/rpm"
)

// HookPosVote marks a set request sent to the RPM. The hook item is a
// VoteDetail.
var HookPosVote = &hooking.HookPos{Name: "Vote"}

// HookPosStatus marks a status query sent to the RPM. The hook item is a
// StatusDetail.
var HookPosStatus = &hooking.HookPos{Name: "Status"}

// VoteDetail describes one set request.
type VoteDetail struct {
	Clock string
	Ctx   rpm.Context
	ID    rpm.ResourceID
	Value uint64
	Err   error
}

// StatusDetail describes one status query.
type StatusDetail struct {
	Clock string
	ID    rpm.ResourceID
	Value uint64
	Err   error
}

// Desc is the static description of one clock handle.
type Desc struct {
	Name       string
	ActiveID   rpm.ResourceID
	StatusID   rpm.ResourceID
	Branch     bool
	ActiveOnly bool

	// RateHz is the rate the handle starts with. It is zero for clocks whose
	// rate is set by consumers or adopted at handoff.
	RateHz uint64
}

// Domain owns the lock that serializes every vote sent for its clocks.
type Domain struct {
	*hooking.HookableBase

	name     string
	resource rpm.Resource

	lock   sync.Mutex
	clocks []*Clock
	byName map[string]int
}

// NewDomain creates a Domain that votes through resource.
func NewDomain(name string, resource rpm.Resource) *Domain {
	if resource == nil {
		panic("rpm clock domain " + name + " has no resource")
	}

	return &Domain{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		resource:     resource,
		byName:       make(map[string]int),
	}
}

// Name returns the name of the domain.
func (d *Domain) Name() string { return d.name }

// AddPeers creates two handles for one RPM clock and links them as peers.
func (d *Domain) AddPeers(a, b Desc) (*Clock, *Clock) {
	d.lock.Lock()
	defer d.lock.Unlock()

	ia := d.add(a)
	ib := d.add(b)
	d.clocks[ia].peer = ib
	d.clocks[ib].peer = ia

	return d.clocks[ia], d.clocks[ib]
}

func (d *Domain) add(desc Desc) int {
	if desc.Name == "" {
		panic("rpm clock has no name")
	}

	if _, found := d.byName[desc.Name]; found {
		panic(fmt.Sprintf("rpm clock %s already exists", desc.Name))
	}

	c := &Clock{
		domain:     d,
		index:      len(d.clocks),
		name:       desc.Name,
		activeID:   desc.ActiveID,
		statusID:   desc.StatusID,
		branch:     desc.Branch,
		activeOnly: desc.ActiveOnly,
	}

	if desc.RateHz != 0 {
		c.lastSetKHz = hzToKHz(desc.RateHz)
		if !c.activeOnly {
			c.lastSetSleepKHz = c.lastSetKHz
		}
	}

	c.clk = clock.New(c.name, c.Ops())
	c.clk.PublishRate(desc.RateHz)

	d.clocks = append(d.clocks, c)
	d.byName[c.name] = c.index

	return c.index
}

// Clocks returns the handles of the domain in creation order.
func (d *Domain) Clocks() []*Clock {
	d.lock.Lock()
	defer d.lock.Unlock()

	return append([]*Clock(nil), d.clocks...)
}

// Lookup finds a handle by name.
func (d *Domain) Lookup(name string) (*Clock, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}

	return d.clocks[i], true
}

// Register adds the clock object of every handle to the registry.
func (d *Domain) Register(r *clock.Registry) error {
	for _, c := range d.Clocks() {
		if err := r.Register(c.clk); err != nil {
			return err
		}
	}

	return nil
}

// vote sends one set request. The caller holds d.lock.
func (d *Domain) vote(c *Clock, ctx rpm.Context, value uint64) error {
	err := d.resource.Set(ctx, c.activeID, value)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosVote,
		Item: VoteDetail{
			Clock: c.name,
			Ctx:   ctx,
			ID:    c.activeID,
			Value: value,
			Err:   err,
		},
	})

	return err
}

// status sends one status query. The caller holds d.lock.
func (d *Domain) status(c *Clock) (uint64, error) {
	value, err := d.resource.GetStatus(c.statusID)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosStatus,
		Item: StatusDetail{
			Clock: c.name,
			ID:    c.statusID,
			Value: value,
			Err:   err,
		},
	})

	return value, err
}

func hzToKHz(hz uint64) uint64 {
	khz := hz / 1000
	if hz%1000 != 0 {
		khz++
	}

	return khz
}
