package rpmclk

import "github.com/sarchlab/rpmclk/rpm"

// Builder creates the two peer handles of an RPM clock.
type Builder struct {
	domain   *Domain
	activeID rpm.ResourceID
	statusID rpm.ResourceID
	branch   bool
	rateHz   uint64
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithDomain sets the domain the handles belong to.
func (b Builder) WithDomain(d *Domain) Builder {
	b.domain = d
	return b
}

// WithActiveID sets the resource id used for votes.
func (b Builder) WithActiveID(id rpm.ResourceID) Builder {
	b.activeID = id
	return b
}

// WithStatusID sets the resource id used for status queries.
func (b Builder) WithStatusID(id rpm.ResourceID) Builder {
	b.statusID = id
	return b
}

// WithBranch makes the clock an on/off gate.
func (b Builder) WithBranch() Builder {
	b.branch = true
	return b
}

// WithRate sets the rate, in Hz, the handles start with. Branch clocks use it
// as their fixed rate.
func (b Builder) WithRate(rateHz uint64) Builder {
	b.rateHz = rateHz
	return b
}

// Build creates a handle named name and its active-only peer named
// activeOnlyName.
func (b Builder) Build(name, activeOnlyName string) (*Clock, *Clock) {
	if b.domain == nil {
		panic("rpm clock " + name + " is built without a domain")
	}

	desc := Desc{
		Name:     name,
		ActiveID: b.activeID,
		StatusID: b.statusID,
		Branch:   b.branch,
		RateHz:   b.rateHz,
	}

	activeOnly := desc
	activeOnly.Name = activeOnlyName
	activeOnly.ActiveOnly = true

	return b.domain.AddPeers(desc, activeOnly)
}
