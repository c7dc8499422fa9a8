package rpm

import (
	"sort"
	"sync"
)

// BootMaster is the name of the master that holds firmware boot votes.
const BootMaster = "boot"

type voteKey struct {
	ctx Context
	id  ResourceID
}

type failure struct {
	op  string
	ctx Context
	id  ResourceID
}

// Simulator is an in-memory model of the RPM. Every master votes through its
// own Resource view, and the value the RPM applies to a resource in a context
// is the maximum over all masters.
type Simulator struct {
	lock     sync.Mutex
	votes    map[string]map[voteKey]uint64
	statusOf map[ResourceID]ResourceID
	failures []failure
	setCount int
}

// NewSimulator creates a Simulator with no masters.
func NewSimulator() *Simulator {
	return &Simulator{
		votes:    make(map[string]map[voteKey]uint64),
		statusOf: make(map[ResourceID]ResourceID),
	}
}

// MapStatus makes status queries on statusID report the active-set
// aggregate of activeID.
func (s *Simulator) MapStatus(statusID, activeID ResourceID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.statusOf[statusID] = activeID
}

// SetBootValue records a firmware vote, in kHz, for both contexts.
func (s *Simulator) SetBootValue(activeID ResourceID, value uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.write(BootMaster, ActiveSet, activeID, value)
	s.write(BootMaster, SleepSet, activeID, value)
}

// InjectFailure makes the next matching request fail with ErrRejected. Op is
// "set" or "status"; ctx is ignored for status requests.
func (s *Simulator) InjectFailure(op string, ctx Context, id ResourceID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failures = append(s.failures, failure{op: op, ctx: ctx, id: id})
}

// Master returns the Resource a named master votes through.
func (s *Simulator) Master(name string) Resource {
	return &masterPort{sim: s, name: name}
}

// Vote returns the last value a master voted for a resource.
func (s *Simulator) Vote(master string, ctx Context, id ResourceID) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.votes[master][voteKey{ctx, id}]
}

// Aggregate returns the value applied to the resource in the context.
func (s *Simulator) Aggregate(ctx Context, id ResourceID) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.aggregate(ctx, id)
}

// SetCount returns how many set requests were accepted.
func (s *Simulator) SetCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.setCount
}

// Masters lists the masters that have voted, sorted by name.
func (s *Simulator) Masters() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	names := make([]string, 0, len(s.votes))
	for name := range s.votes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (s *Simulator) aggregate(ctx Context, id ResourceID) uint64 {
	var agg uint64
	for _, v := range s.votes {
		if v[voteKey{ctx, id}] > agg {
			agg = v[voteKey{ctx, id}]
		}
	}

	return agg
}

func (s *Simulator) write(master string, ctx Context, id ResourceID, value uint64) {
	v, ok := s.votes[master]
	if !ok {
		v = make(map[voteKey]uint64)
		s.votes[master] = v
	}

	v[voteKey{ctx, id}] = value
}

func (s *Simulator) shouldFail(op string, ctx Context, id ResourceID) bool {
	for i, f := range s.failures {
		if f.op != op || f.id != id {
			continue
		}

		if op == "set" && f.ctx != ctx {
			continue
		}

		s.failures = append(s.failures[:i], s.failures[i+1:]...)

		return true
	}

	return false
}

type masterPort struct {
	sim  *Simulator
	name string
}

func (p *masterPort) Set(ctx Context, id ResourceID, value uint64) error {
	s := p.sim

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.shouldFail("set", ctx, id) {
		return &RemoteError{Op: "set", Ctx: ctx, ID: id, Err: ErrRejected}
	}

	s.write(p.name, ctx, id, value)
	s.setCount++

	return nil
}

func (p *masterPort) GetStatus(id ResourceID) (uint64, error) {
	s := p.sim

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.shouldFail("status", ActiveSet, id) {
		return 0, &RemoteError{Op: "status", ID: id, Err: ErrRejected}
	}

	activeID, ok := s.statusOf[id]
	if !ok {
		activeID = id
	}

	return s.aggregate(ActiveSet, activeID), nil
}
