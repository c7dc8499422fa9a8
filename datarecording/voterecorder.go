package datarecording

import (
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/rpmclk/hooking"
	"github.com/sarchlab/rpmclk/rpmclk"
)

// ExchangeTable is the table that holds the recorded RPM exchanges.
const ExchangeTable = "rpm_exchanges"

// ExchangeEntry is one request sent to the RPM.
type ExchangeEntry struct {
	Seq        uint64
	ID         string
	Domain     string
	Clock      string
	Op         string
	Context    string
	ResourceID uint32
	Value      uint64
	Failed     bool
	Error      string
}

// VoteRecorder is a hook that records the exchanges of a clock domain. It
// only buffers in memory while hooked, so it is safe to run under the domain
// lock. Entries reach the database on Flush.
type VoteRecorder struct {
	recorder DataRecorder

	lock    sync.Mutex
	pending []ExchangeEntry
	seq     uint64
}

// NewVoteRecorder creates the exchange table and returns a recorder.
func NewVoteRecorder(recorder DataRecorder) *VoteRecorder {
	recorder.CreateTable(ExchangeTable, ExchangeEntry{})

	return &VoteRecorder{recorder: recorder}
}

// Func records a vote or status exchange.
func (r *VoteRecorder) Func(ctx hooking.HookCtx) {
	var e ExchangeEntry

	switch item := ctx.Item.(type) {
	case rpmclk.VoteDetail:
		e = ExchangeEntry{
			Op:         "set",
			Clock:      item.Clock,
			Context:    item.Ctx.String(),
			ResourceID: uint32(item.ID),
			Value:      item.Value,
		}
		setError(&e, item.Err)
	case rpmclk.StatusDetail:
		e = ExchangeEntry{
			Op:         "status",
			Clock:      item.Clock,
			ResourceID: uint32(item.ID),
			Value:      item.Value,
		}
		setError(&e, item.Err)
	default:
		return
	}

	if ctx.Domain != nil {
		e.Domain = ctx.Domain.Name()
	}
	e.ID = xid.New().String()

	r.lock.Lock()
	defer r.lock.Unlock()

	r.seq++
	e.Seq = r.seq
	r.pending = append(r.pending, e)
}

func setError(e *ExchangeEntry, err error) {
	if err != nil {
		e.Failed = true
		e.Error = err.Error()
	}
}

// Pending returns the number of entries not flushed yet.
func (r *VoteRecorder) Pending() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.pending)
}

// Flush hands the pending entries to the recorder and flushes it.
func (r *VoteRecorder) Flush() {
	r.lock.Lock()
	pending := r.pending
	r.pending = nil
	r.lock.Unlock()

	for _, e := range pending {
		r.recorder.InsertData(ExchangeTable, e)
	}

	r.recorder.Flush()
}
