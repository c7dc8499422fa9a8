// Package rpm defines how the local processor talks to the resource power
// manager (RPM), the remote processor that owns shared clocks and arbitrates
// the votes of every master on the SoC.
package rpm

import (
	"errors"
	"fmt"
)

// Context selects which operating-state vote is written.
type Context int

// The two voting channels supported by the RPM.
const (
	ActiveSet Context = iota
	SleepSet
)

func (c Context) String() string {
	switch c {
	case ActiveSet:
		return "active"
	case SleepSet:
		return "sleep"
	default:
		return fmt.Sprintf("context(%d)", int(c))
	}
}

// ResourceID identifies a resource on the RPM.
type ResourceID uint32

// Resource is the transport to the RPM. Implementations must not sleep;
// callers may hold locks that forbid it.
type Resource interface {
	// Set writes the local vote for the resource in the given context.
	Set(ctx Context, id ResourceID, value uint64) error

	// GetStatus reads the aggregated value the RPM applied to the resource.
	GetStatus(id ResourceID) (uint64, error)
}

var (
	// ErrNoResponse means the RPM did not answer a request.
	ErrNoResponse = errors.New("rpm: no response")

	// ErrRejected means the RPM answered with a failure status.
	ErrRejected = errors.New("rpm: request rejected")
)

// RemoteError reports a failed exchange with the RPM.
type RemoteError struct {
	Op  string
	Ctx Context
	ID  ResourceID
	Err error
}

func (e *RemoteError) Error() string {
	if e.Op == "set" {
		return fmt.Sprintf("rpm %s %s id=%d: %v", e.Op, e.Ctx, e.ID, e.Err)
	}

	return fmt.Sprintf("rpm %s id=%d: %v", e.Op, e.ID, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
