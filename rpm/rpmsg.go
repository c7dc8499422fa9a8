package rpm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Wire layout of the RPMsg clock channel. All fields are little endian.
const (
	requestSize  = 16
	responseSize = 8

	opSet    uint32 = 1
	opStatus uint32 = 2

	statusOK int32 = 0
)

// DefaultTimeout is how long RPMsg waits for the RPM to answer a request.
const DefaultTimeout = 100 * time.Millisecond

var order = binary.LittleEndian

type deadliner interface {
	SetDeadline(t time.Time) error
}

// RPMsg is a Resource that exchanges fixed-size frames with the RPM over a
// remote processor messaging channel. Each request gets exactly one response.
//
// Channels that support deadlines, such as files opened by OpenRPMsg, fail a
// request with ErrNoResponse when the RPM does not answer within the timeout.
type RPMsg struct {
	lock    sync.Mutex
	rw      io.ReadWriter
	timeout time.Duration
}

// NewRPMsg creates an RPMsg transport over an already open channel.
func NewRPMsg(rw io.ReadWriter) *RPMsg {
	return &RPMsg{rw: rw, timeout: DefaultTimeout}
}

// WithTimeout sets how long a request may wait for its response.
func (r *RPMsg) WithTimeout(d time.Duration) *RPMsg {
	r.timeout = d
	return r
}

// OpenRPMsg opens a remoteproc message device, such as /dev/rpmsg_rpm0. The
// device is opened non-blocking so that requests can time out.
func OpenRPMsg(path string) (*RPMsg, error) {
	fd, err := unix.Open(path,
		unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("rpmsg %s: %w", path, err)
	}

	return NewRPMsg(os.NewFile(uintptr(fd), path)), nil
}

// Close closes the underlying channel if it can be closed.
func (r *RPMsg) Close() error {
	if c, ok := r.rw.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Set implements Resource.
func (r *RPMsg) Set(ctx Context, id ResourceID, value uint64) error {
	if value > math.MaxUint32 {
		return &RemoteError{
			Op: "set", Ctx: ctx, ID: id,
			Err: fmt.Errorf("value %d does not fit the wire format", value),
		}
	}

	_, err := r.roundTrip(opSet, uint32(ctx), uint32(id), uint32(value))
	if err != nil {
		return &RemoteError{Op: "set", Ctx: ctx, ID: id, Err: err}
	}

	return nil
}

// GetStatus implements Resource.
func (r *RPMsg) GetStatus(id ResourceID) (uint64, error) {
	value, err := r.roundTrip(opStatus, 0, uint32(id), 0)
	if err != nil {
		return 0, &RemoteError{Op: "status", ID: id, Err: err}
	}

	return uint64(value), nil
}

func (r *RPMsg) roundTrip(op, ctx, id, value uint32) (uint32, error) {
	var req [requestSize]byte
	order.PutUint32(req[0:], op)
	order.PutUint32(req[4:], ctx)
	order.PutUint32(req[8:], id)
	order.PutUint32(req[12:], value)

	r.lock.Lock()
	defer r.lock.Unlock()

	if d, ok := r.rw.(deadliner); ok && r.timeout > 0 {
		if err := d.SetDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}

	if _, err := r.rw.Write(req[:]); err != nil {
		return 0, noResponse(err)
	}

	var rsp [responseSize]byte
	if _, err := io.ReadFull(r.rw, rsp[:]); err != nil {
		return 0, noResponse(err)
	}

	status := int32(order.Uint32(rsp[0:]))
	if status != statusOK {
		return 0, fmt.Errorf("%w: status %d", ErrRejected, status)
	}

	return order.Uint32(rsp[4:]), nil
}

func noResponse(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrNoResponse
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrNoResponse
	default:
		return err
	}
}
