package rpm_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rpmclk/rpm"
)

const (
	opSet    uint32 = 1
	opStatus uint32 = 2
)

var order = binary.LittleEndian

type request struct {
	op, ctx, id, value uint32
}

// fakeChannel answers every request frame with a canned response.
type fakeChannel struct {
	requests []request
	rsp      bytes.Buffer
	status   int32
	value    uint32
	silent   bool
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	f.requests = append(f.requests, request{
		op:    order.Uint32(p[0:]),
		ctx:   order.Uint32(p[4:]),
		id:    order.Uint32(p[8:]),
		value: order.Uint32(p[12:]),
	})

	if !f.silent {
		var rsp [8]byte
		order.PutUint32(rsp[0:], uint32(f.status))
		order.PutUint32(rsp[4:], f.value)
		f.rsp.Write(rsp[:])
	}

	return len(p), nil
}

func (f *fakeChannel) Read(p []byte) (int, error) {
	return f.rsp.Read(p)
}

// pipeChannel is a channel whose RPM end stays open but never answers.
type pipeChannel struct {
	requests  *os.File
	responses *os.File
}

func (c *pipeChannel) Write(p []byte) (int, error) { return c.requests.Write(p) }

func (c *pipeChannel) Read(p []byte) (int, error) { return c.responses.Read(p) }

func (c *pipeChannel) SetDeadline(t time.Time) error {
	if err := c.requests.SetDeadline(t); err != nil {
		return err
	}

	return c.responses.SetDeadline(t)
}

var _ = Describe("RPMsg", func() {
	var (
		ch *fakeChannel
		r  *rpm.RPMsg
	)

	BeforeEach(func() {
		ch = &fakeChannel{}
		r = rpm.NewRPMsg(ch)
	})

	It("should encode set requests", func() {
		Expect(r.Set(rpm.SleepSet, 12, 19200)).To(Succeed())

		Expect(ch.requests).To(Equal([]request{
			{op: opSet, ctx: uint32(rpm.SleepSet), id: 12, value: 19200},
		}))
	})

	It("should decode status responses", func() {
		ch.value = 5000

		v, err := r.GetStatus(40)

		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(5000)))
		Expect(ch.requests[0].op).To(Equal(opStatus))
		Expect(ch.requests[0].id).To(Equal(uint32(40)))
	})

	It("should report rejected requests", func() {
		ch.status = -22

		err := r.Set(rpm.ActiveSet, 1, 1)

		Expect(errors.Is(err, rpm.ErrRejected)).To(BeTrue())
	})

	It("should report missing responses", func() {
		ch.silent = true

		_, err := r.GetStatus(1)

		Expect(errors.Is(err, rpm.ErrNoResponse)).To(BeTrue())
	})

	It("should refuse values wider than the wire format", func() {
		err := r.Set(rpm.ActiveSet, 1, 1<<33)

		Expect(err).To(HaveOccurred())
		Expect(ch.requests).To(BeEmpty())
	})

	It("should ignore Close on channels without a closer", func() {
		Expect(r.Close()).To(Succeed())
	})

	Context("when the RPM stays silent", func() {
		var (
			files []*os.File
			pipe  *pipeChannel
		)

		BeforeEach(func() {
			reqR, reqW, err := os.Pipe()
			Expect(err).NotTo(HaveOccurred())
			rspR, rspW, err := os.Pipe()
			Expect(err).NotTo(HaveOccurred())

			files = []*os.File{reqR, reqW, rspR, rspW}
			pipe = &pipeChannel{requests: reqW, responses: rspR}
		})

		AfterEach(func() {
			for _, f := range files {
				f.Close()
			}
		})

		It("should time out instead of blocking", func() {
			r = rpm.NewRPMsg(pipe).WithTimeout(50 * time.Millisecond)

			done := make(chan error, 1)
			go func() { done <- r.Set(rpm.ActiveSet, 3, 1000) }()

			var err error
			Eventually(done, 2*time.Second).Should(Receive(&err))
			Expect(errors.Is(err, rpm.ErrNoResponse)).To(BeTrue())

			var remoteErr *rpm.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.Op).To(Equal("set"))
		})

		It("should time out status queries", func() {
			r = rpm.NewRPMsg(pipe).WithTimeout(50 * time.Millisecond)

			done := make(chan error, 1)
			go func() {
				_, err := r.GetStatus(4)
				done <- err
			}()

			var err error
			Eventually(done, 2*time.Second).Should(Receive(&err))
			Expect(errors.Is(err, rpm.ErrNoResponse)).To(BeTrue())
		})
	})
})
