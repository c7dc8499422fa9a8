package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rpmclk/rpm"
	"github.com/sarchlab/rpmclk/rpmclk"
)

var _ = Describe("Monitor", func() {
	var (
		sim    *rpm.Simulator
		m      *Monitor
		normal *rpmclk.Clock
	)

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		m.Router().ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		sim = rpm.NewSimulator()
		sim.MapStatus(2, 1)
		domain := rpmclk.NewDomain("apps", sim.Master("apps"))
		normal, _ = rpmclk.MakeBuilder().
			WithDomain(domain).
			WithActiveID(1).
			WithStatusID(2).
			Build("afab_clk", "afab_a_clk")

		m = NewMonitor().WithPortNumber(80)
		m.RegisterDomain(domain)
	})

	It("should fall back to a random port for privileged ports", func() {
		Expect(m.portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(3000).portNumber).To(Equal(3000))
	})

	It("should list clocks", func() {
		Expect(normal.SetRate(1_000_000)).To(Succeed())

		rec := do(http.MethodGet, "/api/clocks")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var clocks []clockRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &clocks)).To(Succeed())
		Expect(clocks).To(HaveLen(2))
		Expect(clocks[0]).To(Equal(clockRsp{
			Domain:          "apps",
			Name:            "afab_clk",
			Peer:            "afab_a_clk",
			LastSetKHz:      1000,
			LastSetSleepKHz: 1000,
		}))
		Expect(clocks[1].ActiveOnly).To(BeTrue())
	})

	It("should serialize a clock's state", func() {
		rec := do(http.MethodGet, "/api/clock/afab_clk")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).NotTo(BeZero())
	})

	It("should report unknown clocks", func() {
		rec := do(http.MethodGet, "/api/clock/none/rate")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should drive a clock and report the RPM rate", func() {
		Expect(do(http.MethodPost, "/api/clock/afab_clk/rate/2000000").Code).
			To(Equal(http.StatusOK))
		Expect(do(http.MethodPost, "/api/clock/afab_clk/enable").Code).
			To(Equal(http.StatusOK))
		Expect(sim.Aggregate(rpm.ActiveSet, 1)).To(Equal(uint64(2000)))

		rec := do(http.MethodGet, "/api/clock/afab_clk/rate")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var rsp rateRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.RateHz).To(Equal(uint64(2_000_000)))

		Expect(do(http.MethodPost, "/api/clock/afab_clk/disable").Code).
			To(Equal(http.StatusOK))
		Expect(sim.Aggregate(rpm.ActiveSet, 1)).To(BeZero())
		Expect(normal.State().Enabled).To(BeFalse())
	})

	It("should report RPM failures", func() {
		sim.InjectFailure("status", rpm.ActiveSet, 2)
		Expect(do(http.MethodGet, "/api/clock/afab_clk/rate").Code).
			To(Equal(http.StatusBadGateway))

		Expect(normal.SetRate(1_000_000)).To(Succeed())
		sim.InjectFailure("set", rpm.ActiveSet, 1)
		Expect(do(http.MethodPost, "/api/clock/afab_clk/enable").Code).
			To(Equal(http.StatusBadGateway))
	})

	It("should reject rate changes with a GET", func() {
		rec := do(http.MethodGet, "/api/clock/afab_clk/rate/10")

		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should report process resources", func() {
		rec := do(http.MethodGet, "/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).NotTo(BeZero())
	})
})
