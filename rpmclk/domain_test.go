package rpmclk

import (
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rpmclk/clock"
	"github.com/sarchlab/rpmclk/rpm"
)

var _ = Describe("Domain", func() {
	var (
		sim    *rpm.Simulator
		domain *Domain
	)

	BeforeEach(func() {
		sim = rpm.NewSimulator()
		sim.MapStatus(statusID, activeID)
		domain = NewDomain("apps", sim.Master("apps"))
	})

	It("should refuse duplicate names", func() {
		domain.AddPeers(Desc{Name: "a"}, Desc{Name: "b"})

		Expect(func() {
			domain.AddPeers(Desc{Name: "a"}, Desc{Name: "c"})
		}).To(Panic())
		Expect(func() {
			domain.AddPeers(Desc{Name: ""}, Desc{Name: "d"})
		}).To(Panic())
	})

	It("should refuse a nil resource", func() {
		Expect(func() { NewDomain("x", nil) }).To(Panic())
	})

	It("should refuse building without a domain", func() {
		Expect(func() { MakeBuilder().Build("a", "a_a") }).To(Panic())
	})

	It("should find clocks by name and register them", func() {
		normal, aOnly := MakeBuilder().
			WithDomain(domain).
			WithActiveID(activeID).
			WithStatusID(statusID).
			Build("afab_clk", "afab_a_clk")

		found, ok := domain.Lookup("afab_a_clk")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(aOnly))
		_, ok = domain.Lookup("none")
		Expect(ok).To(BeFalse())
		Expect(domain.Clocks()).To(Equal([]*Clock{normal, aOnly}))
		Expect(normal.State().ActiveOnly).To(BeFalse())
		Expect(aOnly.State().ActiveOnly).To(BeTrue())

		reg := clock.NewRegistry()
		Expect(domain.Register(reg)).To(Succeed())
		c, ok := reg.Lookup("afab_clk")
		Expect(ok).To(BeTrue())
		Expect(c).To(BeIdenticalTo(normal.Clk()))
		Expect(domain.Register(reg)).NotTo(Succeed())
	})

	It("should see rates changed by other masters", func() {
		normal, _ := MakeBuilder().
			WithDomain(domain).
			WithActiveID(activeID).
			WithStatusID(statusID).
			Build("afab_clk", "afab_a_clk")

		Expect(normal.SetRate(100_000_000)).To(Succeed())
		Expect(normal.Clk().Enable()).To(Succeed())
		Expect(sim.Master("modem").Set(rpm.ActiveSet, activeID, 200_000)).
			To(Succeed())

		rate, err := normal.Clk().GetRate()
		Expect(err).NotTo(HaveOccurred())
		Expect(rate).To(Equal(uint64(200_000_000)))
		Expect(normal.State().LastSetKHz).To(Equal(uint64(100_000)))

		enabled, err := normal.Clk().IsEnabled()
		Expect(err).NotTo(HaveOccurred())
		Expect(enabled).To(BeTrue())
	})

	It("should hand the boot rate over and keep it alive through the peer", func() {
		Expect(sim.Master("apps").Set(rpm.ActiveSet, activeID, 64_000)).
			To(Succeed())
		normal, aOnly := MakeBuilder().
			WithDomain(domain).
			WithActiveID(activeID).
			WithStatusID(statusID).
			Build("afab_clk", "afab_a_clk")
		reg := clock.NewRegistry()
		Expect(domain.Register(reg)).To(Succeed())

		states := reg.HandoffAll()

		Expect(states).To(HaveLen(2))
		Expect(states["afab_clk"]).To(Equal(clock.HandoffEnabled))
		Expect(normal.Clk().Rate()).To(Equal(uint64(64_000_000)))

		Expect(normal.Enable()).To(Succeed())
		Expect(aOnly.Enable()).To(Succeed())
		Expect(aOnly.SetRate(128_000_000)).To(Succeed())
		Expect(sim.Aggregate(rpm.ActiveSet, activeID)).To(Equal(uint64(128_000)))
		Expect(sim.Aggregate(rpm.SleepSet, activeID)).To(Equal(uint64(64_000)))

		aOnly.Disable()
		Expect(sim.Aggregate(rpm.ActiveSet, activeID)).To(Equal(uint64(64_000)))
		Expect(sim.Aggregate(rpm.SleepSet, activeID)).To(Equal(uint64(64_000)))
	})

	It("should vote the maximum of both peers under concurrent updates", func() {
		a, b := domain.AddPeers(
			Desc{Name: "a", ActiveID: activeID, StatusID: statusID},
			Desc{Name: "b", ActiveID: activeID, StatusID: statusID},
		)
		Expect(a.SetRate(1000)).To(Succeed())
		Expect(b.SetRate(1000)).To(Succeed())
		Expect(a.Enable()).To(Succeed())
		Expect(b.Enable()).To(Succeed())

		var wg sync.WaitGroup
		for i, c := range []*Clock{a, b, a, b} {
			wg.Add(1)
			go func(seed int64, c *Clock) {
				defer GinkgoRecover()
				defer wg.Done()

				r := rand.New(rand.NewSource(seed))
				for n := 0; n < 200; n++ {
					rate := uint64(r.Intn(1000)+1) * 1000
					Expect(c.SetRate(rate)).To(Succeed())
				}
			}(int64(i), c)
		}
		wg.Wait()

		want := max(a.State().LastSetKHz, b.State().LastSetKHz)
		Expect(sim.Aggregate(rpm.ActiveSet, activeID)).To(Equal(want))
		Expect(sim.Aggregate(rpm.SleepSet, activeID)).To(Equal(want))
	})

	It("should never starve the peer under concurrent enable and disable", func() {
		a, b := domain.AddPeers(
			Desc{Name: "a", ActiveID: activeID, StatusID: statusID},
			Desc{Name: "b", ActiveID: activeID, StatusID: statusID},
		)
		Expect(a.SetRate(3_000_000)).To(Succeed())
		Expect(b.SetRate(2_000_000)).To(Succeed())
		Expect(b.Enable()).To(Succeed())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()

			for n := 0; n < 200; n++ {
				Expect(a.Enable()).To(Succeed())
				a.Disable()
			}
		}()
		go func() {
			defer GinkgoRecover()
			defer wg.Done()

			for n := 0; n < 200; n++ {
				Expect(b.SetRate(uint64(n%2+1) * 1_000_000)).To(Succeed())
			}
		}()
		wg.Wait()

		Expect(sim.Aggregate(rpm.ActiveSet, activeID)).
			To(Equal(b.State().LastSetKHz))
	})
})
