// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package inspect_test

import (
	"errors"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/accessutils/memory"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/decodeutils/bar"
	"github.com/ironcore-dev/pci-utils/decodeutils/capability"
	"github.com/ironcore-dev/pci-utils/decodeutils/class"
	"github.com/ironcore-dev/pci-utils/eventutils/recorder"
	"github.com/ironcore-dev/pci-utils/inspectutils/inspect"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	log "sigs.k8s.io/controller-runtime/pkg/log"
)

var errBroken = errors.New("broken accessor")

// brokenAccessor fails every access to one function.
type brokenAccessor struct {
	access.Accessor
	broken address.Address
}

func (b brokenAccessor) Read(addr address.Address, reg address.Register, width access.Width) (uint64, error) {
	if addr == b.broken {
		return 0, errBroken
	}
	return b.Accessor.Read(addr, reg, width)
}

var _ = Describe("Inspector", func() {
	var (
		space *memory.Space
		nic   address.Address
		store *recorder.Store
	)

	poke := func(reg address.Register, width access.Width, v uint64) {
		GinkgoHelper()
		Expect(space.Poke(nic, reg, width, v)).To(Succeed())
	}

	writable := func(reg address.Register, mask uint32) {
		GinkgoHelper()
		Expect(space.SetWritable(nic, reg, access.Width32, uint64(mask))).To(Succeed())
	}

	BeforeEach(func(ctx SpecContext) {
		space = memory.New()
		nic = address.MustNew(0, 0x5e, 0, 0)
		space.Add(nic)
		store = recorder.NewStore(log.FromContext(ctx), recorder.StoreOptions{})

		By("setting up an ethernet endpoint")
		poke(address.RegVendorID, access.Width16, 0x8086)
		poke(address.RegDeviceID, access.Width16, 0x1572)
		poke(address.RegCommand, access.Width16, 0x0006)
		poke(address.RegStatus, access.Width16, 0x0010)
		poke(address.RegRevision, access.Width32, 0x02000001)
		poke(address.RegCapabilityList, access.Width8, 0x40)

		By("chaining power management, msi and pci express")
		poke(0x40, access.Width16, 0x5001)
		poke(0x42, access.Width16, 0x0003)
		poke(0x50, access.Width16, 0x7005)
		poke(0x52, access.Width16, 0x0086)
		poke(0x70, access.Width16, 0x0010)
		poke(0x72, access.Width16, 0x0002)

		By("chaining aer and device serial number")
		poke(0x100, access.Width32, 0x14010001)
		poke(0x140, access.Width32, 0x00010003)
		poke(0x144, access.Width32, 0x44332211)
		poke(0x148, access.Width32, 0x88776655)

		By("setting up the bars")
		poke(address.BAR(0), access.Width32, 0xf000000c)
		writable(address.BAR(0), 0xffffc000)
		poke(address.BAR(1), access.Width32, 0x1)
		writable(address.BAR(1), 0xffffffff)
		poke(address.BAR(2), access.Width32, 0xe001)
		writable(address.BAR(2), 0xffe0)
		for slot := 3; slot < 6; slot++ {
			writable(address.BAR(slot), 0)
		}
	})

	It("should report absent functions", func(ctx SpecContext) {
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{})

		fn, ok, err := inspector.Inspect(address.MustNew(0, 0x5e, 0, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(fn).To(BeNil())
	})

	It("should decode a pci express endpoint", func(ctx SpecContext) {
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{})

		fn, ok, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		Expect(fn.Header.VendorID).To(Equal(uint16(0x8086)))
		Expect(fn.Class.Type).To(Equal(class.EthernetController))
		Expect(fn.Warnings).To(BeEmpty())

		By("collecting the legacy capabilities")
		Expect(fn.Capabilities).To(HaveLen(3))
		Expect(fn.Capabilities[0]).To(BeAssignableToTypeOf(capability.PowerManagement{}))
		Expect(fn.Capabilities[1]).To(BeAssignableToTypeOf(capability.MSI{}))
		pcie, ok := fn.PCIExpress()
		Expect(ok).To(BeTrue())
		Expect(pcie.Offset).To(Equal(address.Register(0x70)))

		By("collecting the extended capabilities")
		Expect(fn.ExtendedCapabilities).To(HaveLen(2))
		Expect(fn.ExtendedCapabilities[0].Base().ID).To(Equal(capability.ExtIDAER))
		Expect(fn.ExtendedCapabilities[1]).To(Equal(capability.DeviceSerialNumber{
			ExtendedRecord: capability.ExtendedRecord{
				Address: nic,
				ID:      capability.ExtIDDeviceSerialNumber,
				Version: 1,
				Offset:  0x140,
			},
			Serial: 0x8877665544332211,
		}))

		By("collecting the bars without sizes")
		Expect(fn.BARs).To(HaveLen(5))
		Expect(fn.BARs[0].Bar).To(Equal(bar.Memory64{Index: 0, Address: 0x1f0000000, IsPrefetchable: true}))
		Expect(fn.BARs[1].Bar).To(Equal(bar.IO{Index: 2, Address: 0xe000}))
		for _, b := range fn.BARs {
			Expect(b.Size).To(BeZero())
		}
	})

	It("should size the bars and restore them", func(ctx SpecContext) {
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{SizeBARs: true})

		fn, _, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(fn.BARs[0].Size).To(Equal(uint64(0x4000)))
		Expect(fn.BARs[1].Size).To(Equal(uint64(0x20)))
		Expect(fn.BARs[2].Size).To(BeZero())
		Expect(fn.Warnings).To(BeEmpty())

		Expect(access.Read32(space, nic, address.BAR(0))).To(Equal(uint32(0xf000000c)))
		Expect(access.Read32(space, nic, address.BAR(1))).To(Equal(uint32(0x1)))
		Expect(access.Read32(space, nic, address.BAR(2))).To(Equal(uint32(0xe001)))
	})

	It("should skip the extended list on request", func(ctx SpecContext) {
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{SkipExtended: true})

		fn, _, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(fn.Capabilities).To(HaveLen(3))
		Expect(fn.ExtendedCapabilities).To(BeEmpty())
	})

	It("should not walk the extended list of conventional functions", func(ctx SpecContext) {
		poke(0x50, access.Width16, 0x0005)
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{})

		fn, _, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(fn.Capabilities).To(HaveLen(2))
		Expect(fn.ExtendedCapabilities).To(BeEmpty())
	})

	It("should record malformed capability lists as warnings", func(ctx SpecContext) {
		poke(0x70, access.Width16, 0x4010)
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{Recorder: store})

		fn, ok, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(fn.Capabilities).To(HaveLen(3))
		Expect(fn.Warnings).To(ConsistOf(HavePrefix(inspect.ReasonMalformedCapabilityList)))

		events := store.ListEventsFor(nic)
		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal(recorder.EventTypeWarning))
		Expect(events[0].Reason).To(Equal(inspect.ReasonMalformedCapabilityList))
	})

	It("should record undecodable bars as warnings", func(ctx SpecContext) {
		poke(address.BAR(3), access.Width32, 0xd0000002)
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{Recorder: store})

		fn, _, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(fn.BARs).To(HaveLen(4))
		Expect(fn.Warnings).To(ConsistOf(ContainSubstring(bar.ErrReservedBarType.Error())))
		Expect(store.ListEvents()).To(ConsistOf(HaveField("Reason", inspect.ReasonInvalidBAR)))
	})

	It("should inspect all functions and join errors", func(ctx SpecContext) {
		gpu := address.MustNew(0, 0x3b, 0, 0)
		space.Add(gpu)
		Expect(space.Poke(gpu, address.RegVendorID, access.Width16, 0x10de)).To(Succeed())
		broken := address.MustNew(0, 0x3c, 0, 0)
		absent := address.MustNew(0, 0x3d, 0, 0)

		acc := brokenAccessor{Accessor: space, broken: broken}
		inspector := inspect.NewInspector(log.FromContext(ctx), acc, inspect.Options{})

		fns, err := inspector.InspectAll([]address.Address{gpu, broken, absent, nic})
		Expect(err).To(MatchError(errBroken))
		Expect(fns).To(HaveLen(2))
		Expect(fns[0].Address).To(Equal(gpu))
		Expect(fns[1].Address).To(Equal(nic))
	})

	It("should render a report", func(ctx SpecContext) {
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{SizeBARs: true})
		fn, _, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())

		report := fn.Report()
		Expect(report.Address).To(Equal("0000:5e:00.0"))
		Expect(report.VendorID).To(Equal("8086"))
		Expect(report.ClassCode).To(Equal("020000"))
		Expect(report.Capabilities).To(HaveLen(3))
		Expect(report.Capabilities[2].Name).To(Equal(capability.Name(capability.IDPCIExpress)))
		Expect(report.ExtendedCapabilities[1].Details).To(Equal("88-77-66-55-44-33-22-11"))
		Expect(report.BARs[0]).To(Equal(inspect.BARReport{
			Slot:         0,
			Kind:         "mem64",
			Base:         "0x1f0000000",
			Prefetchable: true,
			Size:         "16Ki",
		}))

		text := report.String()
		Expect(text).To(HavePrefix("0000:5e:00.0 "))
		Expect(text).To(ContainSubstring("BAR2: io at 0xe000 [size=32]"))
		Expect(text).To(ContainSubstring("[0x140] Device Serial Number"))
	})

	It("should leave unimplemented bars out of the report", func(ctx SpecContext) {
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{})
		fn, _, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(fn.BARs).To(HaveLen(5))

		report := fn.Report()
		Expect(report.BARs).To(HaveLen(2))
		Expect(report.BARs[0].Slot).To(Equal(0))
		Expect(report.BARs[1].Slot).To(Equal(2))
		Expect(report.String()).NotTo(ContainSubstring("BAR3"))

		By("keeping sized bars without an address")
		poke(address.BAR(3), access.Width32, 0)
		writable(address.BAR(3), 0xfffff000)
		inspector = inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{SizeBARs: true})
		fn, _, err = inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(fn.Report().String()).To(ContainSubstring("BAR3: mem32 at 0x0 [size=4Ki]"))
	})

	It("should keep functions whose extended list runs past the config space", func(ctx SpecContext) {
		poke(0x140, access.Width32, 0xff010003)
		poke(0xff0, access.Width32, 0x00010001)
		inspector := inspect.NewInspector(log.FromContext(ctx), space, inspect.Options{Recorder: store})

		fn, ok, err := inspector.Inspect(nic)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(fn.Capabilities).To(HaveLen(3))
		Expect(fn.ExtendedCapabilities).To(HaveLen(2))
		Expect(fn.BARs).To(HaveLen(5))
		Expect(fn.Warnings).To(ConsistOf(HavePrefix(inspect.ReasonMalformedCapabilityList)))
		Expect(store.ListEventsFor(nic)).To(ConsistOf(HaveField("Reason", inspect.ReasonMalformedCapabilityList)))
	})
})
