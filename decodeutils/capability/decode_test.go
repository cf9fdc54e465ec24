// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package capability_test

import (
	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/accessutils/memory"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/decodeutils/capability"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decoders", func() {
	var (
		space *memory.Space
		addr  address.Address
	)

	first := func() capability.Capability {
		GinkgoHelper()
		caps, err := collect(space, addr, 0x40)
		Expect(err).NotTo(HaveOccurred())
		Expect(caps).NotTo(BeEmpty())
		return caps[0]
	}

	firstExtended := func() capability.ExtendedCapability {
		GinkgoHelper()
		caps, err := collectExtended(space, addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(caps).NotTo(BeEmpty())
		return caps[0]
	}

	BeforeEach(func() {
		space = memory.New()
		addr = address.MustNew(0, 0x5e, 0, 0)
		space.Add(addr)
	})

	Context("MSI", func() {
		It("should decode and program a 64 bit capability with per-vector masking", func() {
			legacy(space, addr, 0x40, capability.IDMSI, 0)
			// 64 bit, per-vector masking, 8 vectors capable
			poke(space, addr, 0x42, access.Width16, 1<<8|1<<7|3<<1)

			msi := first().(capability.MSI)
			Expect(msi.Enabled).To(BeFalse())
			Expect(msi.Is64Bit).To(BeTrue())
			Expect(msi.PerVectorMasking).To(BeTrue())
			Expect(msi.MultipleMessageCapable).To(Equal(capability.Vectors8))
			Expect(msi.MultipleMessageCapable.Vectors()).To(Equal(8))

			By("enabling it with more vectors than supported")
			Expect(msi.SetMultipleMessageEnable(space, capability.Vectors32)).To(Succeed())
			Expect(msi.SetEnabled(space, true)).To(Succeed())

			msi = first().(capability.MSI)
			Expect(msi.Enabled).To(BeTrue())
			Expect(msi.MultipleMessageEnable).To(Equal(capability.Vectors8))

			By("programming a local APIC message")
			Expect(msi.SetMessageLAPIC(space, 0xfee01000, 0x41, capability.TriggerLevelAssert)).To(Succeed())
			msgAddr, data, err := msi.Message(space)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgAddr).To(Equal(uint64(0xfee01000)))
			Expect(data).To(Equal(uint16(0xc041)))

			v, err := access.Read16(space, addr, 0x4c)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint16(0xc041)))

			By("masking vectors")
			Expect(msi.SetMask(space, 0x5)).To(Succeed())
			mask, err := access.Read32(space, addr, 0x50)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(uint32(0x5)))

			poke(space, addr, 0x54, access.Width32, 0x2)
			pending, err := msi.Pending(space)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal(uint32(0x2)))

			By("disabling it")
			Expect(msi.SetEnabled(space, false)).To(Succeed())
			Expect(first().(capability.MSI).Enabled).To(BeFalse())
		})

		It("should use the 32 bit layout", func() {
			legacy(space, addr, 0x40, capability.IDMSI, 0)
			poke(space, addr, 0x42, access.Width16, 1<<8)

			msi := first().(capability.MSI)
			Expect(msi.Is64Bit).To(BeFalse())

			Expect(msi.SetMessage(space, 0x1_0000_0000, 0)).To(MatchError(capability.ErrInvalidValue))
			Expect(msi.SetMessage(space, 0xfee00000, 0x30)).To(Succeed())

			data, err := access.Read16(space, addr, 0x48)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(uint16(0x30)))

			Expect(msi.SetMask(space, 1)).To(Succeed())
			mask, err := access.Read32(space, addr, 0x4c)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(uint32(1)))
		})

		It("should refuse masking without per-vector masking", func() {
			legacy(space, addr, 0x40, capability.IDMSI, 0)
			poke(space, addr, 0x42, access.Width16, 1<<7)

			msi := first().(capability.MSI)
			_, err := msi.Mask(space)
			Expect(err).To(MatchError(capability.ErrNotSupported))
			Expect(msi.SetMask(space, 1)).To(MatchError(capability.ErrNotSupported))
			_, err = msi.Pending(space)
			Expect(err).To(MatchError(capability.ErrNotSupported))
		})
	})

	Context("MSI-X", func() {
		It("should decode the table and pba location", func() {
			legacy(space, addr, 0x40, capability.IDMSIX, 0)
			poke(space, addr, 0x42, access.Width16, 0x003f)
			poke(space, addr, 0x44, access.Width32, 0x00002004)
			poke(space, addr, 0x48, access.Width32, 0x00003004)

			msix := first().(capability.MSIX)
			Expect(msix.TableSize).To(Equal(uint16(64)))
			Expect(msix.TableBIR).To(Equal(uint8(4)))
			Expect(msix.TableOffset).To(Equal(uint32(0x2000)))
			Expect(msix.PBABIR).To(Equal(uint8(4)))
			Expect(msix.PBAOffset).To(Equal(uint32(0x3000)))
			Expect(msix.Enabled).To(BeFalse())

			Expect(msix.SetFunctionMask(space, true)).To(Succeed())
			Expect(msix.SetEnabled(space, true)).To(Succeed())

			msix = first().(capability.MSIX)
			Expect(msix.Enabled).To(BeTrue())
			Expect(msix.FunctionMask).To(BeTrue())
			Expect(msix.TableSize).To(Equal(uint16(64)))

			Expect(msix.SetFunctionMask(space, false)).To(Succeed())
			Expect(first().(capability.MSIX).FunctionMask).To(BeFalse())
		})
	})

	Context("Power Management", func() {
		It("should decode capabilities and power state", func() {
			legacy(space, addr, 0x40, capability.IDPowerManagement, 0)
			poke(space, addr, 0x42, access.Width16, 0xca03)
			poke(space, addr, 0x44, access.Width16, 0x8103)

			pm := first().(capability.PowerManagement)
			Expect(pm.Version).To(Equal(uint8(3)))
			Expect(pm.D1Support).To(BeTrue())
			Expect(pm.D2Support).To(BeFalse())
			Expect(pm.PMESupport).To(Equal(uint8(0x19)))
			Expect(pm.PowerState).To(Equal(uint8(3)))
			Expect(pm.NoSoftReset).To(BeFalse())
			Expect(pm.PMEEnable).To(BeTrue())
			Expect(pm.PMEStatus).To(BeTrue())
		})
	})

	Context("PCI Express", func() {
		It("should decode port type and link state", func() {
			legacy(space, addr, 0x40, capability.IDPCIExpress, 0)
			poke(space, addr, 0x42, access.Width16, 0x0142)
			poke(space, addr, 0x44, access.Width32, 0x00000002)
			poke(space, addr, 0x48, access.Width16, 0x0020)
			poke(space, addr, 0x4c, access.Width32, 0x00000104)
			poke(space, addr, 0x52, access.Width16, 0x0083)

			p := first().(capability.PCIExpress)
			Expect(p.Version).To(Equal(uint8(2)))
			Expect(p.PortType).To(Equal(capability.PortRootPort))
			Expect(p.PortType.String()).To(Equal("root-port"))
			Expect(p.SlotImplemented).To(BeTrue())
			Expect(p.MaxPayloadSupported()).To(Equal(512))
			Expect(p.MaxPayload()).To(Equal(256))
			Expect(p.MaxLinkSpeed).To(Equal(capability.LinkSpeed(4)))
			Expect(p.MaxLinkSpeed.String()).To(Equal("16GT/s"))
			Expect(p.MaxLinkWidth).To(Equal(uint8(16)))
			Expect(p.LinkSpeed.String()).To(Equal("8GT/s"))
			Expect(p.LinkWidth).To(Equal(uint8(8)))
		})

		It("should not read link registers of root complex integrated endpoints", func() {
			legacy(space, addr, 0x40, capability.IDPCIExpress, 0)
			poke(space, addr, 0x42, access.Width16, 0x0092)
			poke(space, addr, 0x4c, access.Width32, 0x00000104)

			p := first().(capability.PCIExpress)
			Expect(p.PortType).To(Equal(capability.PortRootComplexEndpoint))
			Expect(p.LinkCapabilities).To(BeZero())
			Expect(p.MaxLinkWidth).To(BeZero())
		})
	})

	Context("Vendor Specific", func() {
		It("should carry its payload", func() {
			legacy(space, addr, 0x40, capability.IDVendorSpecific, 0)
			poke(space, addr, 0x42, access.Width8, 7)
			poke(space, addr, 0x43, access.Width8, 0xaa)
			poke(space, addr, 0x44, access.Width16, 0xccbb)
			poke(space, addr, 0x46, access.Width8, 0xdd)

			vs := first().(capability.VendorSpecific)
			Expect(vs.Length).To(Equal(uint8(7)))
			Expect(vs.Data).To(Equal([]byte{0xaa, 0xbb, 0xcc, 0xdd}))
		})
	})

	Context("Extended", func() {
		It("should decode AER", func() {
			extended(space, addr, 0x100, capability.ExtIDAER, 2, 0)
			poke(space, addr, 0x104, access.Width32, 0x00004000)
			poke(space, addr, 0x108, access.Width32, 0x00400000)
			poke(space, addr, 0x10c, access.Width32, 0x00462030)
			poke(space, addr, 0x110, access.Width32, 0x00000001)
			poke(space, addr, 0x114, access.Width32, 0x00002000)
			poke(space, addr, 0x118, access.Width32, 0x000000ae)

			aer := firstExtended().(capability.AER)
			Expect(aer.UncorrectableStatus).To(Equal(uint32(0x4000)))
			Expect(aer.UncorrectableMask).To(Equal(uint32(0x400000)))
			Expect(aer.UncorrectableSeverity).To(Equal(uint32(0x462030)))
			Expect(aer.CorrectableStatus).To(Equal(uint32(1)))
			Expect(aer.CorrectableMask).To(Equal(uint32(0x2000)))
			Expect(aer.FirstErrorPointer()).To(Equal(uint8(0x0e)))
		})

		It("should decode the device serial number", func() {
			extended(space, addr, 0x100, capability.ExtIDDeviceSerialNumber, 1, 0)
			poke(space, addr, 0x104, access.Width32, 0x44332211)
			poke(space, addr, 0x108, access.Width32, 0x88776655)

			dsn := firstExtended().(capability.DeviceSerialNumber)
			Expect(dsn.Serial).To(Equal(uint64(0x8877665544332211)))
			Expect(dsn.String()).To(Equal("88-77-66-55-44-33-22-11"))
		})

		It("should decode SR-IOV and locate virtual functions", func() {
			extended(space, addr, 0x100, capability.ExtIDSRIOV, 1, 0)
			poke(space, addr, 0x108, access.Width16, 0x0001)
			poke(space, addr, 0x10c, access.Width16, 64)
			poke(space, addr, 0x10e, access.Width16, 64)
			poke(space, addr, 0x110, access.Width16, 4)
			poke(space, addr, 0x114, access.Width16, 0x80)
			poke(space, addr, 0x116, access.Width16, 2)
			poke(space, addr, 0x11a, access.Width16, 0x1889)

			sriov := firstExtended().(capability.SRIOV)
			Expect(sriov.VFEnabled()).To(BeTrue())
			Expect(sriov.TotalVFs).To(Equal(uint16(64)))
			Expect(sriov.NumVFs).To(Equal(uint16(4)))
			Expect(sriov.VFDeviceID).To(Equal(uint16(0x1889)))

			vf, err := sriov.VFAddress(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(vf).To(Equal(address.MustNew(0, 0x5e, 0x10, 0)))

			vf, err = sriov.VFAddress(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(vf.String()).To(Equal("0000:5e:11.2"))

			_, err = sriov.VFAddress(64)
			Expect(err).To(MatchError(capability.ErrInvalidValue))
		})

		It("should decode vendor specific extended headers", func() {
			extended(space, addr, 0x100, capability.ExtIDVendorSpecific, 1, 0)
			poke(space, addr, 0x104, access.Width32, 0x01820023)

			vsec := firstExtended().(capability.VendorSpecificExtended)
			Expect(vsec.VSECID).To(Equal(uint16(0x23)))
			Expect(vsec.VSECRevision).To(Equal(uint8(2)))
			Expect(vsec.Length).To(Equal(uint16(0x18)))
		})
	})
})
