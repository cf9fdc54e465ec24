// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package bar_test

import (
	"errors"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/accessutils/memory"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/decodeutils/bar"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var errInjected = errors.New("injected")

// failingAccessor fails the first read after all-ones were written.
type failingAccessor struct {
	access.Accessor
	armed bool
}

func (f *failingAccessor) Read(addr address.Address, reg address.Register, width access.Width) (uint64, error) {
	if f.armed {
		f.armed = false
		return 0, errInjected
	}
	return f.Accessor.Read(addr, reg, width)
}

func (f *failingAccessor) Write(addr address.Address, reg address.Register, width access.Width, value uint64) error {
	if value == access.AllOnes(width) {
		f.armed = true
	}
	return f.Accessor.Write(addr, reg, width, value)
}

// stuckAccessor drops every write that is not all-ones.
type stuckAccessor struct {
	access.Accessor
}

func (s stuckAccessor) Write(addr address.Address, reg address.Register, width access.Width, value uint64) error {
	if value != access.AllOnes(width) {
		return nil
	}
	return s.Accessor.Write(addr, reg, width, value)
}

var _ = Describe("Bar", func() {
	var (
		space *memory.Space
		addr  address.Address
	)

	setBar := func(slot int, raw uint32, writable uint32) {
		GinkgoHelper()
		Expect(space.Poke(addr, address.BAR(slot), access.Width32, uint64(raw))).To(Succeed())
		Expect(space.SetWritable(addr, address.BAR(slot), access.Width32, uint64(writable))).To(Succeed())
	}

	readBar := func(slot int) uint32 {
		GinkgoHelper()
		v, err := access.Read32(space, addr, address.BAR(slot))
		Expect(err).NotTo(HaveOccurred())
		return v
	}

	BeforeEach(func() {
		space = memory.New()
		addr = address.MustNew(0, 3, 0, 0)
		space.Add(addr)
	})

	Context("Decode", func() {
		It("should decode a 32 bit memory bar", func() {
			setBar(0, 0xe0000000, 0)

			b, err := bar.Decode(space, addr, 0, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(bar.Memory32{Index: 0, Address: 0xe0000000}))
			Expect(b.String()).To(Equal("BAR0: mem32 at 0xe0000000"))
		})

		It("should decode a prefetchable 64 bit memory bar", func() {
			setBar(2, 0xf000000c, 0)
			setBar(3, 0x1, 0)

			b, err := bar.Decode(space, addr, 2, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(bar.Memory64{Index: 2, Address: 0x1f0000000, IsPrefetchable: true}))
			Expect(b.Slots()).To(Equal(2))
			Expect(b.String()).To(Equal("BAR2: mem64 at 0x1f0000000 prefetchable"))
		})

		It("should decode an io bar", func() {
			setBar(1, 0xe001, 0)

			b, err := bar.Decode(space, addr, 1, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(bar.IO{Index: 1, Address: 0xe000}))
			Expect(b.Kind()).To(Equal(bar.KindIO))
		})

		It("should reject reserved memory types", func() {
			setBar(0, 0xe0000002, 0)

			_, err := bar.Decode(space, addr, 0, 6)
			Expect(err).To(MatchError(bar.ErrReservedBarType))
		})

		It("should reject a 64 bit bar in the last slot", func() {
			setBar(5, 0xf0000004, 0)

			_, err := bar.Decode(space, addr, 5, 6)
			Expect(err).To(MatchError(bar.ErrTruncatedBar))
		})

		It("should reject slots beyond the header", func() {
			_, err := bar.Decode(space, addr, 2, 2)
			Expect(err).To(MatchError(bar.ErrNoSuchBar))
			_, err = bar.Decode(space, addr, -1, 6)
			Expect(err).To(MatchError(bar.ErrNoSuchBar))
		})
	})

	Context("All", func() {
		It("should skip the upper half of 64 bit bars", func() {
			setBar(0, 0xf000000c, 0)
			setBar(1, 0x1, 0)

			var bars []bar.Bar
			for b, err := range bar.All(space, addr, 6) {
				Expect(err).NotTo(HaveOccurred())
				bars = append(bars, b)
			}
			Expect(bars).To(HaveLen(5))
			Expect(bars[0].Kind()).To(Equal(bar.KindMemory64))
			Expect(bars[1].Slot()).To(Equal(2))
		})

		It("should yield errors and continue", func() {
			setBar(0, 0xe0000006, 0)
			setBar(1, 0xe0000000, 0)

			var (
				bars []bar.Bar
				errs []error
			)
			for b, err := range bar.All(space, addr, 2) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				bars = append(bars, b)
			}
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(MatchError(bar.ErrReservedBarType))
			Expect(bars).To(ConsistOf(bar.Memory32{Index: 1, Address: 0xe0000000}))
		})

		It("should stop when the consumer stops", func() {
			n := 0
			for range bar.All(space, addr, 6) {
				n++
				break
			}
			Expect(n).To(Equal(1))
		})
	})

	Context("Size", func() {
		It("should size a 32 bit memory bar and restore it", func() {
			setBar(0, 0xe0000000, 0xfffff000)

			b, err := bar.Decode(space, addr, 0, 6)
			Expect(err).NotTo(HaveOccurred())
			size, err := bar.Size(space, addr, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(uint64(0x1000)))
			Expect(bar.FormatSize(size)).To(Equal("4Ki"))
			Expect(readBar(0)).To(Equal(uint32(0xe0000000)))
		})

		It("should size a 64 bit memory bar across both halves", func() {
			setBar(0, 0x0000000c, 0xf0000000)
			setBar(1, 0x4, 0xffffffff)

			b, err := bar.Decode(space, addr, 0, 6)
			Expect(err).NotTo(HaveOccurred())
			size, err := bar.Size(space, addr, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(uint64(0x10000000)))
			Expect(readBar(0)).To(Equal(uint32(0x0000000c)))
			Expect(readBar(1)).To(Equal(uint32(0x4)))
		})

		It("should fill the upper half of 16 bit io decoders", func() {
			setBar(4, 0xe001, 0xffe0)

			b, err := bar.Decode(space, addr, 4, 6)
			Expect(err).NotTo(HaveOccurred())
			size, err := bar.Size(space, addr, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(uint64(0x20)))
			Expect(readBar(4)).To(Equal(uint32(0xe001)))
		})

		It("should report size 0 for unimplemented bars", func() {
			setBar(0, 0, 0)

			b, err := bar.Decode(space, addr, 0, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(bar.Size(space, addr, b)).To(BeZero())
		})

		It("should restore the bar when reading the response fails", func() {
			setBar(0, 0xe0000000, 0xfffff000)
			acc := &failingAccessor{Accessor: space}

			b, err := bar.Decode(acc, addr, 0, 6)
			Expect(err).NotTo(HaveOccurred())
			_, err = bar.Size(acc, addr, b)
			Expect(err).To(MatchError(errInjected))
			Expect(err).NotTo(MatchError(bar.ErrRestoreFailed))
			Expect(readBar(0)).To(Equal(uint32(0xe0000000)))
		})

		It("should fail when the restore does not stick", func() {
			setBar(0, 0xe0000000, 0xfffff000)
			acc := stuckAccessor{Accessor: space}

			b, err := bar.Decode(acc, addr, 0, 6)
			Expect(err).NotTo(HaveOccurred())
			size, err := bar.Size(acc, addr, b)
			Expect(err).To(MatchError(bar.ErrRestoreFailed))
			Expect(size).To(BeZero())
		})
	})

	Context("Write", func() {
		It("should write both halves of a 64 bit bar", func() {
			b := bar.Memory64{Index: 2}
			Expect(bar.Write(space, addr, b, 0x2_8000_000c)).To(Succeed())
			Expect(readBar(2)).To(Equal(uint32(0x8000000c)))
			Expect(readBar(3)).To(Equal(uint32(0x2)))
		})

		It("should reject values wider than a 32 bit bar", func() {
			Expect(bar.Write(space, addr, bar.Memory32{Index: 0}, 1<<32)).To(MatchError(bar.ErrInvalidValue))
			Expect(bar.Write(space, addr, bar.IO{Index: 1}, 1<<40)).To(MatchError(bar.ErrInvalidValue))
			Expect(readBar(0)).To(BeZero())
		})

		It("should write a 32 bit bar", func() {
			Expect(bar.Write(space, addr, bar.Memory32{Index: 5}, 0xfe000000)).To(Succeed())
			Expect(readBar(5)).To(Equal(uint32(0xfe000000)))
		})
	})

	It("should render sizes in binary units", func() {
		Expect(bar.FormatSize(16 << 20)).To(Equal("16Mi"))
		Expect(bar.FormatSize(0)).To(Equal("0"))
	})
})
