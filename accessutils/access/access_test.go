// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package access_test

import (
	"sync"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/accessutils/memory"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Accessor helpers", func() {

	It("should report all-ones per width", func() {
		Expect(access.AllOnes(access.Width8)).To(Equal(uint64(0xff)))
		Expect(access.AllOnes(access.Width16)).To(Equal(uint64(0xffff)))
		Expect(access.AllOnes(access.Width32)).To(Equal(uint64(0xffffffff)))
		Expect(access.AllOnes(access.Width64)).To(Equal(^uint64(0)))
	})

	It("should check width, alignment and range", func() {
		Expect(access.Check(0x10, access.Width32)).To(Succeed())
		Expect(access.Check(0xff8, access.Width64)).To(Succeed())
		Expect(access.Check(0x11, access.Width8)).To(Succeed())
		Expect(access.Check(0x0, access.Width(24))).To(MatchError(access.ErrUnsupportedWidth))
		Expect(access.Check(0x12, access.Width32)).To(MatchError(access.ErrMisaligned))
		Expect(access.Check(0x1000, access.Width8)).To(MatchError(access.ErrOutOfRange))
	})

	It("should read byte ranges with mixed widths", func() {
		space := memory.New()
		addr := address.MustNew(0, 0, 1, 0)
		dump := make([]byte, address.LegacySize)
		for i := range dump {
			dump[i] = byte(i)
		}
		Expect(space.Load(addr, dump)).To(Succeed())

		data, err := access.ReadBytes(space, addr, 0x41, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47}))
	})

	It("should use typed helpers", func() {
		space := memory.New()
		addr := address.MustNew(0, 0, 1, 0)
		space.Add(addr)

		Expect(access.Write32(space, addr, 0x40, 0xdeadbeef)).To(Succeed())
		Expect(access.Write16(space, addr, 0x44, 0x1234)).To(Succeed())
		Expect(access.Write8(space, addr, 0x46, 0x56)).To(Succeed())

		v8, err := access.Read8(space, addr, 0x43)
		Expect(err).NotTo(HaveOccurred())
		Expect(v8).To(Equal(uint8(0xde)))
		v16, err := access.Read16(space, addr, 0x44)
		Expect(err).NotTo(HaveOccurred())
		Expect(v16).To(Equal(uint16(0x1234)))
		v32, err := access.Read32(space, addr, 0x44)
		Expect(err).NotTo(HaveOccurred())
		Expect(v32).To(Equal(uint32(0x00561234)))
	})

	It("should serialise accesses through a locked accessor", func() {
		space := memory.New()
		addr := address.MustNew(0, 0, 1, 0)
		space.Add(addr)
		acc := access.Locked(space)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				reg := address.Register(0x40 + 4*i)
				Expect(access.Write32(acc, addr, reg, uint32(i))).To(Succeed())
				v, err := access.Read32(acc, addr, reg)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal(uint32(i)))
			}(i)
		}
		wg.Wait()
	})
})
