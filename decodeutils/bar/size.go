// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package bar

import (
	"errors"
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

// Size discovers the size of b by writing all-ones and reading back the response.
// The saved register values are written back on every exit path and verified
// by reading them again; a restore that cannot be verified fails with
// ErrRestoreFailed. Unimplemented bars have size 0.
//
// Size is not atomic: the caller must keep other accesses to the function out
// until it returns.
func Size(acc access.Accessor, addr address.Address, b Bar) (size uint64, err error) {
	regs := make([]address.Register, b.Slots())
	saved := make([]uint32, b.Slots())
	for i := range regs {
		regs[i] = address.BAR(b.Slot() + i)
		if saved[i], err = access.Read32(acc, addr, regs[i]); err != nil {
			return 0, fmt.Errorf("failed to save bar %d of %s: %w", b.Slot(), addr, err)
		}
	}

	defer func() {
		if rerr := restore(acc, addr, regs, saved); rerr != nil {
			size = 0
			err = errors.Join(err, fmt.Errorf("%w: bar %d of %s: %w", ErrRestoreFailed, b.Slot(), addr, rerr))
		}
	}()

	for _, reg := range regs {
		if err := access.Write32(acc, addr, reg, ^uint32(0)); err != nil {
			return 0, fmt.Errorf("failed to write all-ones to bar %d of %s: %w", b.Slot(), addr, err)
		}
	}

	var resp uint64
	for i, reg := range regs {
		v, err := access.Read32(acc, addr, reg)
		if err != nil {
			return 0, fmt.Errorf("failed to read size mask of bar %d of %s: %w", b.Slot(), addr, err)
		}
		resp |= uint64(v) << (32 * i)
	}

	return sizeOf(b.Kind(), resp), nil
}

// restore writes every saved value even if an earlier one fails.
func restore(acc access.Accessor, addr address.Address, regs []address.Register, saved []uint32) error {
	var errs []error
	for i, reg := range regs {
		if err := access.Write32(acc, addr, reg, saved[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		v, err := access.Read32(acc, addr, reg)
		switch {
		case err != nil:
			errs = append(errs, err)
		case v != saved[i]:
			errs = append(errs, fmt.Errorf("%s reads %#08x instead of %#08x", reg, v, saved[i]))
		}
	}
	return errors.Join(errs...)
}

func sizeOf(kind Kind, resp uint64) uint64 {
	switch kind {
	case KindMemory64:
		v := resp & ^uint64(0xf)
		if v == 0 {
			return 0
		}
		return ^v + 1
	case KindIO:
		v := uint32(resp) & ioAddressMask
		if v == 0 {
			return 0
		}
		// 16 bit I/O decoders leave the upper half zero.
		if v&0xffff0000 == 0 {
			v |= 0xffff0000
		}
		return uint64(^v + 1)
	}
	v := uint32(resp) & memoryAddressMask
	if v == 0 {
		return 0
	}
	return uint64(^v + 1)
}
