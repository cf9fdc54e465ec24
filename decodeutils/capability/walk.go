// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"iter"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/decodeutils/header"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Walk iterates the legacy capability list of addr starting at ptr. The list is
// re-read on every call. A malformed list ends with an error wrapping
// ErrMalformedCapabilityList after all well-formed entries have been yielded.
// All-ones ends the walk silently since the function is gone.
func Walk(acc access.Accessor, addr address.Address, ptr uint8) iter.Seq2[Capability, error] {
	return func(yield func(Capability, error) bool) {
		visited := sets.New[address.Register]()
		for off := address.Register(ptr & 0xfc); off != 0; {
			if off < address.HeaderSize {
				yield(nil, fmt.Errorf("%w: pointer %s of %s inside the header", ErrMalformedCapabilityList, off, addr))
				return
			}
			if visited.Has(off) {
				yield(nil, fmt.Errorf("%w: cycle at %s of %s", ErrMalformedCapabilityList, off, addr))
				return
			}
			visited.Insert(off)

			hdr, err := access.Read16(acc, addr, off)
			if err != nil {
				yield(nil, fmt.Errorf("failed to read capability at %s of %s: %w", off, addr, err))
				return
			}
			if hdr == 0xffff {
				return
			}

			r := Record{
				Address: addr,
				ID:      uint8(hdr),
				Offset:  off,
				Next:    address.Register(hdr>>8) & 0xfc,
			}
			if r.ID != IDNull {
				if end := off + footprint(r.ID); end > address.LegacySize {
					yield(nil, fmt.Errorf("%w: %s capability at %s of %s runs past %s", ErrMalformedCapabilityList, r.Name(), off, addr, address.LegacySize))
					return
				}
				c, err := decode(acc, r)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(c, nil) {
					return
				}
			}
			off = r.Next
		}
	}
}

// Capabilities walks the legacy list announced by h. It yields nothing if the
// status register reports no capability list.
func Capabilities(acc access.Accessor, addr address.Address, h header.Header) iter.Seq2[Capability, error] {
	if !h.Status.CapabilitiesList() {
		return func(func(Capability, error) bool) {}
	}
	return Walk(acc, addr, h.CapabilitiesPointer)
}

// Find returns the first legacy capability with the given id.
func Find(acc access.Accessor, addr address.Address, ptr uint8, id uint8) (Capability, bool, error) {
	for c, err := range Walk(acc, addr, ptr) {
		if err != nil {
			return nil, false, err
		}
		if c.Base().ID == id {
			return c, true, nil
		}
	}
	return nil, false, nil
}

// WalkExtended iterates the extended capability list of addr starting at 0x100.
// Conventional functions read all-ones or zero there and yield nothing.
func WalkExtended(acc access.Accessor, addr address.Address) iter.Seq2[ExtendedCapability, error] {
	return func(yield func(ExtendedCapability, error) bool) {
		visited := sets.New[address.Register]()
		for off := address.ExtendedBase; off != 0; {
			if off < address.ExtendedBase {
				yield(nil, fmt.Errorf("%w: extended pointer %s of %s below %s", ErrMalformedCapabilityList, off, addr, address.ExtendedBase))
				return
			}
			if visited.Has(off) {
				yield(nil, fmt.Errorf("%w: extended cycle at %s of %s", ErrMalformedCapabilityList, off, addr))
				return
			}
			visited.Insert(off)

			hdr, err := access.Read32(acc, addr, off)
			if err != nil {
				yield(nil, fmt.Errorf("failed to read extended capability at %s of %s: %w", off, addr, err))
				return
			}
			if hdr == 0xffffffff || hdr == 0 {
				return
			}

			r := ExtendedRecord{
				Address: addr,
				ID:      uint16(hdr),
				Version: uint8(hdr>>16) & 0xf,
				Offset:  off,
				Next:    address.Register(hdr>>20) & 0xffc,
			}
			if r.ID != ExtIDNull {
				if end := off + extendedFootprint(r.ID); end > address.ExtendedSize {
					yield(nil, fmt.Errorf("%w: %s capability at %s of %s runs past %s", ErrMalformedCapabilityList, r.Name(), off, addr, address.ExtendedSize))
					return
				}
				c, err := decodeExtended(acc, r)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(c, nil) {
					return
				}
			}
			off = r.Next
		}
	}
}

// FindExtended returns the first extended capability with the given id.
func FindExtended(acc access.Accessor, addr address.Address, id uint16) (ExtendedCapability, bool, error) {
	for c, err := range WalkExtended(acc, addr) {
		if err != nil {
			return nil, false, err
		}
		if c.Base().ID == id {
			return c, true, nil
		}
	}
	return nil, false, nil
}
