// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package ecam

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

var ErrNotSupported = errors.New("ecam mapping not supported on this platform")

const busWindow = 1 << 20

var littleEndianHost = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// Region accesses the enhanced configuration space of buses [StartBus, EndBus] of
// one segment through a memory mapping, as described by one MCFG allocation.
type Region struct {
	mem      []byte
	segment  uint16
	startBus uint8
	endBus   uint8
	closer   func() error
}

// NewRegion wraps mem, which must start at the configuration space of startBus.
func NewRegion(mem []byte, segment uint16, startBus, endBus uint8) (*Region, error) {
	if endBus < startBus {
		return nil, fmt.Errorf("invalid bus range %02x-%02x", startBus, endBus)
	}
	if need := (int(endBus) - int(startBus) + 1) * busWindow; len(mem) < need {
		return nil, fmt.Errorf("ecam mapping of %d bytes too small for buses %02x-%02x, need %d", len(mem), startBus, endBus, need)
	}
	return &Region{
		mem:      mem,
		segment:  segment,
		startBus: startBus,
		endBus:   endBus,
	}, nil
}

func (r *Region) Segment() uint16 {
	return r.segment
}

func (r *Region) Buses() (uint8, uint8) {
	return r.startBus, r.endBus
}

func (r *Region) Close() error {
	if r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	return closer()
}

func (r *Region) offset(addr address.Address, reg address.Register, width access.Width) (int, bool, error) {
	if err := access.Check(reg, width); err != nil {
		return 0, false, err
	}
	if addr.Segment != r.segment || addr.Bus < r.startBus || addr.Bus > r.endBus {
		return 0, false, nil
	}
	off, err := addr.ECAMOffset(reg)
	if err != nil {
		return 0, false, err
	}
	return int(off) - int(r.startBus)*busWindow, true, nil
}

func (r *Region) Read(addr address.Address, reg address.Register, width access.Width) (uint64, error) {
	off, ok, err := r.offset(addr, reg, width)
	if err != nil {
		return 0, err
	}
	if !ok {
		return access.AllOnes(width), nil
	}

	p := unsafe.Pointer(&r.mem[off])
	switch width {
	case access.Width8:
		return uint64(*(*uint8)(p)), nil
	case access.Width16:
		return uint64(fromLE16(*(*uint16)(p))), nil
	case access.Width32:
		return uint64(fromLE32(atomic.LoadUint32((*uint32)(p)))), nil
	default:
		return fromLE64(atomic.LoadUint64((*uint64)(p))), nil
	}
}

func (r *Region) Write(addr address.Address, reg address.Register, width access.Width, value uint64) error {
	off, ok, err := r.offset(addr, reg, width)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	p := unsafe.Pointer(&r.mem[off])
	switch width {
	case access.Width8:
		*(*uint8)(p) = uint8(value)
	case access.Width16:
		*(*uint16)(p) = fromLE16(uint16(value))
	case access.Width32:
		atomic.StoreUint32((*uint32)(p), fromLE32(uint32(value)))
	default:
		atomic.StoreUint64((*uint64)(p), fromLE64(value))
	}
	return nil
}

// The conversions are their own inverse.
func fromLE16(v uint16) uint16 {
	if littleEndianHost {
		return v
	}
	return bits.ReverseBytes16(v)
}

func fromLE32(v uint32) uint32 {
	if littleEndianHost {
		return v
	}
	return bits.ReverseBytes32(v)
}

func fromLE64(v uint64) uint64 {
	if littleEndianHost {
		return v
	}
	return bits.ReverseBytes64(v)
}
