// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package bar

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"k8s.io/apimachinery/pkg/api/resource"
)

var (
	ErrReservedBarType = errors.New("reserved bar memory type")
	ErrTruncatedBar    = errors.New("64 bit bar in last slot")
	ErrNoSuchBar       = errors.New("no such bar")
	ErrInvalidValue    = errors.New("invalid bar value")
	ErrRestoreFailed   = errors.New("failed to restore bar after sizing")
)

const (
	flagIO           = 1 << 0
	memTypeShift     = 1
	memTypeMask      = 0x3
	memType32        = 0x0
	memType64        = 0x2
	flagPrefetchable = 1 << 3

	memoryAddressMask = ^uint32(0xf)
	ioAddressMask     = ^uint32(0x3)
)

type Kind uint8

const (
	KindMemory32 Kind = iota
	KindMemory64
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindMemory32:
		return "mem32"
	case KindMemory64:
		return "mem64"
	case KindIO:
		return "io"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Bar is one of Memory32, Memory64 or IO.
type Bar interface {
	// Slot is the first register slot the bar was decoded from.
	Slot() int
	// Slots is the number of register slots the bar occupies.
	Slots() int
	Kind() Kind
	// Base is the address with all flag bits masked out.
	Base() uint64
	Prefetchable() bool
	String() string
	isBar()
}

type Memory32 struct {
	Index          int
	Address        uint32
	IsPrefetchable bool
}

type Memory64 struct {
	Index          int
	Address        uint64
	IsPrefetchable bool
}

type IO struct {
	Index   int
	Address uint32
}

func (b Memory32) Slot() int          { return b.Index }
func (b Memory32) Slots() int         { return 1 }
func (b Memory32) Kind() Kind         { return KindMemory32 }
func (b Memory32) Base() uint64       { return uint64(b.Address) }
func (b Memory32) Prefetchable() bool { return b.IsPrefetchable }

func (b Memory64) Slot() int          { return b.Index }
func (b Memory64) Slots() int         { return 2 }
func (b Memory64) Kind() Kind         { return KindMemory64 }
func (b Memory64) Base() uint64       { return b.Address }
func (b Memory64) Prefetchable() bool { return b.IsPrefetchable }

func (b IO) Slot() int          { return b.Index }
func (b IO) Slots() int         { return 1 }
func (b IO) Kind() Kind         { return KindIO }
func (b IO) Base() uint64       { return uint64(b.Address) }
func (b IO) Prefetchable() bool { return false }

func (b Memory32) String() string { return format(b) }
func (b Memory64) String() string { return format(b) }
func (b IO) String() string       { return format(b) }

func (Memory32) isBar() {}
func (Memory64) isBar() {}
func (IO) isBar()       {}

func format(b Bar) string {
	s := fmt.Sprintf("BAR%d: %s at %#x", b.Slot(), b.Kind(), b.Base())
	if b.Prefetchable() {
		s += " prefetchable"
	}
	return s
}

// FormatSize renders a measured size in binary SI units, e.g. 4Ki or 16Mi.
func FormatSize(size uint64) string {
	if size > math.MaxInt64 {
		return fmt.Sprintf("%#x", size)
	}
	return resource.NewQuantity(int64(size), resource.BinarySI).String()
}

// Decode decodes the bar in slot of a header with count bar slots.
func Decode(acc access.Accessor, addr address.Address, slot, count int) (Bar, error) {
	if slot < 0 || slot >= count {
		return nil, fmt.Errorf("%w: slot %d of %d", ErrNoSuchBar, slot, count)
	}

	raw, err := access.Read32(acc, addr, address.BAR(slot))
	if err != nil {
		return nil, fmt.Errorf("failed to read bar %d of %s: %w", slot, addr, err)
	}

	if raw&flagIO != 0 {
		return IO{Index: slot, Address: raw & ioAddressMask}, nil
	}

	prefetchable := raw&flagPrefetchable != 0
	switch (raw >> memTypeShift) & memTypeMask {
	case memType32:
		return Memory32{Index: slot, Address: raw & memoryAddressMask, IsPrefetchable: prefetchable}, nil
	case memType64:
		if slot+1 >= count {
			return nil, fmt.Errorf("%w: slot %d of %s", ErrTruncatedBar, slot, addr)
		}
		high, err := access.Read32(acc, addr, address.BAR(slot+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read upper half of bar %d of %s: %w", slot, addr, err)
		}
		return Memory64{
			Index:          slot,
			Address:        uint64(high)<<32 | uint64(raw&memoryAddressMask),
			IsPrefetchable: prefetchable,
		}, nil
	}
	return nil, fmt.Errorf("%w: slot %d of %s reads %#08x", ErrReservedBarType, slot, addr, raw)
}

// All decodes the bars of a header with count slots from left to right. The upper
// half of a 64 bit bar is not decoded on its own. A slot that fails to decode is
// yielded as an error and iteration continues with the next slot.
func All(acc access.Accessor, addr address.Address, count int) iter.Seq2[Bar, error] {
	return func(yield func(Bar, error) bool) {
		for slot := 0; slot < count; {
			b, err := Decode(acc, addr, slot, count)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				slot++
				continue
			}
			if !yield(b, nil) {
				return
			}
			slot += b.Slots()
		}
	}
}

// Write programs b with value. Values beyond 32 bits are only valid for 64 bit bars.
func Write(acc access.Accessor, addr address.Address, b Bar, value uint64) error {
	reg := address.BAR(b.Slot())
	if b.Kind() != KindMemory64 {
		if value > math.MaxUint32 {
			return fmt.Errorf("%w: %#x for %s bar %d", ErrInvalidValue, value, b.Kind(), b.Slot())
		}
		if err := access.Write32(acc, addr, reg, uint32(value)); err != nil {
			return fmt.Errorf("failed to write bar %d of %s: %w", b.Slot(), addr, err)
		}
		return nil
	}

	if err := access.Write32(acc, addr, reg, uint32(value)); err != nil {
		return fmt.Errorf("failed to write bar %d of %s: %w", b.Slot(), addr, err)
	}
	if err := access.Write32(acc, addr, reg+4, uint32(value>>32)); err != nil {
		return fmt.Errorf("failed to write upper half of bar %d of %s: %w", b.Slot(), addr, err)
	}
	return nil
}
