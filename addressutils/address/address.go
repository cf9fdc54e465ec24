// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidAddress  = errors.New("invalid pci address")
	ErrInvalidRegister = errors.New("invalid config space register")
)

const (
	MaxDevice   = 31
	MaxFunction = 7
)

// Address identifies one PCI function.
type Address struct {
	Segment  uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

func New(segment uint16, bus, device, function uint8) (Address, error) {
	if device > MaxDevice {
		return Address{}, fmt.Errorf("%w: device %d out of range", ErrInvalidAddress, device)
	}
	if function > MaxFunction {
		return Address{}, fmt.Errorf("%w: function %d out of range", ErrInvalidAddress, function)
	}

	return Address{
		Segment:  segment,
		Bus:      bus,
		Device:   device,
		Function: function,
	}, nil
}

func MustNew(segment uint16, bus, device, function uint8) Address {
	a, err := New(segment, bus, device, function)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse accepts "ssss:bb:dd.f" and "bb:dd.f".
func Parse(s string) (Address, error) {
	parts := strings.Split(s, ":")
	var segment uint64
	switch len(parts) {
	case 3:
		var err error
		if segment, err = strconv.ParseUint(parts[0], 16, 16); err != nil {
			return Address{}, fmt.Errorf("%w: segment of %q: %w", ErrInvalidAddress, s, err)
		}
		parts = parts[1:]
	case 2:
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	bus, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil {
		return Address{}, fmt.Errorf("%w: bus of %q: %w", ErrInvalidAddress, s, err)
	}

	devFn := strings.Split(parts[1], ".")
	if len(devFn) != 2 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	device, err := strconv.ParseUint(devFn[0], 16, 8)
	if err != nil {
		return Address{}, fmt.Errorf("%w: device of %q: %w", ErrInvalidAddress, s, err)
	}
	function, err := strconv.ParseUint(devFn[1], 16, 8)
	if err != nil {
		return Address{}, fmt.Errorf("%w: function of %q: %w", ErrInvalidAddress, s, err)
	}

	return New(uint16(segment), uint8(bus), uint8(device), uint8(function))
}

func (a Address) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%1x", a.Segment, a.Bus, a.Device, a.Function)
}

func (a Address) Valid() bool {
	return a.Device <= MaxDevice && a.Function <= MaxFunction
}

// Packed returns the address as segment[31:16] bus[15:8] device[7:3] function[2:0].
func (a Address) Packed() uint32 {
	return uint32(a.Segment)<<16 | uint32(a.RoutingID())
}

func Unpack(v uint32) Address {
	return Address{
		Segment:  uint16(v >> 16),
		Bus:      uint8(v >> 8),
		Device:   uint8(v>>3) & MaxDevice,
		Function: uint8(v) & MaxFunction,
	}
}

// RoutingID is the 16 bit bus/device/function number used as PCIe requester ID.
func (a Address) RoutingID() uint16 {
	return uint16(a.Bus)<<8 | uint16(a.Device)<<3 | uint16(a.Function)
}

// ECAMOffset returns the offset of reg relative to the ECAM base of the segment (bus 0).
func (a Address) ECAMOffset(reg Register) (uint64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, a)
	}
	if !reg.Valid() {
		return 0, fmt.Errorf("%w: %#x", ErrInvalidRegister, uint16(reg))
	}
	return uint64(a.Bus)<<20 | uint64(a.Device)<<15 | uint64(a.Function)<<12 | uint64(reg), nil
}

func FromECAMOffset(segment uint16, offset uint64) (Address, Register, error) {
	if offset >= 1<<28 {
		return Address{}, 0, fmt.Errorf("%w: ecam offset %#x beyond bus 255", ErrInvalidAddress, offset)
	}
	a := Address{
		Segment:  segment,
		Bus:      uint8(offset >> 20),
		Device:   uint8(offset>>15) & MaxDevice,
		Function: uint8(offset>>12) & MaxFunction,
	}
	return a, Register(offset & uint64(ExtendedSize-1)), nil
}

const configAddressEnable = 1 << 31

// ConfigAddress encodes reg for configuration mechanism #1 (port 0xCF8).
// The mechanism only reaches segment 0 and the legacy region.
func (a Address) ConfigAddress(reg Register) (uint32, error) {
	if !a.Valid() || a.Segment != 0 {
		return 0, fmt.Errorf("%w: %s not reachable through port io", ErrInvalidAddress, a)
	}
	if reg >= LegacySize {
		return 0, fmt.Errorf("%w: %#x not reachable through port io", ErrInvalidRegister, uint16(reg))
	}
	return configAddressEnable |
		uint32(a.Bus)<<16 |
		uint32(a.Device)<<11 |
		uint32(a.Function)<<8 |
		uint32(reg)&0xfc, nil
}

func FromConfigAddress(v uint32) (Address, Register, error) {
	if v&configAddressEnable == 0 {
		return Address{}, 0, fmt.Errorf("%w: enable bit clear in %#08x", ErrInvalidAddress, v)
	}
	a := Address{
		Bus:      uint8(v >> 16),
		Device:   uint8(v>>11) & MaxDevice,
		Function: uint8(v>>8) & MaxFunction,
	}
	return a, Register(v & 0xfc), nil
}
