// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

const (
	msiControlEnable           = 1 << 0
	msiControlMMCShift         = 1
	msiControlMMEShift         = 4
	msiControlMMEMask          = 0x7 << msiControlMMEShift
	msiControl64Bit            = 1 << 7
	msiControlPerVectorMasking = 1 << 8

	msixControlTableSizeMask = 0x7ff
	msixControlFunctionMask  = 1 << 14
	msixControlEnable        = 1 << 15
)

// MultipleMessage is the log2 encoded vector count of MSI.
type MultipleMessage uint8

const (
	Vectors1 MultipleMessage = iota
	Vectors2
	Vectors4
	Vectors8
	Vectors16
	Vectors32
)

func (m MultipleMessage) Vectors() int {
	return 1 << m
}

func (m MultipleMessage) String() string {
	return fmt.Sprintf("%d", m.Vectors())
}

// TriggerMode selects when the local APIC raises the interrupt.
type TriggerMode uint8

const (
	TriggerEdge          TriggerMode = 0b00
	TriggerLevelDeassert TriggerMode = 0b10
	TriggerLevelAssert   TriggerMode = 0b11
)

type MSI struct {
	Record
	Control                uint16
	Enabled                bool
	Is64Bit                bool
	PerVectorMasking       bool
	MultipleMessageCapable MultipleMessage
	MultipleMessageEnable  MultipleMessage
}

func decodeMSI(acc access.Accessor, r Record) (Capability, error) {
	ctrl, err := access.Read16(acc, r.Address, r.Offset+2)
	if err != nil {
		return nil, fmt.Errorf("failed to read msi control at %s: %w", r.Offset, err)
	}
	return newMSI(r, ctrl), nil
}

func newMSI(r Record, ctrl uint16) MSI {
	mmc := MultipleMessage(ctrl>>msiControlMMCShift) & 0x7
	if mmc > Vectors32 {
		mmc = Vectors1
	}
	mme := MultipleMessage(ctrl>>msiControlMMEShift) & 0x7
	if mme > Vectors32 {
		mme = Vectors1
	}
	return MSI{
		Record:                 r,
		Control:                ctrl,
		Enabled:                ctrl&msiControlEnable != 0,
		Is64Bit:                ctrl&msiControl64Bit != 0,
		PerVectorMasking:       ctrl&msiControlPerVectorMasking != 0,
		MultipleMessageCapable: mmc,
		MultipleMessageEnable:  mme,
	}
}

func (m MSI) dataOffset() address.Register {
	if m.Is64Bit {
		return m.Offset + 0xc
	}
	return m.Offset + 0x8
}

func (m MSI) maskOffset() address.Register {
	if m.Is64Bit {
		return m.Offset + 0x10
	}
	return m.Offset + 0xc
}

func (m MSI) updateControl(acc access.Accessor, fn func(uint16) uint16) error {
	ctrl, err := access.Read16(acc, m.Address, m.Offset+2)
	if err != nil {
		return fmt.Errorf("failed to read msi control of %s: %w", m.Address, err)
	}
	if err := access.Write16(acc, m.Address, m.Offset+2, fn(ctrl)); err != nil {
		return fmt.Errorf("failed to write msi control of %s: %w", m.Address, err)
	}
	return nil
}

func (m MSI) SetEnabled(acc access.Accessor, enabled bool) error {
	return m.updateControl(acc, func(ctrl uint16) uint16 {
		if enabled {
			return ctrl | msiControlEnable
		}
		return ctrl &^ msiControlEnable
	})
}

// SetMultipleMessageEnable requests n vectors, clamped to what the function is capable of.
func (m MSI) SetMultipleMessageEnable(acc access.Accessor, n MultipleMessage) error {
	n = min(n, m.MultipleMessageCapable)
	return m.updateControl(acc, func(ctrl uint16) uint16 {
		return ctrl&^msiControlMMEMask | uint16(n)<<msiControlMMEShift
	})
}

// SetMessage programs the address written on interrupt and the data written to it.
func (m MSI) SetMessage(acc access.Accessor, addr uint64, data uint16) error {
	if !m.Is64Bit && addr>>32 != 0 {
		return fmt.Errorf("%w: message address %#x needs 64 bit msi", ErrInvalidValue, addr)
	}
	if err := access.Write32(acc, m.Address, m.Offset+4, uint32(addr)); err != nil {
		return fmt.Errorf("failed to write msi address of %s: %w", m.Address, err)
	}
	if m.Is64Bit {
		if err := access.Write32(acc, m.Address, m.Offset+8, uint32(addr>>32)); err != nil {
			return fmt.Errorf("failed to write msi upper address of %s: %w", m.Address, err)
		}
	}
	if err := access.Write16(acc, m.Address, m.dataOffset(), data); err != nil {
		return fmt.Errorf("failed to write msi data of %s: %w", m.Address, err)
	}
	return nil
}

// SetMessageLAPIC programs a message in the x86 local APIC format. The address is
// usually 0xfee00000 | apicID<<12.
func (m MSI) SetMessageLAPIC(acc access.Accessor, addr uint64, vector uint8, trigger TriggerMode) error {
	return m.SetMessage(acc, addr, uint16(vector)|uint16(trigger)<<14)
}

// Message reads back the programmed address and data.
func (m MSI) Message(acc access.Accessor) (uint64, uint16, error) {
	lo, err := access.Read32(acc, m.Address, m.Offset+4)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read msi address of %s: %w", m.Address, err)
	}
	addr := uint64(lo)
	if m.Is64Bit {
		hi, err := access.Read32(acc, m.Address, m.Offset+8)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read msi upper address of %s: %w", m.Address, err)
		}
		addr |= uint64(hi) << 32
	}
	data, err := access.Read16(acc, m.Address, m.dataOffset())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read msi data of %s: %w", m.Address, err)
	}
	return addr, data, nil
}

// Mask returns the per-vector mask bits. ErrNotSupported without per-vector masking.
func (m MSI) Mask(acc access.Accessor) (uint32, error) {
	if !m.PerVectorMasking {
		return 0, fmt.Errorf("%w: per-vector masking", ErrNotSupported)
	}
	return access.Read32(acc, m.Address, m.maskOffset())
}

func (m MSI) SetMask(acc access.Accessor, mask uint32) error {
	if !m.PerVectorMasking {
		return fmt.Errorf("%w: per-vector masking", ErrNotSupported)
	}
	return access.Write32(acc, m.Address, m.maskOffset(), mask)
}

// Pending returns the pending bits. ErrNotSupported without per-vector masking.
func (m MSI) Pending(acc access.Accessor) (uint32, error) {
	if !m.PerVectorMasking {
		return 0, fmt.Errorf("%w: per-vector masking", ErrNotSupported)
	}
	return access.Read32(acc, m.Address, m.maskOffset()+4)
}

type MSIX struct {
	Record
	Control      uint16
	Enabled      bool
	FunctionMask bool
	TableSize    uint16
	TableBIR     uint8
	TableOffset  uint32
	PBABIR       uint8
	PBAOffset    uint32
}

func decodeMSIX(acc access.Accessor, r Record) (Capability, error) {
	ctrl, err := access.Read16(acc, r.Address, r.Offset+2)
	if err != nil {
		return nil, fmt.Errorf("failed to read msi-x control at %s: %w", r.Offset, err)
	}
	table, err := access.Read32(acc, r.Address, r.Offset+4)
	if err != nil {
		return nil, fmt.Errorf("failed to read msi-x table at %s: %w", r.Offset, err)
	}
	pba, err := access.Read32(acc, r.Address, r.Offset+8)
	if err != nil {
		return nil, fmt.Errorf("failed to read msi-x pba at %s: %w", r.Offset, err)
	}

	return MSIX{
		Record:       r,
		Control:      ctrl,
		Enabled:      ctrl&msixControlEnable != 0,
		FunctionMask: ctrl&msixControlFunctionMask != 0,
		TableSize:    ctrl&msixControlTableSizeMask + 1,
		TableBIR:     uint8(table & 0x7),
		TableOffset:  table &^ 0x7,
		PBABIR:       uint8(pba & 0x7),
		PBAOffset:    pba &^ 0x7,
	}, nil
}

func (m MSIX) updateControl(acc access.Accessor, bit uint16, set bool) error {
	ctrl, err := access.Read16(acc, m.Address, m.Offset+2)
	if err != nil {
		return fmt.Errorf("failed to read msi-x control of %s: %w", m.Address, err)
	}
	if set {
		ctrl |= bit
	} else {
		ctrl &^= bit
	}
	if err := access.Write16(acc, m.Address, m.Offset+2, ctrl); err != nil {
		return fmt.Errorf("failed to write msi-x control of %s: %w", m.Address, err)
	}
	return nil
}

func (m MSIX) SetEnabled(acc access.Accessor, enabled bool) error {
	return m.updateControl(acc, msixControlEnable, enabled)
}

// SetFunctionMask masks all vectors of the function regardless of their entry mask.
func (m MSIX) SetFunctionMask(acc access.Accessor, masked bool) error {
	return m.updateControl(acc, msixControlFunctionMask, masked)
}
