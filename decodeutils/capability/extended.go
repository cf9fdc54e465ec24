// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

// Extended capability IDs.
const (
	ExtIDNull               uint16 = 0x0000
	ExtIDAER                uint16 = 0x0001
	ExtIDVirtualChannel     uint16 = 0x0002
	ExtIDDeviceSerialNumber uint16 = 0x0003
	ExtIDPowerBudgeting     uint16 = 0x0004
	ExtIDRCLinkDeclaration  uint16 = 0x0005
	ExtIDRCInternalLink     uint16 = 0x0006
	ExtIDRCEventCollector   uint16 = 0x0007
	ExtIDMFVC               uint16 = 0x0008
	ExtIDVirtualChannel9    uint16 = 0x0009
	ExtIDRCRB               uint16 = 0x000a
	ExtIDVendorSpecific     uint16 = 0x000b
	ExtIDACS                uint16 = 0x000d
	ExtIDARI                uint16 = 0x000e
	ExtIDATS                uint16 = 0x000f
	ExtIDSRIOV              uint16 = 0x0010
	ExtIDMRIOV              uint16 = 0x0011
	ExtIDMulticast          uint16 = 0x0012
	ExtIDPageRequest        uint16 = 0x0013
	ExtIDResizableBAR       uint16 = 0x0015
	ExtIDDPA                uint16 = 0x0016
	ExtIDTPH                uint16 = 0x0017
	ExtIDLTR                uint16 = 0x0018
	ExtIDSecondaryPCIe      uint16 = 0x0019
	ExtIDPASID              uint16 = 0x001b
	ExtIDDPC                uint16 = 0x001d
	ExtIDL1PMSubstates      uint16 = 0x001e
	ExtIDPTM                uint16 = 0x001f
	ExtIDDataLinkFeature    uint16 = 0x0025
	ExtIDPhysicalLayer16GT  uint16 = 0x0026
	ExtIDPhysicalLayer32GT  uint16 = 0x002a
)

var extendedNames = map[uint16]string{
	ExtIDNull:               "Null",
	ExtIDAER:                "Advanced Error Reporting",
	ExtIDVirtualChannel:     "Virtual Channel",
	ExtIDDeviceSerialNumber: "Device Serial Number",
	ExtIDPowerBudgeting:     "Power Budgeting",
	ExtIDRCLinkDeclaration:  "Root Complex Link Declaration",
	ExtIDRCInternalLink:     "Root Complex Internal Link Control",
	ExtIDRCEventCollector:   "Root Complex Event Collector Endpoint Association",
	ExtIDMFVC:               "Multi-Function Virtual Channel",
	ExtIDVirtualChannel9:    "Virtual Channel (MFVC present)",
	ExtIDRCRB:               "Root Complex Register Block",
	ExtIDVendorSpecific:     "Vendor Specific",
	ExtIDACS:                "Access Control Services",
	ExtIDARI:                "Alternative Routing-ID Interpretation",
	ExtIDATS:                "Address Translation Services",
	ExtIDSRIOV:              "Single Root I/O Virtualization",
	ExtIDMRIOV:              "Multi-Root I/O Virtualization",
	ExtIDMulticast:          "Multicast",
	ExtIDPageRequest:        "Page Request Interface",
	ExtIDResizableBAR:       "Resizable BAR",
	ExtIDDPA:                "Dynamic Power Allocation",
	ExtIDTPH:                "TPH Requester",
	ExtIDLTR:                "Latency Tolerance Reporting",
	ExtIDSecondaryPCIe:      "Secondary PCI Express",
	ExtIDPASID:              "Process Address Space ID",
	ExtIDDPC:                "Downstream Port Containment",
	ExtIDL1PMSubstates:      "L1 PM Substates",
	ExtIDPTM:                "Precision Time Measurement",
	ExtIDDataLinkFeature:    "Data Link Feature",
	ExtIDPhysicalLayer16GT:  "Physical Layer 16.0 GT/s",
	ExtIDPhysicalLayer32GT:  "Physical Layer 32.0 GT/s",
}

func ExtendedName(id uint16) string {
	if name, ok := extendedNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%#x)", id)
}

// ExtendedRecord locates one entry of the extended capability list.
type ExtendedRecord struct {
	Address address.Address
	ID      uint16
	Version uint8
	Offset  address.Register
	Next    address.Register
}

func (r ExtendedRecord) Base() ExtendedRecord { return r }

func (r ExtendedRecord) Name() string { return ExtendedName(r.ID) }

func (ExtendedRecord) isExtendedCapability() {}

// ExtendedCapability is one of AER, DeviceSerialNumber, SRIOV,
// VendorSpecificExtended or ExtendedRaw.
type ExtendedCapability interface {
	Base() ExtendedRecord
	Name() string
	isExtendedCapability()
}

type AER struct {
	ExtendedRecord
	UncorrectableStatus   uint32
	UncorrectableMask     uint32
	UncorrectableSeverity uint32
	CorrectableStatus     uint32
	CorrectableMask       uint32
	CapabilitiesControl   uint32
}

// FirstErrorPointer is the bit index of the first reported uncorrectable error.
func (a AER) FirstErrorPointer() uint8 {
	return uint8(a.CapabilitiesControl & 0x1f)
}

type DeviceSerialNumber struct {
	ExtendedRecord
	Serial uint64
}

func (d DeviceSerialNumber) String() string {
	s := d.Serial
	return fmt.Sprintf("%02x-%02x-%02x-%02x-%02x-%02x-%02x-%02x",
		byte(s>>56), byte(s>>48), byte(s>>40), byte(s>>32), byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

type SRIOV struct {
	ExtendedRecord
	Capabilities  uint32
	Control       uint16
	Status        uint16
	InitialVFs    uint16
	TotalVFs      uint16
	NumVFs        uint16
	FirstVFOffset uint16
	VFStride      uint16
	VFDeviceID    uint16
}

const sriovControlVFEnable = 1 << 0

var extendedFootprints = map[uint16]address.Register{
	ExtIDAER:                0x1c,
	ExtIDDeviceSerialNumber: 0x0c,
	ExtIDSRIOV:              0x1c,
	ExtIDVendorSpecific:     0x08,
}

func extendedFootprint(id uint16) address.Register {
	if n, ok := extendedFootprints[id]; ok {
		return n
	}
	return 4
}

func (s SRIOV) VFEnabled() bool {
	return s.Control&sriovControlVFEnable != 0
}

// VFAddress returns the address of virtual function n, counted from zero, of the
// physical function the capability belongs to.
func (s SRIOV) VFAddress(n int) (address.Address, error) {
	if n < 0 || n >= int(s.TotalVFs) {
		return address.Address{}, fmt.Errorf("%w: vf %d of %d", ErrInvalidValue, n, s.TotalVFs)
	}
	rid := int(s.Address.RoutingID()) + int(s.FirstVFOffset) + n*int(s.VFStride)
	if rid > 0xffff {
		return address.Address{}, fmt.Errorf("%w: vf %d routing id %#x beyond bus 255", ErrInvalidValue, n, rid)
	}
	return address.Unpack(uint32(s.Address.Segment)<<16 | uint32(rid)), nil
}

type VendorSpecificExtended struct {
	ExtendedRecord
	VSECID       uint16
	VSECRevision uint8
	Length       uint16
}

type ExtendedRaw struct {
	ExtendedRecord
	Data []byte
}

func decodeExtended(acc access.Accessor, r ExtendedRecord) (ExtendedCapability, error) {
	switch r.ID {
	case ExtIDAER:
		return decodeAER(acc, r)
	case ExtIDDeviceSerialNumber:
		lo, err := access.Read32(acc, r.Address, r.Offset+4)
		if err != nil {
			return nil, fmt.Errorf("failed to read serial number at %s: %w", r.Offset, err)
		}
		hi, err := access.Read32(acc, r.Address, r.Offset+8)
		if err != nil {
			return nil, fmt.Errorf("failed to read serial number at %s: %w", r.Offset, err)
		}
		return DeviceSerialNumber{ExtendedRecord: r, Serial: uint64(hi)<<32 | uint64(lo)}, nil
	case ExtIDSRIOV:
		return decodeSRIOV(acc, r)
	case ExtIDVendorSpecific:
		hdr, err := access.Read32(acc, r.Address, r.Offset+4)
		if err != nil {
			return nil, fmt.Errorf("failed to read vendor specific header at %s: %w", r.Offset, err)
		}
		return VendorSpecificExtended{
			ExtendedRecord: r,
			VSECID:         uint16(hdr),
			VSECRevision:   uint8(hdr>>16) & 0xf,
			Length:         uint16(hdr >> 20),
		}, nil
	}

	data, err := access.ReadBytes(acc, r.Address, r.Offset, rawLength(r.Offset, r.Next, address.ExtendedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s capability at %s: %w", r.Name(), r.Offset, err)
	}
	return ExtendedRaw{ExtendedRecord: r, Data: data}, nil
}

func decodeAER(acc access.Accessor, r ExtendedRecord) (ExtendedCapability, error) {
	a := AER{ExtendedRecord: r}
	for _, f := range []struct {
		off address.Register
		dst *uint32
	}{
		{0x04, &a.UncorrectableStatus},
		{0x08, &a.UncorrectableMask},
		{0x0c, &a.UncorrectableSeverity},
		{0x10, &a.CorrectableStatus},
		{0x14, &a.CorrectableMask},
		{0x18, &a.CapabilitiesControl},
	} {
		v, err := access.Read32(acc, r.Address, r.Offset+f.off)
		if err != nil {
			return nil, fmt.Errorf("failed to read aer register %s: %w", r.Offset+f.off, err)
		}
		*f.dst = v
	}
	return a, nil
}

func decodeSRIOV(acc access.Accessor, r ExtendedRecord) (ExtendedCapability, error) {
	s := SRIOV{ExtendedRecord: r}

	var err error
	if s.Capabilities, err = access.Read32(acc, r.Address, r.Offset+0x04); err != nil {
		return nil, fmt.Errorf("failed to read sr-iov capabilities at %s: %w", r.Offset, err)
	}
	for _, f := range []struct {
		off address.Register
		dst *uint16
	}{
		{0x08, &s.Control},
		{0x0a, &s.Status},
		{0x0c, &s.InitialVFs},
		{0x0e, &s.TotalVFs},
		{0x10, &s.NumVFs},
		{0x14, &s.FirstVFOffset},
		{0x16, &s.VFStride},
		{0x1a, &s.VFDeviceID},
	} {
		if *f.dst, err = access.Read16(acc, r.Address, r.Offset+f.off); err != nil {
			return nil, fmt.Errorf("failed to read sr-iov register %s: %w", r.Offset+f.off, err)
		}
	}
	return s, nil
}
