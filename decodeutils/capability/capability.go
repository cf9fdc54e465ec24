// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"errors"
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

var (
	ErrMalformedCapabilityList = errors.New("malformed capability list")
	ErrNotSupported            = errors.New("not supported by capability")
	ErrInvalidValue            = errors.New("invalid capability register value")
)

// Legacy capability IDs.
const (
	IDNull                uint8 = 0x00
	IDPowerManagement     uint8 = 0x01
	IDAGP                 uint8 = 0x02
	IDVPD                 uint8 = 0x03
	IDSlotID              uint8 = 0x04
	IDMSI                 uint8 = 0x05
	IDCompactPCIHotSwap   uint8 = 0x06
	IDPCIX                uint8 = 0x07
	IDHyperTransport      uint8 = 0x08
	IDVendorSpecific      uint8 = 0x09
	IDDebugPort           uint8 = 0x0a
	IDCompactPCIResource  uint8 = 0x0b
	IDPCIHotPlug          uint8 = 0x0c
	IDBridgeSubsystemVID  uint8 = 0x0d
	IDAGP8x               uint8 = 0x0e
	IDSecureDevice        uint8 = 0x0f
	IDPCIExpress          uint8 = 0x10
	IDMSIX                uint8 = 0x11
	IDSATADataIndex       uint8 = 0x12
	IDAdvancedFeatures    uint8 = 0x13
	IDEnhancedAllocation  uint8 = 0x14
	IDFlatteningPortalBus uint8 = 0x15
)

var names = map[uint8]string{
	IDNull:                "Null",
	IDPowerManagement:     "Power Management",
	IDAGP:                 "AGP",
	IDVPD:                 "Vital Product Data",
	IDSlotID:              "Slot Identification",
	IDMSI:                 "MSI",
	IDCompactPCIHotSwap:   "CompactPCI HotSwap",
	IDPCIX:                "PCI-X",
	IDHyperTransport:      "HyperTransport",
	IDVendorSpecific:      "Vendor Specific",
	IDDebugPort:           "Debug Port",
	IDCompactPCIResource:  "CompactPCI Central Resource Control",
	IDPCIHotPlug:          "PCI Hot-Plug",
	IDBridgeSubsystemVID:  "Bridge Subsystem Vendor ID",
	IDAGP8x:               "AGP 8x",
	IDSecureDevice:        "Secure Device",
	IDPCIExpress:          "PCI Express",
	IDMSIX:                "MSI-X",
	IDSATADataIndex:       "SATA Data/Index",
	IDAdvancedFeatures:    "Advanced Features",
	IDEnhancedAllocation:  "Enhanced Allocation",
	IDFlatteningPortalBus: "Flattening Portal Bridge",
}

func Name(id uint8) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%#x)", id)
}

// maxRawBytes bounds the payload kept for capabilities without a dedicated decoder.
const maxRawBytes = 256

// footprints are the bytes the typed decoders read from the capability offset.
var footprints = map[uint8]address.Register{
	IDPowerManagement: 0x08,
	IDMSI:             0x04,
	IDMSIX:            0x0c,
	IDPCIExpress:      0x14,
	IDVendorSpecific:  0x03,
}

// footprint is the size a capability with id needs; unknown ids only need their header.
func footprint(id uint8) address.Register {
	if n, ok := footprints[id]; ok {
		return n
	}
	return 2
}

// Record locates one entry of the legacy capability list. Next is zero for the last entry.
type Record struct {
	Address address.Address
	ID      uint8
	Offset  address.Register
	Next    address.Register
}

func (r Record) Base() Record { return r }

func (r Record) Name() string { return Name(r.ID) }

func (Record) isCapability() {}

// Capability is one of PowerManagement, MSI, MSIX, PCIExpress, VendorSpecific or Raw.
type Capability interface {
	Base() Record
	Name() string
	isCapability()
}

type PowerManagement struct {
	Record
	Version      uint8
	PMEClock     bool
	DSI          bool
	AuxCurrent   uint8
	D1Support    bool
	D2Support    bool
	PMESupport   uint8
	PowerState   uint8
	NoSoftReset  bool
	PMEEnable    bool
	DataSelect   uint8
	DataScale    uint8
	PMEStatus    bool
	BridgeSignal uint8
}

type VendorSpecific struct {
	Record
	Length uint8
	Data   []byte
}

// Raw carries the bytes of a capability without a dedicated decoder, up to the
// next capability or the end of the region.
type Raw struct {
	Record
	Data []byte
}

func decode(acc access.Accessor, r Record) (Capability, error) {
	switch r.ID {
	case IDPowerManagement:
		return decodePowerManagement(acc, r)
	case IDMSI:
		return decodeMSI(acc, r)
	case IDMSIX:
		return decodeMSIX(acc, r)
	case IDPCIExpress:
		return decodePCIExpress(acc, r)
	case IDVendorSpecific:
		return decodeVendorSpecific(acc, r)
	}

	data, err := access.ReadBytes(acc, r.Address, r.Offset, rawLength(r.Offset, r.Next, address.LegacySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s capability at %s: %w", r.Name(), r.Offset, err)
	}
	return Raw{Record: r, Data: data}, nil
}

func rawLength(offset, next, end address.Register) int {
	n := int(end) - int(offset)
	if next > offset {
		n = int(next) - int(offset)
	}
	return min(n, maxRawBytes)
}

func decodePowerManagement(acc access.Accessor, r Record) (Capability, error) {
	pmc, err := access.Read16(acc, r.Address, r.Offset+2)
	if err != nil {
		return nil, fmt.Errorf("failed to read power management capabilities at %s: %w", r.Offset, err)
	}
	csr, err := access.Read16(acc, r.Address, r.Offset+4)
	if err != nil {
		return nil, fmt.Errorf("failed to read power management status at %s: %w", r.Offset, err)
	}
	bse, err := access.Read8(acc, r.Address, r.Offset+6)
	if err != nil {
		return nil, fmt.Errorf("failed to read power management bridge support at %s: %w", r.Offset, err)
	}

	return PowerManagement{
		Record:       r,
		Version:      uint8(pmc & 0x7),
		PMEClock:     pmc&(1<<3) != 0,
		DSI:          pmc&(1<<5) != 0,
		AuxCurrent:   uint8(pmc>>6) & 0x7,
		D1Support:    pmc&(1<<9) != 0,
		D2Support:    pmc&(1<<10) != 0,
		PMESupport:   uint8(pmc >> 11),
		PowerState:   uint8(csr & 0x3),
		NoSoftReset:  csr&(1<<3) != 0,
		PMEEnable:    csr&(1<<8) != 0,
		DataSelect:   uint8(csr>>9) & 0xf,
		DataScale:    uint8(csr>>13) & 0x3,
		PMEStatus:    csr&(1<<15) != 0,
		BridgeSignal: bse >> 6,
	}, nil
}

func decodeVendorSpecific(acc access.Accessor, r Record) (Capability, error) {
	length, err := access.Read8(acc, r.Address, r.Offset+2)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor specific length at %s: %w", r.Offset, err)
	}

	// The length covers the id, next and length bytes.
	n := int(length) - 3
	if end := int(address.LegacySize) - int(r.Offset) - 3; n > end {
		n = end
	}
	var data []byte
	if n > 0 {
		if data, err = access.ReadBytes(acc, r.Address, r.Offset+3, n); err != nil {
			return nil, fmt.Errorf("failed to read vendor specific data at %s: %w", r.Offset, err)
		}
	}
	return VendorSpecific{Record: r, Length: length, Data: data}, nil
}
