// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
)

// PortType is the device/port type field of the PCI Express capability.
type PortType uint8

const (
	PortEndpoint            PortType = 0x0
	PortLegacyEndpoint      PortType = 0x1
	PortRootPort            PortType = 0x4
	PortUpstream            PortType = 0x5
	PortDownstream          PortType = 0x6
	PortPCIExpressToPCI     PortType = 0x7
	PortPCIToPCIExpress     PortType = 0x8
	PortRootComplexEndpoint PortType = 0x9
	PortRootComplexEvent    PortType = 0xa
)

func (t PortType) String() string {
	switch t {
	case PortEndpoint:
		return "endpoint"
	case PortLegacyEndpoint:
		return "legacy-endpoint"
	case PortRootPort:
		return "root-port"
	case PortUpstream:
		return "upstream-port"
	case PortDownstream:
		return "downstream-port"
	case PortPCIExpressToPCI:
		return "pcie-to-pci-bridge"
	case PortPCIToPCIExpress:
		return "pci-to-pcie-bridge"
	case PortRootComplexEndpoint:
		return "rc-integrated-endpoint"
	case PortRootComplexEvent:
		return "rc-event-collector"
	}
	return fmt.Sprintf("reserved(%d)", uint8(t))
}

func (t PortType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// HasLink reports whether the port type implements the link registers.
func (t PortType) HasLink() bool {
	return t != PortRootComplexEndpoint && t != PortRootComplexEvent
}

// LinkSpeed is the encoded link speed of the link capabilities and status registers.
type LinkSpeed uint8

func (s LinkSpeed) String() string {
	switch s {
	case 1:
		return "2.5GT/s"
	case 2:
		return "5GT/s"
	case 3:
		return "8GT/s"
	case 4:
		return "16GT/s"
	case 5:
		return "32GT/s"
	case 6:
		return "64GT/s"
	}
	return "unknown"
}

func (s LinkSpeed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type PCIExpress struct {
	Record
	Version                uint8
	PortType               PortType
	SlotImplemented        bool
	InterruptMessageNumber uint8
	DeviceCapabilities     uint32
	DeviceControl          uint16
	DeviceStatus           uint16
	LinkCapabilities       uint32
	LinkStatus             uint16
	MaxLinkSpeed           LinkSpeed
	MaxLinkWidth           uint8
	LinkSpeed              LinkSpeed
	LinkWidth              uint8
}

// MaxPayloadSupported is the largest TLP payload in bytes the function supports.
func (p PCIExpress) MaxPayloadSupported() int {
	return 128 << (p.DeviceCapabilities & 0x7)
}

// MaxPayload is the currently programmed TLP payload size in bytes.
func (p PCIExpress) MaxPayload() int {
	return 128 << ((p.DeviceControl >> 5) & 0x7)
}

func decodePCIExpress(acc access.Accessor, r Record) (Capability, error) {
	caps, err := access.Read16(acc, r.Address, r.Offset+2)
	if err != nil {
		return nil, fmt.Errorf("failed to read pci express capabilities at %s: %w", r.Offset, err)
	}
	p := PCIExpress{
		Record:                 r,
		Version:                uint8(caps & 0xf),
		PortType:               PortType(caps>>4) & 0xf,
		SlotImplemented:        caps&(1<<8) != 0,
		InterruptMessageNumber: uint8(caps>>9) & 0x1f,
	}

	if p.DeviceCapabilities, err = access.Read32(acc, r.Address, r.Offset+0x4); err != nil {
		return nil, fmt.Errorf("failed to read device capabilities at %s: %w", r.Offset, err)
	}
	if p.DeviceControl, err = access.Read16(acc, r.Address, r.Offset+0x8); err != nil {
		return nil, fmt.Errorf("failed to read device control at %s: %w", r.Offset, err)
	}
	if p.DeviceStatus, err = access.Read16(acc, r.Address, r.Offset+0xa); err != nil {
		return nil, fmt.Errorf("failed to read device status at %s: %w", r.Offset, err)
	}
	if !p.PortType.HasLink() {
		return p, nil
	}

	if p.LinkCapabilities, err = access.Read32(acc, r.Address, r.Offset+0xc); err != nil {
		return nil, fmt.Errorf("failed to read link capabilities at %s: %w", r.Offset, err)
	}
	if p.LinkStatus, err = access.Read16(acc, r.Address, r.Offset+0x12); err != nil {
		return nil, fmt.Errorf("failed to read link status at %s: %w", r.Offset, err)
	}
	p.MaxLinkSpeed = LinkSpeed(p.LinkCapabilities & 0xf)
	p.MaxLinkWidth = uint8(p.LinkCapabilities>>4) & 0x3f
	p.LinkSpeed = LinkSpeed(p.LinkStatus & 0xf)
	p.LinkWidth = uint8(p.LinkStatus>>4) & 0x3f
	return p, nil
}
