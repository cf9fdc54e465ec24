// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"encoding/binary"
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/decodeutils/class"
)

const absentVendorID = 0xffff

type Type uint8

const (
	General Type = iota
	PCIBridge
	CardBusBridge
)

func (t Type) String() string {
	switch t {
	case General:
		return "general"
	case PCIBridge:
		return "pci-bridge"
	case CardBusBridge:
		return "cardbus-bridge"
	}
	return fmt.Sprintf("unknown(%#x)", uint8(t))
}

func (t Type) Known() bool {
	return t <= CardBusBridge
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// BARCount is the number of BAR slots of the header layout.
func (t Type) BARCount() int {
	switch t {
	case General:
		return 6
	case PCIBridge:
		return 2
	case CardBusBridge:
		return 1
	}
	return 0
}

// Header is a snapshot of the first 64 bytes of a function's configuration space.
type Header struct {
	VendorID      uint16
	DeviceID      uint16
	Command       Command
	Status        Status
	Revision      uint8
	ProgIF        uint8
	Subclass      uint8
	Class         uint8
	CacheLineSize uint8
	LatencyTimer  uint8
	Type          Type
	MultiFunction bool
	BIST          uint8

	// CapabilitiesPointer is zero when the status register reports no capability list.
	CapabilitiesPointer uint8
	InterruptLine       uint8
	InterruptPin        uint8

	General *GeneralFields
	Bridge  *BridgeFields
	CardBus *CardBusFields
}

type GeneralFields struct {
	CardBusCIS        uint32
	SubsystemVendorID uint16
	SubsystemID       uint16
	ExpansionROM      uint32
	MinGrant          uint8
	MaxLatency        uint8
}

type BridgeFields struct {
	PrimaryBus             uint8
	SecondaryBus           uint8
	SubordinateBus         uint8
	SecondaryLatencyTimer  uint8
	IOBase                 uint8
	IOLimit                uint8
	SecondaryStatus        Status
	MemoryBase             uint16
	MemoryLimit            uint16
	PrefetchableBase       uint16
	PrefetchableLimit      uint16
	PrefetchableBaseUpper  uint32
	PrefetchableLimitUpper uint32
	IOBaseUpper            uint16
	IOLimitUpper           uint16
	ExpansionROM           uint32
	BridgeControl          uint16
}

type CardBusFields struct {
	SocketBase      uint32
	SecondaryStatus Status
	PCIBus          uint8
	CardBus         uint8
	SubordinateBus  uint8
	LatencyTimer    uint8
	BridgeControl   uint16
}

// Window is an address range forwarded by a bridge. Limit is inclusive.
type Window struct {
	Base  uint64
	Limit uint64
}

// IOWindow reports false if the window is disabled.
func (b *BridgeFields) IOWindow() (Window, bool) {
	w := Window{
		Base:  uint64(b.IOBase&0xf0) << 8,
		Limit: uint64(b.IOLimit&0xf0)<<8 | 0xfff,
	}
	if b.IOBase&0xf == 0x1 {
		w.Base |= uint64(b.IOBaseUpper) << 16
		w.Limit |= uint64(b.IOLimitUpper) << 16
	}
	return w, w.Base <= w.Limit
}

func (b *BridgeFields) MemoryWindow() (Window, bool) {
	w := Window{
		Base:  uint64(b.MemoryBase&0xfff0) << 16,
		Limit: uint64(b.MemoryLimit&0xfff0)<<16 | 0xfffff,
	}
	return w, w.Base <= w.Limit
}

func (b *BridgeFields) PrefetchableWindow() (Window, bool) {
	w := Window{
		Base:  uint64(b.PrefetchableBase&0xfff0) << 16,
		Limit: uint64(b.PrefetchableLimit&0xfff0)<<16 | 0xfffff,
	}
	if b.PrefetchableBase&0xf == 0x1 {
		w.Base |= uint64(b.PrefetchableBaseUpper) << 32
		w.Limit |= uint64(b.PrefetchableLimitUpper) << 32
	}
	return w, w.Base <= w.Limit
}

func (h Header) Code() class.Code {
	return class.Code{Class: h.Class, Subclass: h.Subclass, ProgIF: h.ProgIF}
}

func (h Header) BARCount() int {
	return h.Type.BARCount()
}

// Read decodes the header of addr. An absent function is reported with ok set to
// false after a single vendor ID read.
func Read(acc access.Accessor, addr address.Address) (Header, bool, error) {
	vendor, err := access.Read16(acc, addr, address.RegVendorID)
	if err != nil {
		return Header{}, false, fmt.Errorf("failed to read vendor id of %s: %w", addr, err)
	}
	if vendor == absentVendorID {
		return Header{}, false, nil
	}

	var raw [address.HeaderSize]byte
	for reg := address.Register(0); reg < address.HeaderSize; reg += 4 {
		v, err := access.Read32(acc, addr, reg)
		if err != nil {
			return Header{}, false, fmt.Errorf("failed to read header of %s at %s: %w", addr, reg, err)
		}
		binary.LittleEndian.PutUint32(raw[reg:], v)
	}

	return Decode(raw[:]), true, nil
}

// Decode interprets a raw header. raw must hold at least 64 bytes.
func Decode(raw []byte) Header {
	le := binary.LittleEndian
	h := Header{
		VendorID:      le.Uint16(raw[address.RegVendorID:]),
		DeviceID:      le.Uint16(raw[address.RegDeviceID:]),
		Command:       Command(le.Uint16(raw[address.RegCommand:])),
		Status:        Status(le.Uint16(raw[address.RegStatus:])),
		Revision:      raw[address.RegRevision],
		ProgIF:        raw[address.RegProgIF],
		Subclass:      raw[address.RegSubclass],
		Class:         raw[address.RegClass],
		CacheLineSize: raw[address.RegCacheLineSize],
		LatencyTimer:  raw[address.RegLatencyTimer],
		Type:          Type(raw[address.RegHeaderType] & 0x7f),
		MultiFunction: raw[address.RegHeaderType]&0x80 != 0,
		BIST:          raw[address.RegBIST],
		InterruptLine: raw[address.RegInterruptLine],
		InterruptPin:  raw[address.RegInterruptPin],
	}

	capPtr := address.RegCapabilityList
	switch h.Type {
	case General:
		h.General = &GeneralFields{
			CardBusCIS:        le.Uint32(raw[0x28:]),
			SubsystemVendorID: le.Uint16(raw[0x2c:]),
			SubsystemID:       le.Uint16(raw[0x2e:]),
			ExpansionROM:      le.Uint32(raw[0x30:]),
			MinGrant:          raw[0x3e],
			MaxLatency:        raw[0x3f],
		}
	case PCIBridge:
		h.Bridge = &BridgeFields{
			PrimaryBus:             raw[0x18],
			SecondaryBus:           raw[0x19],
			SubordinateBus:         raw[0x1a],
			SecondaryLatencyTimer:  raw[0x1b],
			IOBase:                 raw[0x1c],
			IOLimit:                raw[0x1d],
			SecondaryStatus:        Status(le.Uint16(raw[0x1e:])),
			MemoryBase:             le.Uint16(raw[0x20:]),
			MemoryLimit:            le.Uint16(raw[0x22:]),
			PrefetchableBase:       le.Uint16(raw[0x24:]),
			PrefetchableLimit:      le.Uint16(raw[0x26:]),
			PrefetchableBaseUpper:  le.Uint32(raw[0x28:]),
			PrefetchableLimitUpper: le.Uint32(raw[0x2c:]),
			IOBaseUpper:            le.Uint16(raw[0x30:]),
			IOLimitUpper:           le.Uint16(raw[0x32:]),
			ExpansionROM:           le.Uint32(raw[0x38:]),
			BridgeControl:          le.Uint16(raw[0x3e:]),
		}
	case CardBusBridge:
		capPtr = address.RegCardBusCapabilityList
		h.CardBus = &CardBusFields{
			SocketBase:      le.Uint32(raw[0x10:]),
			SecondaryStatus: Status(le.Uint16(raw[0x16:])),
			PCIBus:          raw[0x18],
			CardBus:         raw[0x19],
			SubordinateBus:  raw[0x1a],
			LatencyTimer:    raw[0x1b],
			BridgeControl:   le.Uint16(raw[0x3e:]),
		}
	}

	if h.Status.CapabilitiesList() && h.Type.Known() {
		h.CapabilitiesPointer = raw[capPtr] & 0xfc
	}
	return h
}
