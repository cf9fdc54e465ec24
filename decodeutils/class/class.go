// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package class

import (
	"fmt"
)

const (
	Unclassified    = "Unclassified"
	UnknownSubclass = "Unknown subclass"
)

// Code is the class, subclass and programming interface triple of a function.
type Code struct {
	Class    uint8
	Subclass uint8
	ProgIF   uint8
}

// FromUint32 splits a 24 bit 0xCCSSPP class value as exposed by sysfs.
func FromUint32(v uint32) Code {
	return Code{
		Class:    uint8(v >> 16),
		Subclass: uint8(v >> 8),
		ProgIF:   uint8(v),
	}
}

func (c Code) Uint32() uint32 {
	return uint32(c.Class)<<16 | uint32(c.Subclass)<<8 | uint32(c.ProgIF)
}

func (c Code) String() string {
	return fmt.Sprintf("%02x%02x%02x", c.Class, c.Subclass, c.ProgIF)
}

func (c Code) Describe() Descriptor {
	return Classify(c.Class, c.Subclass, c.ProgIF)
}

// Descriptor names a class code.
type Descriptor struct {
	Code      Code       `json:"-"`
	Class     string     `json:"class"`
	Subclass  string     `json:"subclass"`
	Interface string     `json:"interface,omitempty"`
	Type      DeviceType `json:"type"`
}

func (d Descriptor) String() string {
	if d.Interface == "" {
		return fmt.Sprintf("%s: %s", d.Class, d.Subclass)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Class, d.Subclass, d.Interface)
}

// Classify never fails. Unknown classes are "Unclassified", unknown subclasses
// "Unknown subclass" and unknown programming interfaces have no name.
func Classify(class, subclass, progIF uint8) Descriptor {
	d := Descriptor{
		Code:     Code{Class: class, Subclass: subclass, ProgIF: progIF},
		Class:    Unclassified,
		Subclass: UnknownSubclass,
		Type:     TypeOf(class, subclass),
	}

	name, ok := classNames[class]
	if !ok {
		return d
	}
	d.Class = name

	if d.Type != Unknown {
		d.Subclass = d.Type.String()
	}
	d.Interface = interfaceNames[d.Code]
	return d
}

var classNames = map[uint8]string{
	0x00: "Unclassified device",
	0x01: "Mass storage controller",
	0x02: "Network controller",
	0x03: "Display controller",
	0x04: "Multimedia controller",
	0x05: "Memory controller",
	0x06: "Bridge",
	0x07: "Communication controller",
	0x08: "Generic system peripheral",
	0x09: "Input device controller",
	0x0a: "Docking station",
	0x0b: "Processor",
	0x0c: "Serial bus controller",
	0x0d: "Wireless controller",
	0x0e: "Intelligent controller",
	0x0f: "Satellite communications controller",
	0x10: "Encryption controller",
	0x11: "Signal processing controller",
	0x12: "Processing accelerators",
	0x13: "Non-Essential Instrumentation",
	0x40: "Coprocessor",
	0xff: "Unassigned class",
}

var interfaceNames = map[Code]string{
	{0x01, 0x01, 0x80}: "ISA Compatibility mode-only controller, supports bus mastering",
	{0x01, 0x01, 0x8a}: "ISA Compatibility mode controller, supports both channels switched to PCI native mode, supports bus mastering",
	{0x01, 0x05, 0x20}: "ADMA single stepping",
	{0x01, 0x05, 0x30}: "ADMA continuous operation",
	{0x01, 0x06, 0x00}: "Vendor specific",
	{0x01, 0x06, 0x01}: "AHCI 1.0",
	{0x01, 0x06, 0x02}: "Serial Storage Bus",
	{0x01, 0x07, 0x01}: "Serial Storage Bus",
	{0x01, 0x08, 0x01}: "NVMHCI",
	{0x01, 0x08, 0x02}: "NVM Express",
	{0x03, 0x00, 0x00}: "VGA controller",
	{0x03, 0x00, 0x01}: "8514 controller",
	{0x06, 0x04, 0x00}: "Normal decode",
	{0x06, 0x04, 0x01}: "Subtractive decode",
	{0x07, 0x00, 0x00}: "8250",
	{0x07, 0x00, 0x01}: "16450",
	{0x07, 0x00, 0x02}: "16550",
	{0x08, 0x00, 0x00}: "8259",
	{0x08, 0x00, 0x10}: "IO-APIC",
	{0x08, 0x00, 0x20}: "IO(X)-APIC",
	{0x0c, 0x03, 0x00}: "UHCI",
	{0x0c, 0x03, 0x10}: "OHCI",
	{0x0c, 0x03, 0x20}: "EHCI",
	{0x0c, 0x03, 0x30}: "XHCI",
	{0x0c, 0x03, 0x80}: "Unspecified",
	{0x0c, 0x03, 0xfe}: "USB Device",
	{0x0c, 0x07, 0x00}: "SMIC",
	{0x0c, 0x07, 0x01}: "KCS",
	{0x0c, 0x07, 0x02}: "BT (Block Transfer)",
}
