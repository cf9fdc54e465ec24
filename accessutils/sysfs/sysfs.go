// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package sysfs

import (
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

const DefaultMountPoint = "/sys"

type Class uint32
type Vendor uint32

var (
	ClassNetworkEthernet Class = 0x020000
	Class3DController    Class = 0x030200
	ClassNVMController   Class = 0x010802

	VendorIntel  Vendor = 0x8086
	VendorNvidia Vendor = 0x10de
)

// Filter restricts the reader to matching functions. Zero fields match every function.
type Filter struct {
	Vendor Vendor
	Class  Class
	// ClassMask selects the compared bits of Class, zero compares all of them.
	ClassMask uint32
}

func (f Filter) matchesVendor(vendor uint32) bool {
	return f.Vendor == 0 || uint32(f.Vendor) == vendor
}

func (f Filter) matchesClass(class uint32) bool {
	if f.Class == 0 {
		return true
	}
	mask := f.ClassMask
	if mask == 0 {
		mask = 0xffffff
	}
	return class&mask == uint32(f.Class)&mask
}

// Device is a present function as reported by sysfs.
type Device struct {
	Address  address.Address
	Vendor   uint16
	Device   uint16
	Class    uint32
	Revision uint8
}

type Reader interface {
	Read() ([]Device, error)
}
