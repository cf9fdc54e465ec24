// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package address

import "fmt"

// Register is a byte offset into the configuration space of one function.
type Register uint16

const (
	LegacySize   Register = 0x100
	ExtendedBase Register = 0x100
	ExtendedSize Register = 0x1000
)

// Fixed header offsets shared by all header types.
const (
	RegVendorID      Register = 0x00
	RegDeviceID      Register = 0x02
	RegCommand       Register = 0x04
	RegStatus        Register = 0x06
	RegRevision      Register = 0x08
	RegProgIF        Register = 0x09
	RegSubclass      Register = 0x0a
	RegClass         Register = 0x0b
	RegCacheLineSize Register = 0x0c
	RegLatencyTimer  Register = 0x0d
	RegHeaderType    Register = 0x0e
	RegBIST          Register = 0x0f
	RegBAR0          Register = 0x10

	RegCapabilityList        Register = 0x34
	RegCardBusCapabilityList Register = 0x14
	RegInterruptLine         Register = 0x3c
	RegInterruptPin          Register = 0x3d

	HeaderSize Register = 0x40
)

func (r Register) Valid() bool {
	return r < ExtendedSize
}

func (r Register) Extended() bool {
	return r >= ExtendedBase && r < ExtendedSize
}

// BAR returns the register of BAR slot n.
func BAR(n int) Register {
	return RegBAR0 + Register(n)*4
}

func (r Register) String() string {
	return fmt.Sprintf("%#x", uint16(r))
}
