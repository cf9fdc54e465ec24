// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"fmt"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

// UpdateCommand applies fn to the command register of addr.
func UpdateCommand(acc access.Accessor, addr address.Address, fn func(Command) Command) error {
	v, err := access.Read16(acc, addr, address.RegCommand)
	if err != nil {
		return fmt.Errorf("failed to read command of %s: %w", addr, err)
	}
	if err := access.Write16(acc, addr, address.RegCommand, uint16(fn(Command(v)))); err != nil {
		return fmt.Errorf("failed to write command of %s: %w", addr, err)
	}
	return nil
}

// UpdateInterrupt applies fn to the interrupt pin and line registers of addr.
// The pin is read-only on real hardware.
func UpdateInterrupt(acc access.Accessor, addr address.Address, fn func(pin, line uint8) (uint8, uint8)) error {
	v, err := access.Read16(acc, addr, address.RegInterruptLine)
	if err != nil {
		return fmt.Errorf("failed to read interrupt of %s: %w", addr, err)
	}
	pin, line := fn(uint8(v>>8), uint8(v))
	if err := access.Write16(acc, addr, address.RegInterruptLine, uint16(pin)<<8|uint16(line)); err != nil {
		return fmt.Errorf("failed to write interrupt of %s: %w", addr, err)
	}
	return nil
}

// ClearStatus clears the given write-one-to-clear error bits of the status register.
func ClearStatus(acc access.Accessor, addr address.Address, bits Status) error {
	if err := access.Write16(acc, addr, address.RegStatus, uint16(bits.Errors())); err != nil {
		return fmt.Errorf("failed to clear status of %s: %w", addr, err)
	}
	return nil
}
