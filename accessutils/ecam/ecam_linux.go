// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package ecam

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const DefaultDevice = "/dev/mem"

// Open maps the ECAM window at physical address base, as reported by the MCFG
// table for segment and buses [startBus, endBus].
func Open(path string, base uint64, segment uint16, startBus, endBus uint8) (*Region, error) {
	if endBus < startBus {
		return nil, fmt.Errorf("invalid bus range %02x-%02x", startBus, endBus)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	size := (int(endBus) - int(startBus) + 1) * busWindow
	mem, err := unix.Mmap(int(f.Fd()), int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map ecam window %#x+%#x: %w", base, size, err)
	}

	r, err := NewRegion(mem, segment, startBus, endBus)
	if err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	r.closer = func() error {
		return unix.Munmap(mem)
	}
	return r, nil
}
