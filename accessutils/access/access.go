// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

var (
	ErrUnsupportedWidth = errors.New("unsupported access width")
	ErrMisaligned       = errors.New("misaligned config space access")
	ErrOutOfRange       = errors.New("config space access out of range")
)

type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

func (w Width) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

func (w Width) Bytes() int {
	return int(w) / 8
}

// AllOnes is what a read of width w returns for an absent function.
func AllOnes(w Width) uint64 {
	if w == Width64 {
		return ^uint64(0)
	}
	return uint64(1)<<w - 1
}

// Accessor reads and writes configuration space registers. Accesses are atomic at
// the given width. Absent functions and unimplemented registers read as all-ones.
type Accessor interface {
	Read(addr address.Address, reg address.Register, width Width) (uint64, error)
	Write(addr address.Address, reg address.Register, width Width, value uint64) error
}

// Check validates width, natural alignment and range of an access.
func Check(reg address.Register, width Width) error {
	if !width.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedWidth, width)
	}
	if int(reg)%width.Bytes() != 0 {
		return fmt.Errorf("%w: %d bit access at %s", ErrMisaligned, width, reg)
	}
	if int(reg)+width.Bytes() > int(address.ExtendedSize) {
		return fmt.Errorf("%w: %d bit access at %s", ErrOutOfRange, width, reg)
	}
	return nil
}

func Read8(acc Accessor, addr address.Address, reg address.Register) (uint8, error) {
	v, err := acc.Read(addr, reg, Width8)
	return uint8(v), err
}

func Read16(acc Accessor, addr address.Address, reg address.Register) (uint16, error) {
	v, err := acc.Read(addr, reg, Width16)
	return uint16(v), err
}

func Read32(acc Accessor, addr address.Address, reg address.Register) (uint32, error) {
	v, err := acc.Read(addr, reg, Width32)
	return uint32(v), err
}

func Write8(acc Accessor, addr address.Address, reg address.Register, value uint8) error {
	return acc.Write(addr, reg, Width8, uint64(value))
}

func Write16(acc Accessor, addr address.Address, reg address.Register, value uint16) error {
	return acc.Write(addr, reg, Width16, uint64(value))
}

func Write32(acc Accessor, addr address.Address, reg address.Register, value uint32) error {
	return acc.Write(addr, reg, Width32, uint64(value))
}

// ReadBytes reads n bytes starting at reg using the widest aligned accesses.
func ReadBytes(acc Accessor, addr address.Address, reg address.Register, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for off := reg; len(buf) < n; {
		width := Width8
		switch {
		case off%4 == 0 && n-len(buf) >= 4:
			width = Width32
		case off%2 == 0 && n-len(buf) >= 2:
			width = Width16
		}
		v, err := acc.Read(addr, off, width)
		if err != nil {
			return buf, err
		}
		for i := 0; i < width.Bytes(); i++ {
			buf = append(buf, byte(v>>(8*i)))
		}
		off += address.Register(width.Bytes())
	}
	return buf, nil
}

type locked struct {
	mu  sync.Mutex
	acc Accessor
}

// Locked serialises single accesses to acc. Multi-access sequences such as BAR
// sizing still need to be serialised by the caller.
func Locked(acc Accessor) Accessor {
	return &locked{acc: acc}
}

func (l *locked) Read(addr address.Address, reg address.Register, width Width) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acc.Read(addr, reg, width)
}

func (l *locked) Write(addr address.Address, reg address.Register, width Width, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acc.Write(addr, reg, width, value)
}
