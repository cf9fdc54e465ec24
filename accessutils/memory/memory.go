// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

var ErrNoFunction = errors.New("function not present")

type function struct {
	size     int
	data     [address.ExtendedSize]byte
	writable [address.ExtendedSize]byte
}

// Space is an in-memory configuration space. Functions that were never added read
// as all-ones and drop writes. Writes only change bits marked writable; every bit
// is writable until SetWritable narrows it.
type Space struct {
	mu        sync.RWMutex
	functions map[address.Address]*function
}

func New() *Space {
	return &Space{
		functions: map[address.Address]*function{},
	}
}

// Add installs a zeroed function with a full 4 KiB configuration space.
func (s *Space) Add(addr address.Address) {
	_ = s.Load(addr, make([]byte, address.ExtendedSize))
}

// Load installs a configuration space dump for addr. Dumps of 256 bytes model
// conventional PCI functions whose extended region reads as all-ones.
func (s *Space) Load(addr address.Address, dump []byte) error {
	if !addr.Valid() {
		return fmt.Errorf("%w: %s", address.ErrInvalidAddress, addr)
	}
	if len(dump) == 0 || len(dump) > int(address.ExtendedSize) {
		return fmt.Errorf("invalid config space dump of %d bytes for %s", len(dump), addr)
	}

	fn := &function{size: len(dump)}
	copy(fn.data[:], dump)
	for i := range fn.writable {
		fn.writable[i] = 0xff
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.functions[addr] = fn
	return nil
}

func (s *Space) Remove(addr address.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.functions, addr)
}

// Addresses returns the installed functions in bus order.
func (s *Space) Addresses() []address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]address.Address, 0, len(s.functions))
	for addr := range s.functions {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b address.Address) int {
		return cmp.Compare(a.Packed(), b.Packed())
	})
	return addrs
}

// SetWritable sets which bits of the register may be changed by Write.
func (s *Space) SetWritable(addr address.Address, reg address.Register, width access.Width, mask uint64) error {
	return s.update(addr, reg, width, func(fn *function, i int, shift int) {
		fn.writable[i] = byte(mask >> shift)
	})
}

// Poke stores value regardless of the writable mask.
func (s *Space) Poke(addr address.Address, reg address.Register, width access.Width, value uint64) error {
	return s.update(addr, reg, width, func(fn *function, i int, shift int) {
		fn.data[i] = byte(value >> shift)
	})
}

// Bytes returns a copy of the configuration space of addr.
func (s *Space) Bytes(addr address.Address) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn, ok := s.functions[addr]
	if !ok {
		return nil, false
	}
	return slices.Clone(fn.data[:fn.size]), true
}

func (s *Space) Read(addr address.Address, reg address.Register, width access.Width) (uint64, error) {
	if err := access.Check(reg, width); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fn, ok := s.functions[addr]
	if !ok || int(reg) >= fn.size {
		return access.AllOnes(width), nil
	}

	var v uint64
	for i := 0; i < width.Bytes(); i++ {
		v |= uint64(fn.data[int(reg)+i]) << (8 * i)
	}
	return v, nil
}

func (s *Space) Write(addr address.Address, reg address.Register, width access.Width, value uint64) error {
	if err := access.Check(reg, width); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.functions[addr]
	if !ok || int(reg) >= fn.size {
		return nil
	}
	for i := 0; i < width.Bytes(); i++ {
		b := byte(value >> (8 * i))
		mask := fn.writable[int(reg)+i]
		fn.data[int(reg)+i] = fn.data[int(reg)+i]&^mask | b&mask
	}
	return nil
}

func (s *Space) update(addr address.Address, reg address.Register, width access.Width, set func(fn *function, i int, shift int)) error {
	if err := access.Check(reg, width); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.functions[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoFunction, addr)
	}
	if int(reg)+width.Bytes() > fn.size {
		return fmt.Errorf("%w: %s beyond %d byte config space of %s", access.ErrOutOfRange, reg, fn.size, addr)
	}
	for i := 0; i < width.Bytes(); i++ {
		set(fn, int(reg)+i, 8*i)
	}
	return nil
}
