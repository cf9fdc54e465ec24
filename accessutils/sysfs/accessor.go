// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package sysfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

// Accessor reads and writes the per-function config files below <mount>/bus/pci/devices.
// Functions without a config file read as all-ones. Registers past the end of the
// file read as all-ones too: unprivileged readers only see the first 64 bytes and
// conventional functions only expose 256.
type Accessor struct {
	mountPoint string

	mu    sync.Mutex
	files map[address.Address]*os.File
}

func NewAccessor(mountPoint string) *Accessor {
	if mountPoint == "" {
		mountPoint = DefaultMountPoint
	}
	return &Accessor{
		mountPoint: mountPoint,
		files:      map[address.Address]*os.File{},
	}
}

func (a *Accessor) ConfigPath(addr address.Address) string {
	return filepath.Join(a.mountPoint, "bus", "pci", "devices", addr.String(), "config")
}

func (a *Accessor) file(addr address.Address) (*os.File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f, ok := a.files[addr]; ok {
		return f, nil
	}

	path := a.ConfigPath(addr)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrPermission) {
		f, err = os.Open(path)
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open config of %s: %w", addr, err)
	}

	a.files[addr] = f
	return f, nil
}

func (a *Accessor) Read(addr address.Address, reg address.Register, width access.Width) (uint64, error) {
	if err := access.Check(reg, width); err != nil {
		return 0, err
	}
	f, err := a.file(addr)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return access.AllOnes(width), nil
	}

	buf := make([]byte, width.Bytes())
	n, err := f.ReadAt(buf, int64(reg))
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			return access.AllOnes(width), nil
		}
		return 0, fmt.Errorf("failed to read %s of %s: %w", reg, addr, err)
	}

	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

func (a *Accessor) Write(addr address.Address, reg address.Register, width access.Width, value uint64) error {
	if err := access.Check(reg, width); err != nil {
		return err
	}
	f, err := a.file(addr)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}

	buf := make([]byte, width.Bytes())
	for i := range buf {
		buf[i] = byte(value >> (8 * i))
	}
	if _, err := f.WriteAt(buf, int64(reg)); err != nil {
		return fmt.Errorf("failed to write %s of %s: %w", reg, addr, err)
	}
	return nil
}

// Close releases all cached config file handles.
func (a *Accessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for addr, f := range a.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close config of %s: %w", addr, err))
		}
		delete(a.files, addr)
	}
	return errors.Join(errs...)
}
