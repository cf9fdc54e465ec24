// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package sysfs

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/prometheus/procfs/sysfs"
)

type reader struct {
	log    logr.Logger
	fs     sysfs.FS
	filter Filter
}

// NewReader enumerates present functions below mountPoint, DefaultMountPoint if empty.
func NewReader(log logr.Logger, mountPoint string, filter Filter) (*reader, error) {
	if mountPoint == "" {
		mountPoint = DefaultMountPoint
	}
	fs, err := sysfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs: %w", err)
	}

	return &reader{
		log:    log,
		fs:     fs,
		filter: filter,
	}, nil
}

func (r *reader) Read() ([]Device, error) {
	devices, err := r.fs.PciDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to read pci devices: %w", err)
	}

	var found []Device
	for _, device := range devices {
		switch {
		case !r.filter.matchesClass(device.Class):
			r.log.V(3).Info(
				"Skipping device, class not matching",
				"device", device.Name(), "expected class",
				r.filter.Class, "found class", device.Class,
			)
			continue
		case !r.filter.matchesVendor(device.Vendor):
			r.log.V(3).Info(
				"Skipping device, vendor not matching",
				"device", device.Name(), "expected vendor",
				r.filter.Vendor, "found vendor", device.Vendor,
			)
			continue
		}

		addr, err := address.New(
			uint16(device.Location.Segment),
			uint8(device.Location.Bus),
			uint8(device.Location.Device),
			uint8(device.Location.Function),
		)
		if err != nil {
			r.log.V(1).Info("Skipping device with invalid location", "device", device.Name(), "error", err)
			continue
		}

		r.log.V(1).Info("Found matching pci device", "device", device.Name())
		found = append(found, Device{
			Address:  addr,
			Vendor:   uint16(device.Vendor),
			Device:   uint16(device.Device),
			Class:    device.Class,
			Revision: uint8(device.Revision),
		})
	}

	return found, nil
}
