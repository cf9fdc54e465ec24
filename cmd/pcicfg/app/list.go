// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strings"

	"github.com/ironcore-dev/pci-utils/accessutils/sysfs"
	"github.com/ironcore-dev/pci-utils/decodeutils/class"
	"github.com/spf13/cobra"
)

type listEntry struct {
	Address    string `json:"address"`
	VendorID   string `json:"vendorID"`
	DeviceID   string `json:"deviceID"`
	VendorName string `json:"vendorName,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	Revision   uint8  `json:"revision"`
	ClassCode  string `json:"classCode"`
	Class      string `json:"class"`
}

func listCommand(o *options) *cobra.Command {
	var vendor, classCode, classMask uint32

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List present functions from sysfs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader, err := sysfs.NewReader(o.log, o.sysfsRoot, sysfs.Filter{
				Vendor:    sysfs.Vendor(vendor),
				Class:     sysfs.Class(classCode),
				ClassMask: classMask,
			})
			if err != nil {
				return err
			}
			devices, err := reader.Read()
			if err != nil {
				return err
			}

			entries := make([]listEntry, 0, len(devices))
			var sb strings.Builder
			for _, d := range devices {
				code := class.FromUint32(d.Class)
				e := listEntry{
					Address:   d.Address.String(),
					VendorID:  fmt.Sprintf("%04x", d.Vendor),
					DeviceID:  fmt.Sprintf("%04x", d.Device),
					Revision:  d.Revision,
					ClassCode: code.String(),
					Class:     code.Describe().String(),
				}
				e.VendorName, e.DeviceName = names(d.Vendor, d.Device)
				entries = append(entries, e)

				fmt.Fprintf(&sb, "%s %s [%s]: %s [%s:%s] (rev %02x)\n", e.Address, e.Class, e.ClassCode,
					strings.TrimSpace(e.VendorName+" "+e.DeviceName), e.VendorID, e.DeviceID, e.Revision)
			}
			return o.print(cmd.OutOrStdout(), entries, sb.String())
		},
	}

	cmd.Flags().Uint32Var(&vendor, "vendor", 0, "only list functions of this vendor id")
	cmd.Flags().Uint32Var(&classCode, "class", 0, "only list functions of this 24 bit class code")
	cmd.Flags().Uint32Var(&classMask, "class-mask", 0, "bits of --class to compare, all if unset")
	return cmd
}
