// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"github.com/ironcore-dev/pci-utils/accessutils/memory"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/spf13/cobra"
)

func decodeCommand(o *options) *cobra.Command {
	var (
		file string
		addr string
		f    = &inspectFlags{}
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a saved configuration space dump",
		Long:  "Accepts a binary copy of a sysfs config file or lspci -x, -xxx or -xxxx output.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read dump: %w", err)
			}
			dumps, err := memory.ParseDump(data)
			if err != nil {
				return err
			}

			fallback, err := address.Parse(addr)
			if err != nil {
				return err
			}

			space := memory.New()
			for _, d := range dumps {
				target := d.Address
				if !d.HasAddress {
					target = fallback
				}
				if err := space.Load(target, d.Data); err != nil {
					return err
				}
				o.log.V(1).Info("Loaded dump", "address", target.String(), "size", len(d.Data))
			}
			return o.inspect(cmd, space, space.Addresses(), f)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "dump to decode")
	cmd.Flags().StringVar(&addr, "address", "0000:00:00.0", "address of dumps without one")
	cmd.Flags().BoolVar(&f.skipExtended, "skip-extended", false, "do not walk extended capabilities")
	cmd.Flags().BoolVar(&f.events, "events", false, "print recorded warnings to stderr")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
