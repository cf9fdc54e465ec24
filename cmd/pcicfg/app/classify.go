// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ironcore-dev/pci-utils/decodeutils/class"
	"github.com/spf13/cobra"
)

type classifyEntry struct {
	ClassCode string `json:"classCode"`
	class.Descriptor
	USB string `json:"usb,omitempty"`
}

func classifyCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <class code>...",
		Short: "Name 24 bit class codes such as 020000",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := make([]classifyEntry, 0, len(args))
			var sb strings.Builder
			for _, arg := range args {
				v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(arg), "0x"), 16, 24)
				if err != nil {
					return fmt.Errorf("invalid class code %q: %w", arg, err)
				}
				code := class.FromUint32(uint32(v))
				e := classifyEntry{
					ClassCode:  code.String(),
					Descriptor: code.Describe(),
				}
				if usb, ok := code.USB(); ok {
					e.USB = usb.String()
				}
				entries = append(entries, e)
				fmt.Fprintf(&sb, "%s: %s\n", e.ClassCode, e.Descriptor)
			}
			return o.print(cmd.OutOrStdout(), entries, sb.String())
		},
	}
}
