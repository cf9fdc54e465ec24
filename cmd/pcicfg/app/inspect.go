// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/accessutils/sysfs"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/eventutils/recorder"
	"github.com/ironcore-dev/pci-utils/inspectutils/inspect"
	"github.com/spf13/cobra"
)

type inspectFlags struct {
	sizeBARs     bool
	skipExtended bool
	events       bool
}

func inspectCommand(o *options) *cobra.Command {
	f := &inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect [address...]",
		Short: "Decode the configuration space of functions",
		Long:  "Without addresses every function found in sysfs or in the ECAM window is inspected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := o.accessor()
			if err != nil {
				return err
			}
			defer func() {
				if err := acc.Close(); err != nil {
					o.log.Error(err, "Failed to close accessor")
				}
			}()

			addrs, err := o.targets(args)
			if err != nil {
				return err
			}
			return o.inspect(cmd, acc, addrs, f)
		},
	}

	cmd.Flags().BoolVar(&f.sizeBARs, "size-bars", false, "size BARs by writing all-ones to them")
	cmd.Flags().BoolVar(&f.skipExtended, "skip-extended", false, "do not walk extended capabilities")
	cmd.Flags().BoolVar(&f.events, "events", false, "print recorded warnings to stderr")
	return cmd
}

func (o *options) targets(args []string) ([]address.Address, error) {
	if len(args) > 0 {
		addrs := make([]address.Address, 0, len(args))
		for _, arg := range args {
			addr, err := address.Parse(arg)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, addr)
		}
		return addrs, nil
	}

	if o.ecamBase != 0 {
		var addrs []address.Address
		for bus := int(o.ecamStartBus); bus <= int(o.ecamEndBus); bus++ {
			for dev := uint8(0); dev <= address.MaxDevice; dev++ {
				for fn := uint8(0); fn <= address.MaxFunction; fn++ {
					addrs = append(addrs, address.MustNew(o.ecamSegment, uint8(bus), dev, fn))
				}
			}
		}
		return addrs, nil
	}

	reader, err := sysfs.NewReader(o.log, o.sysfsRoot, sysfs.Filter{})
	if err != nil {
		return nil, err
	}
	devices, err := reader.Read()
	if err != nil {
		return nil, err
	}
	addrs := make([]address.Address, 0, len(devices))
	for _, d := range devices {
		addrs = append(addrs, d.Address)
	}
	return addrs, nil
}

func (o *options) inspect(cmd *cobra.Command, acc access.Accessor, addrs []address.Address, f *inspectFlags) error {
	store := recorder.NewStore(o.log, recorder.StoreOptions{})
	inspector := inspect.NewInspector(o.log, acc, inspect.Options{
		SizeBARs:     f.sizeBARs,
		SkipExtended: f.skipExtended,
		Recorder:     store,
	})

	fns, inspectErr := inspector.InspectAll(addrs)
	if len(fns) == 0 && inspectErr == nil && len(addrs) > 0 {
		return fmt.Errorf("no function present at %d address(es)", len(addrs))
	}

	reports := make([]inspect.Report, 0, len(fns))
	texts := make([]string, 0, len(fns))
	for _, fn := range fns {
		r := fn.Report()
		r.VendorName, r.DeviceName = names(fn.Header.VendorID, fn.Header.DeviceID)
		reports = append(reports, r)
		texts = append(texts, r.String())
	}

	if err := o.print(cmd.OutOrStdout(), reports, strings.Join(texts, "\n")); err != nil {
		return errors.Join(inspectErr, err)
	}
	if f.events {
		printEvents(cmd.ErrOrStderr(), store.ListEvents())
	}
	return inspectErr
}

func printEvents(w io.Writer, events []*recorder.Event) {
	for _, e := range events {
		fmt.Fprintln(w, e.String())
	}
}
