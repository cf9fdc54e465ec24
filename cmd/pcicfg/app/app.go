// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/accessutils/ecam"
	"github.com/ironcore-dev/pci-utils/accessutils/sysfs"
	"github.com/siderolabs/go-pcidb/pkg/pcidb"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"
)

const (
	OutputText = "text"
	OutputYAML = "yaml"
	OutputJSON = "json"
)

type options struct {
	output    string
	verbosity int
	sysfsRoot string

	ecamDevice   string
	ecamBase     uint64
	ecamSegment  uint16
	ecamStartBus uint8
	ecamEndBus   uint8

	log logr.Logger
}

type closingAccessor interface {
	access.Accessor
	Close() error
}

// Command returns the pcicfg root command.
func Command() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "pcicfg",
		Short:        "Inspect PCI and PCI Express configuration spaces",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch o.output {
			case OutputText, OutputYAML, OutputJSON:
			default:
				return fmt.Errorf("unsupported output format %q", o.output)
			}
			o.log = zap.New(
				zap.WriteTo(cmd.ErrOrStderr()),
				zap.UseDevMode(true),
				zap.Level(zapcore.Level(-o.verbosity)),
			)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.output, "output", "o", OutputText, "output format: text, yaml or json")
	flags.IntVarP(&o.verbosity, "verbosity", "v", 0, "log verbosity")
	flags.StringVar(&o.sysfsRoot, "sysfs", sysfs.DefaultMountPoint, "sysfs mount point")
	flags.StringVar(&o.ecamDevice, "ecam-device", ecam.DefaultDevice, "device to map the ECAM window from")
	flags.Uint64Var(&o.ecamBase, "ecam-base", 0, "physical base address of the ECAM window, uses sysfs if unset")
	flags.Uint16Var(&o.ecamSegment, "ecam-segment", 0, "segment of the ECAM window")
	flags.Uint8Var(&o.ecamStartBus, "ecam-start-bus", 0, "first bus of the ECAM window")
	flags.Uint8Var(&o.ecamEndBus, "ecam-end-bus", 0xff, "last bus of the ECAM window")

	cmd.AddCommand(
		listCommand(o),
		inspectCommand(o),
		decodeCommand(o),
		classifyCommand(o),
	)
	return cmd
}

func (o *options) accessor() (closingAccessor, error) {
	if o.ecamBase == 0 {
		return sysfs.NewAccessor(o.sysfsRoot), nil
	}
	region, err := ecam.Open(o.ecamDevice, o.ecamBase, o.ecamSegment, o.ecamStartBus, o.ecamEndBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open ecam window: %w", err)
	}
	o.log.V(1).Info("Mapped ECAM window", "base", fmt.Sprintf("%#x", o.ecamBase), "segment", o.ecamSegment,
		"startBus", o.ecamStartBus, "endBus", o.ecamEndBus)
	return region, nil
}

// print renders v as yaml or json, or writes text.
func (o *options) print(w io.Writer, v any, text string) error {
	var (
		data []byte
		err  error
	)
	switch o.output {
	case OutputYAML:
		data, err = yaml.Marshal(v)
	case OutputJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		data = []byte(text)
	}
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func names(vendorID, deviceID uint16) (string, string) {
	vendor, _ := pcidb.LookupVendor(vendorID)
	product, _ := pcidb.LookupProduct(vendorID, deviceID)
	return vendor, product
}
