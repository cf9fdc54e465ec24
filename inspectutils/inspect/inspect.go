// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/ironcore-dev/pci-utils/accessutils/access"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"github.com/ironcore-dev/pci-utils/decodeutils/bar"
	"github.com/ironcore-dev/pci-utils/decodeutils/capability"
	"github.com/ironcore-dev/pci-utils/decodeutils/class"
	"github.com/ironcore-dev/pci-utils/decodeutils/header"
	"github.com/ironcore-dev/pci-utils/eventutils/recorder"
)

const (
	ReasonMalformedCapabilityList = "MalformedCapabilityList"
	ReasonInvalidBAR              = "InvalidBAR"
	ReasonSizingFailed            = "SizingFailed"
)

// Options configures an Inspector
type Options struct {
	// SizeBARs sizes every BAR by writing all-ones to it. Sizing briefly
	// changes the decode address of the function.
	SizeBARs bool
	// SkipExtended skips the extended capability list even on PCI Express functions.
	SkipExtended bool
	// Recorder receives the warnings of every inspected function.
	Recorder recorder.EventRecorder
}

func (o *Options) Defaults() {
	if o.Recorder == nil {
		o.Recorder = recorder.Discard
	}
}

// Function is everything decoded from the configuration space of one function.
type Function struct {
	Address              address.Address
	Header               header.Header
	Class                class.Descriptor
	Capabilities         []capability.Capability
	ExtendedCapabilities []capability.ExtendedCapability
	BARs                 []BAR
	Warnings             []string
}

type BAR struct {
	bar.Bar
	// Size is only set when the BAR was sized.
	Size      uint64
	SizeError error
}

// PCIExpress returns the PCI Express capability of the function.
func (f *Function) PCIExpress() (capability.PCIExpress, bool) {
	for _, c := range f.Capabilities {
		if p, ok := c.(capability.PCIExpress); ok {
			return p, true
		}
	}
	return capability.PCIExpress{}, false
}

type Inspector struct {
	log  logr.Logger
	acc  access.Accessor
	opts Options
}

func NewInspector(log logr.Logger, acc access.Accessor, opts Options) *Inspector {
	opts.Defaults()
	return &Inspector{
		log:  log,
		acc:  acc,
		opts: opts,
	}
}

// Inspect decodes addr. It returns false if no function is present. Malformed
// capability lists and undecodable BARs do not fail the inspection; they are
// recorded as warnings of the function.
func (i *Inspector) Inspect(addr address.Address) (*Function, bool, error) {
	log := i.log.WithValues("address", addr.String())

	h, ok, err := header.Read(i.acc, addr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read header of %s: %w", addr, err)
	}
	if !ok {
		log.V(2).Info("Function not present")
		return nil, false, nil
	}

	fn := &Function{
		Address: addr,
		Header:  h,
		Class:   h.Code().Describe(),
	}
	log.V(1).Info("Inspecting function", "vendor", fmt.Sprintf("%04x", h.VendorID), "device", fmt.Sprintf("%04x", h.DeviceID), "class", fn.Class.String())

	for c, err := range capability.Capabilities(i.acc, addr, h) {
		if err != nil {
			if !errors.Is(err, capability.ErrMalformedCapabilityList) {
				return nil, false, err
			}
			i.warn(log, fn, ReasonMalformedCapabilityList, err)
			break
		}
		log.V(3).Info("Found capability", "offset", c.Base().Offset.String(), "name", c.Name())
		fn.Capabilities = append(fn.Capabilities, c)
	}

	if _, pcie := fn.PCIExpress(); pcie && !i.opts.SkipExtended {
		for c, err := range capability.WalkExtended(i.acc, addr) {
			if err != nil {
				if !errors.Is(err, capability.ErrMalformedCapabilityList) {
					return nil, false, err
				}
				i.warn(log, fn, ReasonMalformedCapabilityList, err)
				break
			}
			log.V(3).Info("Found extended capability", "offset", c.Base().Offset.String(), "name", c.Name())
			fn.ExtendedCapabilities = append(fn.ExtendedCapabilities, c)
		}
	}

	for b, err := range bar.All(i.acc, addr, h.BARCount()) {
		if err != nil {
			i.warn(log, fn, ReasonInvalidBAR, err)
			continue
		}
		entry := BAR{Bar: b}
		if i.opts.SizeBARs {
			if entry.Size, entry.SizeError = bar.Size(i.acc, addr, b); entry.SizeError != nil {
				i.warn(log, fn, ReasonSizingFailed, entry.SizeError)
			}
		}
		fn.BARs = append(fn.BARs, entry)
	}

	return fn, true, nil
}

// InspectAll inspects every address and skips absent functions. Failing
// functions are left out of the result and their errors are joined.
func (i *Inspector) InspectAll(addrs []address.Address) ([]*Function, error) {
	var (
		fns  []*Function
		errs []error
	)
	for _, addr := range addrs {
		fn, ok, err := i.Inspect(addr)
		if err != nil {
			i.log.Error(err, "Failed to inspect function", "address", addr.String())
			errs = append(errs, err)
			continue
		}
		if ok {
			fns = append(fns, fn)
		}
	}
	return fns, errors.Join(errs...)
}

func (i *Inspector) warn(log logr.Logger, fn *Function, reason string, err error) {
	log.Info("Inspection warning", "reason", reason, "error", err.Error())
	fn.Warnings = append(fn.Warnings, fmt.Sprintf("%s: %v", reason, err))
	i.opts.Recorder.Eventf(fn.Address, recorder.EventTypeWarning, reason, "%v", err)
}
