// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"fmt"
	"strings"

	"github.com/ironcore-dev/pci-utils/decodeutils/bar"
	"github.com/ironcore-dev/pci-utils/decodeutils/capability"
)

// Report is a serializable view of a Function.
type Report struct {
	Address              string             `json:"address"`
	VendorID             string             `json:"vendorID"`
	DeviceID             string             `json:"deviceID"`
	VendorName           string             `json:"vendorName,omitempty"`
	DeviceName           string             `json:"deviceName,omitempty"`
	Revision             uint8              `json:"revision"`
	ClassCode            string             `json:"classCode"`
	Class                string             `json:"class"`
	HeaderType           string             `json:"headerType"`
	MultiFunction        bool               `json:"multiFunction,omitempty"`
	Command              string             `json:"command"`
	Capabilities         []CapabilityReport `json:"capabilities,omitempty"`
	ExtendedCapabilities []CapabilityReport `json:"extendedCapabilities,omitempty"`
	BARs                 []BARReport        `json:"bars,omitempty"`
	Warnings             []string           `json:"warnings,omitempty"`
}

type CapabilityReport struct {
	Offset  string `json:"offset"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Details string `json:"details,omitempty"`
}

type BARReport struct {
	Slot         int    `json:"slot"`
	Kind         string `json:"kind"`
	Base         string `json:"base"`
	Prefetchable bool   `json:"prefetchable,omitempty"`
	Size         string `json:"size,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (f *Function) Report() Report {
	h := f.Header
	r := Report{
		Address:       f.Address.String(),
		VendorID:      fmt.Sprintf("%04x", h.VendorID),
		DeviceID:      fmt.Sprintf("%04x", h.DeviceID),
		Revision:      h.Revision,
		ClassCode:     h.Code().String(),
		Class:         f.Class.String(),
		HeaderType:    h.Type.String(),
		MultiFunction: h.MultiFunction,
		Command:       h.Command.String(),
		Warnings:      f.Warnings,
	}

	for _, c := range f.Capabilities {
		base := c.Base()
		r.Capabilities = append(r.Capabilities, CapabilityReport{
			Offset:  base.Offset.String(),
			ID:      fmt.Sprintf("%#x", base.ID),
			Name:    c.Name(),
			Details: details(c),
		})
	}
	for _, c := range f.ExtendedCapabilities {
		base := c.Base()
		r.ExtendedCapabilities = append(r.ExtendedCapabilities, CapabilityReport{
			Offset:  base.Offset.String(),
			ID:      fmt.Sprintf("%#x", base.ID),
			Name:    c.Name(),
			Details: extendedDetails(c),
		})
	}
	for _, b := range f.BARs {
		// Unimplemented BARs read as zero and have no size.
		if b.Base() == 0 && b.Size == 0 && b.SizeError == nil {
			continue
		}
		br := BARReport{
			Slot:         b.Slot(),
			Kind:         b.Kind().String(),
			Base:         fmt.Sprintf("%#x", b.Base()),
			Prefetchable: b.Prefetchable(),
		}
		switch {
		case b.SizeError != nil:
			br.Error = b.SizeError.Error()
		case b.Size > 0:
			br.Size = bar.FormatSize(b.Size)
		}
		r.BARs = append(r.BARs, br)
	}
	return r
}

// String renders the report as indented text.
func (r Report) String() string {
	var sb strings.Builder
	name := strings.TrimSpace(r.VendorName + " " + r.DeviceName)
	if name == "" {
		name = r.VendorID + ":" + r.DeviceID
	}
	fmt.Fprintf(&sb, "%s %s: %s (rev %02x)\n", r.Address, r.Class, name, r.Revision)
	fmt.Fprintf(&sb, "\tHeader: %s, class %s, command %s\n", r.HeaderType, r.ClassCode, r.Command)
	for _, b := range r.BARs {
		fmt.Fprintf(&sb, "\tBAR%d: %s at %s", b.Slot, b.Kind, b.Base)
		if b.Prefetchable {
			sb.WriteString(" prefetchable")
		}
		if b.Size != "" {
			fmt.Fprintf(&sb, " [size=%s]", b.Size)
		}
		if b.Error != "" {
			fmt.Fprintf(&sb, " [%s]", b.Error)
		}
		sb.WriteString("\n")
	}
	for _, c := range r.Capabilities {
		writeCapability(&sb, c)
	}
	for _, c := range r.ExtendedCapabilities {
		writeCapability(&sb, c)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "\tWarning: %s\n", w)
	}
	return sb.String()
}

func writeCapability(sb *strings.Builder, c CapabilityReport) {
	fmt.Fprintf(sb, "\tCapabilities: [%s] %s", c.Offset, c.Name)
	if c.Details != "" {
		fmt.Fprintf(sb, ": %s", c.Details)
	}
	sb.WriteString("\n")
}

func details(c capability.Capability) string {
	switch c := c.(type) {
	case capability.PowerManagement:
		return fmt.Sprintf("version %d, D%d", c.Version, c.PowerState)
	case capability.MSI:
		return fmt.Sprintf("enable=%t count=%d/%d 64bit=%t maskable=%t",
			c.Enabled, c.MultipleMessageEnable.Vectors(), c.MultipleMessageCapable.Vectors(), c.Is64Bit, c.PerVectorMasking)
	case capability.MSIX:
		return fmt.Sprintf("enable=%t count=%d masked=%t", c.Enabled, c.TableSize, c.FunctionMask)
	case capability.PCIExpress:
		s := fmt.Sprintf("v%d %s, max payload %d bytes", c.Version, c.PortType, c.MaxPayload())
		if c.PortType.HasLink() {
			s += fmt.Sprintf(", link %s x%d (max %s x%d)", c.LinkSpeed, c.LinkWidth, c.MaxLinkSpeed, c.MaxLinkWidth)
		}
		return s
	case capability.VendorSpecific:
		return fmt.Sprintf("length %d", c.Length)
	}
	return ""
}

func extendedDetails(c capability.ExtendedCapability) string {
	switch c := c.(type) {
	case capability.AER:
		return fmt.Sprintf("uncorrectable %#08x, correctable %#08x", c.UncorrectableStatus, c.CorrectableStatus)
	case capability.DeviceSerialNumber:
		return c.String()
	case capability.SRIOV:
		return fmt.Sprintf("vfs %d/%d enable=%t", c.NumVFs, c.TotalVFs, c.VFEnabled())
	case capability.VendorSpecificExtended:
		return fmt.Sprintf("id %#04x rev %d length %d", c.VSECID, c.VSECRevision, c.Length)
	}
	return ""
}
