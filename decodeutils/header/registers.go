// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"errors"
	"fmt"
	"strings"
)

var ErrReservedDEVSELTiming = errors.New("reserved DEVSEL timing")

type Command uint16

const (
	IOSpace Command = 1 << iota
	MemorySpace
	BusMaster
	SpecialCycles
	MemoryWriteInvalidate
	VGAPaletteSnoop
	ParityErrorResponse
	_
	SERREnable
	FastBackToBackEnable
	InterruptDisable
)

var commandNames = []struct {
	flag Command
	name string
}{
	{IOSpace, "io"},
	{MemorySpace, "mem"},
	{BusMaster, "master"},
	{SpecialCycles, "special"},
	{MemoryWriteInvalidate, "mwi"},
	{VGAPaletteSnoop, "vga-snoop"},
	{ParityErrorResponse, "parity"},
	{SERREnable, "serr"},
	{FastBackToBackEnable, "fast-b2b"},
	{InterruptDisable, "intx-disable"},
}

func (c Command) Has(flag Command) bool {
	return c&flag == flag
}

func (c Command) String() string {
	var names []string
	for _, n := range commandNames {
		if c.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

type Status uint16

const (
	statusInterrupt           Status = 1 << 3
	statusCapabilitiesList    Status = 1 << 4
	status66MHz               Status = 1 << 5
	statusFastBackToBack      Status = 1 << 7
	statusMasterDataParity    Status = 1 << 8
	statusSignaledTargetAbort Status = 1 << 11
	statusReceivedTargetAbort Status = 1 << 12
	statusReceivedMasterAbort Status = 1 << 13
	statusSignaledSystemError Status = 1 << 14
	statusDetectedParityError Status = 1 << 15
)

const statusDEVSELShift = 9

const statusErrorBits = statusMasterDataParity | statusSignaledTargetAbort | statusReceivedTargetAbort |
	statusReceivedMasterAbort | statusSignaledSystemError | statusDetectedParityError

func (s Status) InterruptStatus() bool       { return s&statusInterrupt != 0 }
func (s Status) CapabilitiesList() bool      { return s&statusCapabilitiesList != 0 }
func (s Status) Capable66MHz() bool          { return s&status66MHz != 0 }
func (s Status) FastBackToBack() bool        { return s&statusFastBackToBack != 0 }
func (s Status) MasterDataParityError() bool { return s&statusMasterDataParity != 0 }
func (s Status) SignaledTargetAbort() bool   { return s&statusSignaledTargetAbort != 0 }
func (s Status) ReceivedTargetAbort() bool   { return s&statusReceivedTargetAbort != 0 }
func (s Status) ReceivedMasterAbort() bool   { return s&statusReceivedMasterAbort != 0 }
func (s Status) SignaledSystemError() bool   { return s&statusSignaledSystemError != 0 }
func (s Status) DetectedParityError() bool   { return s&statusDetectedParityError != 0 }

// Errors returns only the write-one-to-clear error bits.
func (s Status) Errors() Status {
	return s & statusErrorBits
}

type DEVSELTiming uint8

const (
	DEVSELFast DEVSELTiming = iota
	DEVSELMedium
	DEVSELSlow
)

func (t DEVSELTiming) String() string {
	switch t {
	case DEVSELFast:
		return "fast"
	case DEVSELMedium:
		return "medium"
	case DEVSELSlow:
		return "slow"
	}
	return fmt.Sprintf("reserved(%d)", uint8(t))
}

func (s Status) DEVSELTiming() (DEVSELTiming, error) {
	t := DEVSELTiming(s>>statusDEVSELShift) & 0x3
	if t > DEVSELSlow {
		return t, ErrReservedDEVSELTiming
	}
	return t, nil
}
