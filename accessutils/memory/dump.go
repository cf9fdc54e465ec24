// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ironcore-dev/pci-utils/addressutils/address"
)

var ErrInvalidDump = errors.New("invalid config space dump")

// Dump is the saved configuration space of one function.
type Dump struct {
	Address address.Address
	// HasAddress is false for raw binary dumps which do not name their function.
	HasAddress bool
	Data       []byte
}

// ParseDump accepts either a raw binary copy of a config file or the hex output
// of lspci -x, -xxx or -xxxx, which may hold several functions.
func ParseDump(data []byte) ([]Dump, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDump)
	}
	if !isText(data) {
		if len(data) > int(address.ExtendedSize) {
			return nil, fmt.Errorf("%w: %d bytes", ErrInvalidDump, len(data))
		}
		return []Dump{{Data: data}}, nil
	}
	return parseHexDump(data)
}

func isText(data []byte) bool {
	return bytes.IndexFunc(data, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsPrint(r) || unicode.IsSpace(r))
	}) < 0
}

func parseHexDump(data []byte) ([]Dump, error) {
	var dumps []Dump

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		offset, values, ok := parseHexLine(text)
		if !ok {
			// A description line such as "0000:5e:00.0 Ethernet controller: ..." starts a new function.
			fields := strings.Fields(text)
			addr, err := address.Parse(fields[0])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidDump, line, text)
			}
			dumps = append(dumps, Dump{Address: addr, HasAddress: true})
			continue
		}

		if len(dumps) == 0 {
			dumps = append(dumps, Dump{})
		}
		current := &dumps[len(dumps)-1]
		end := offset + len(values)
		if end > int(address.ExtendedSize) {
			return nil, fmt.Errorf("%w: line %d beyond %d bytes", ErrInvalidDump, line, address.ExtendedSize)
		}
		if end > len(current.Data) {
			current.Data = append(current.Data, make([]byte, end-len(current.Data))...)
		}
		copy(current.Data[offset:], values)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dump: %w", err)
	}

	for _, d := range dumps {
		if len(d.Data) == 0 {
			return nil, fmt.Errorf("%w: no data for %s", ErrInvalidDump, d.Address)
		}
	}
	return dumps, nil
}

// parseHexLine parses "40: 01 50 03 c8 08 00 00 00".
func parseHexLine(text string) (int, []byte, bool) {
	prefix, rest, ok := strings.Cut(text, ":")
	if !ok || len(prefix) < 2 || len(prefix) > 3 {
		return 0, nil, false
	}
	offset, err := strconv.ParseUint(prefix, 16, 16)
	if err != nil {
		return 0, nil, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, nil, false
	}
	values := make([]byte, 0, len(fields))
	for _, f := range fields {
		if len(f) != 2 {
			return 0, nil, false
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return 0, nil, false
		}
		values = append(values, byte(v))
	}
	return int(offset), values, true
}
