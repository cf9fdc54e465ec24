// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package ecam

const DefaultDevice = "/dev/mem"

func Open(_ string, _ uint64, _ uint16, _, _ uint8) (*Region, error) {
	return nil, ErrNotSupported
}
