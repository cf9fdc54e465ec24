// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/ironcore-dev/pci-utils/cmd/pcicfg/app"
)

func main() {
	if err := app.Command().Execute(); err != nil {
		os.Exit(1)
	}
}
