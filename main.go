// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Skylink - Flight Controller Link Tool
//
// A CLI ground station for the Skylink protocol: frame monitoring, link
// statistics, an interactive session TUI, a board simulator and
// capture/replay of link traffic.

package main

import (
	"os"

	"github.com/Thermoquad/skylink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
