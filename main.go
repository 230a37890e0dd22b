// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/parcela-es/parcela/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
