// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "colstore [command] (flags)",
	Short: "colstore introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		dumpCmd,
	)

	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
