// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"
	"os"

	"github.com/evmtools/go-evmasm/pkg/evmasm"
	"github.com/spf13/cobra"
)

// formatCmd reprints a source file in canonical form.
var formatCmd = &cobra.Command{
	Use:   "format [flags] source_file",
	Short: "Reprint a source file in canonical form.",
	Long: `Parse a given source file and print it back in canonical
	form, with normalised indentation and escaping.  With --write the
	file is rewritten in place instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		var (
			cfg     = configure(cmd)
			srcfile = readSourceFile(args[0])
			unit    = evmasm.NewUnit(cfg)
		)
		// Formatting needs a parse only.
		if !unit.Parse(srcfile) {
			printDiagnostics(srcfile, unit.Diagnostics(), 0)
			os.Exit(1)
		}
		//
		text := unit.String() + "\n"
		//
		if GetFlag(cmd, "write") {
			if err := os.WriteFile(args[0], []byte(text), 0644); err != nil {
				fmt.Println(err)
				os.Exit(2)
			}
		} else {
			fmt.Print(text)
		}
	},
}

func init() {
	rootCmd.AddCommand(formatCmd)
	formatCmd.Flags().Bool("write", false, "rewrite the file in place")
}
