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

	"github.com/spf13/cobra"
)

// assembleCmd lowers an assembly source file to bytecode.
var assembleCmd = &cobra.Command{
	Use:   "assemble [flags] source_file",
	Short: "Assemble a source file into bytecode.",
	Long: `Assemble a given source file into EVM bytecode,
	printed to stdout as hexadecimal.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		unit, srcfile := compileUnit(cmd, args[0])
		n := unit.Diagnostics().Len()
		//
		program, ok := unit.Assemble()
		//
		if !ok {
			printDiagnostics(srcfile, unit.Diagnostics(), n)
			os.Exit(1)
		}
		//
		if GetFlag(cmd, "listing") {
			fmt.Print(program.String())
		} else {
			fmt.Printf("0x%x\n", program.Bytecode())
		}
	},
}

func init() {
	rootCmd.AddCommand(assembleCmd)
	assembleCmd.Flags().BoolP("listing", "l", false, "print a per-operation listing instead of hex")
}
