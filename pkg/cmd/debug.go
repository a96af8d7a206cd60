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

	"github.com/davecgh/go-spew/spew"
	"github.com/evmtools/go-evmasm/pkg/evmasm"
	"github.com/spf13/cobra"
)

// debugCmd dumps the internal representations of a source file.
var debugCmd = &cobra.Command{
	Use:   "debug [flags] source_file",
	Short: "Print internal representations of a source file.",
	Long: `Print a given source file at various stages of the
	pipeline in order to debug it: the parsed syntax tree, the
	operation listing and (optionally) the machine state after
	executing the result.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		var (
			ast     = GetFlag(cmd, "ast")
			listing = GetFlag(cmd, "listing")
			execute = GetFlag(cmd, "execute")
			steps   = GetUint(cmd, "steps")
		)
		//
		unit, srcfile := compileUnit(cmd, args[0])
		//
		if ast {
			spew.Dump(unit.Root())
		}
		//
		n := unit.Diagnostics().Len()
		program, ok := unit.Assemble()
		//
		if !ok {
			printDiagnostics(srcfile, unit.Diagnostics(), n)
			os.Exit(1)
		}
		//
		if listing {
			fmt.Print(program.String())
		}
		//
		if execute {
			runProgram(program.Bytecode(), steps)
		}
	},
}

func runProgram(code []byte, steps uint) {
	state, err := evmasm.Execute(code, steps)
	//
	if err != nil {
		fmt.Println(err)
	}
	//
	if state != nil {
		spew.Dump(state)
	}
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.Flags().Bool("ast", true, "dump the parsed syntax tree")
	debugCmd.Flags().BoolP("listing", "l", false, "print a per-operation listing")
	debugCmd.Flags().BoolP("execute", "x", false, "execute the assembled bytecode")
	debugCmd.Flags().Uint("steps", 10000, "step limit when executing")
}
