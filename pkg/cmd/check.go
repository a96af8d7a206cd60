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

// checkCmd parses and analyzes a source file without generating code.
var checkCmd = &cobra.Command{
	Use:   "check [flags] source_file",
	Short: "Check a source file for problems.",
	Long: `Parse and analyze a given source file, reporting all
	diagnostics found but generating no code.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		// Exits with the diagnostics printed on failure.
		unit, _ := compileUnit(cmd, args[0])
		//
		if unit.Diagnostics().Len() == 0 {
			fmt.Println("ok")
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
