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
	"strings"

	"github.com/evmtools/go-evmasm/pkg/evmasm"
	"github.com/evmtools/go-evmasm/pkg/util/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// GetFlag gets an expected flag, or panic if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// GetUint gets an expected uint flag, or panic if an error arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// Configure logging and extract the unit policies from the common flags.
func configure(cmd *cobra.Command) evmasm.Config {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
	//
	return evmasm.Config{
		AllowWarnings: GetFlag(cmd, "warn"),
		StrictLabels:  GetFlag(cmd, "strict-labels"),
	}
}

// Read an assembly source file, exiting on failure.
func readSourceFile(filename string) *source.File {
	srcfile, err := source.ReadFile(filename)
	//
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return srcfile
}

// Compile a source file through parsing and analysis, printing any
// diagnostics.  Exits unless the unit is usable under its policies.
func compileUnit(cmd *cobra.Command, filename string) (*evmasm.Unit, *source.File) {
	var (
		cfg     = configure(cmd)
		srcfile = readSourceFile(filename)
		unit    = evmasm.NewUnit(cfg)
	)
	//
	ok := unit.Parse(srcfile)
	// Analysis only makes sense over a well-formed block.
	if unit.Root() != nil {
		ok = unit.Analyze()
	}
	//
	printDiagnostics(srcfile, unit.Diagnostics(), 0)
	//
	if !ok {
		os.Exit(1)
	}
	//
	return unit, srcfile
}

// Print all diagnostics in the sink from a given index onwards.
func printDiagnostics(srcfile *source.File, diags *evmasm.Diagnostics, from int) {
	for _, diag := range diags.Items()[from:] {
		printDiagnostic(srcfile, diag)
	}
}

// Print a diagnostic with appropriate highlighting.
func printDiagnostic(srcfile *source.File, diag evmasm.Diagnostic) {
	span := diag.Span
	line := srcfile.FindFirstEnclosingLine(span)
	lineOffset := span.Start() - line.Start()
	// Calculate length (ensures don't overflow line)
	length := max(1, min(line.Length()-lineOffset, span.Length()))
	// Print severity, kind and position
	fmt.Printf("%s:%d:%d-%d %s: %s [%s]\n", srcfile.Filename(),
		line.Number(), 1+lineOffset, 1+lineOffset+length, diag.Severity.String(), diag.Message, diag.Kind.String())
	// Print line, clipped to the terminal where one is attached.
	text := line.String()
	//
	if term.IsTerminal(0) {
		if width, _, err := term.GetSize(0); err == nil && len(text) > width {
			text = text[:width]
		}
	}
	//
	fmt.Println(text)
	// Print indent (todo: account for tabs)
	fmt.Print(strings.Repeat(" ", lineOffset))
	// Print highlight
	fmt.Println(strings.Repeat("^", length))
}
