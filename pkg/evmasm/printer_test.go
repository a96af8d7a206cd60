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
package evmasm

import (
	"testing"
)

func Test_Print_Smoke(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n}")
}

func Test_Print_Instructions(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    7\n    8\n    mul\n    dup10\n    add\n}")
}

func Test_Print_Subblock(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    {\n        dup4\n        add\n    }\n}")
}

func Test_Print_Functional(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    mul(sload(0x12), 7)\n}")
}

func Test_Print_Label(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    loop:\n    jump(loop)\n}")
}

func Test_Print_LabelWithStack(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    loop[x, y]:\n    other[-2]:\n    third[10]:\n}")
}

func Test_Print_Assignments(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    let x := mul(2, 3)\n    7\n    =: x\n    x := add(1, 2)\n}")
}

func Test_Print_StringLiterals(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    \"\\n'\\xab\\x95\\\"\"\n}")
}

// Unicode escapes are expanded during parsing, hence print as the hex escape
// of their UTF-8 encoding.
func Test_Print_StringLiteralUnicode(t *testing.T) {
	t.Parallel()
	//
	var (
		source = "{ \"\\u1bac\" }"
		parsed = "{\n    \"\\xe1\\xae\\xac\"\n}"
		unit   = NewUnit(Config{AllowWarnings: true})
	)
	//
	if !unit.ParseString(source) {
		t.Fatalf("failed parsing %q: %v", source, unit.Diagnostics().Items())
	}
	//
	if actual := unit.String(); actual != parsed {
		t.Fatalf("expected %q, got %q", parsed, actual)
	}
	// Canonical output must round trip.
	roundTrip(t, parsed)
}

func Test_Print_FunctionDefinitionsMultipleArgs(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    function f(a, d)\n    {\n        mstore(a, d)\n    }\n    function g(a, d) -> (x, y)\n    {\n    }\n}")
}

func Test_Print_FunctionCalls(t *testing.T) {
	t.Parallel()
	//
	parsePrintCompare(t, "{\n    g(1, mul(2, x), f(mul(2, 3)))\n    x()\n}")
}

// ============================================================================
// Test helpers
// ============================================================================

// Check that a canonically formatted source prints back as itself.
func parsePrintCompare(t *testing.T, src string) {
	roundTrip(t, src)
}

func roundTrip(t *testing.T, src string) {
	unit := NewUnit(Config{AllowWarnings: true})
	//
	if !unit.ParseString(src) {
		t.Fatalf("failed parsing %q: %v", src, unit.Diagnostics().Items())
	}
	//
	if unit.Diagnostics().Len() != 0 {
		t.Fatalf("unexpected diagnostics for %q: %v", src, unit.Diagnostics().Items())
	}
	//
	if actual := unit.String(); actual != src {
		t.Fatalf("expected %q, got %q", src, actual)
	}
}
