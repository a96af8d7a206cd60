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
	"strings"
	"testing"
)

func Test_Parse_SmokeTest(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ }")
}

func Test_Parse_SimpleInstructions(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ dup1 dup1 mul dup1 sub }")
}

func Test_Parse_SuicideSelfdestruct(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ suicide selfdestruct }")
}

func Test_Parse_Keywords(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ byte return address }")
}

func Test_Parse_Constants(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ 7 8 mul }")
}

func Test_Parse_HexConstants(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ 0x12 0xffff mul }")
}

func Test_Parse_VariableDeclaration(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ let x := 7 }")
}

func Test_Parse_MultiVariableDeclaration(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ let x, y := 1, 2 }")
}

func Test_Parse_StackAssignment(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ 7 8 add =: x }")
}

func Test_Parse_Label(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ 7 abc: 8 eq abc jump }")
}

func Test_Parse_LabelComplex(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ 7 abc: 8 eq jump(abc) jumpi(eq(7, 8), abc) }")
}

func Test_Parse_Functional(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ add(7, mul(6, x)) add mul(7, 8) }")
}

func Test_Parse_FunctionalAssignment(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ x := 7 }")
}

func Test_Parse_FunctionalAssignmentComplex(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ x := add(7, mul(6, x)) add mul(7, 8) }")
}

func Test_Parse_VariableDeclarationComplex(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ let x := add(7, mul(6, x)) add mul(7, 8) }")
}

func Test_Parse_Blocks(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ let x := 7 { let y := 3 } { let z := 2 } }")
}

func Test_Parse_LabelsWithStackInfo(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ x[-1]: y[a]: z[d, e]: h[100]: g[]: }")
}

func Test_Parse_FunctionDefinitions(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ function f() { } function g(a) -> (x) { } }")
}

func Test_Parse_FunctionDefinitionsMultipleArgs(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ function f(a, d) { } function g(a, d) -> (x, y) { } }")
}

func Test_Parse_FunctionCalls(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ g(1, 2, f(mul(2, 3))) x() }")
}

func Test_Parse_Comments(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ // nothing here\n}")
}

func Test_Parse_StringLiteral(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ \"abc\" }")
}

func Test_Parse_StringEscapes(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ \"\\n\\t\\r\\\\\\\"\\x41\\u1bac\" }")
}

// ============================================================================
// Rejected inputs
// ============================================================================

func Test_Parse_UnterminatedBlock(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ 1 2", "unterminated block")
}

func Test_Parse_MissingBlock(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "1 2", "expected block")
}

func Test_Parse_TrailingGarbage(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ } }", "expected end of assembly")
}

func Test_Parse_MissingVariableName(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ let := 7 }", "expected name")
}

func Test_Parse_MissingFunctionName(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ function () { } }", "expected function name")
}

func Test_Parse_MissingArgumentSeparator(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ add(1 2) }", "expected ','")
}

func Test_Parse_InvalidHexEscape(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ \"\\xzz\" }", "invalid hex escape sequence")
}

func Test_Parse_InvalidUnicodeEscape(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ \"\\u12\" }", "invalid unicode escape sequence")
}

func Test_Parse_UnknownEscape(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ \"\\q\" }", "unknown escape sequence")
}

func Test_Parse_UnknownText(t *testing.T) {
	t.Parallel()
	//
	failParse(t, "{ # }", "unknown text encountered")
}

// ============================================================================
// Test helpers
// ============================================================================

// Check that a source parses without reporting any parser errors.
func successParse(t *testing.T, src string) {
	unit := NewUnit(Config{AllowWarnings: true})
	//
	if !unit.ParseString(src) {
		t.Fatalf("failed parsing %q: %v", src, unit.Diagnostics().Items())
	}
	//
	if unit.Diagnostics().ContainsKind(ParserError) {
		t.Fatalf("unexpected parser error(s) in %q: %v", src, unit.Diagnostics().Items())
	}
}

// Check that a source is rejected with a parser error mentioning msg.
func failParse(t *testing.T, src string, msg string) {
	unit := NewUnit(Config{AllowWarnings: true})
	//
	if unit.ParseString(src) {
		t.Fatalf("parsing %q should have failed", src)
	}
	//
	if !unit.Diagnostics().ContainsKind(ParserError) {
		t.Fatalf("expected parser error for %q, got: %v", src, unit.Diagnostics().Items())
	}
	//
	for _, diag := range unit.Diagnostics().Items() {
		if strings.Contains(diag.Message, msg) {
			return
		}
	}
	//
	t.Fatalf("no diagnostic mentioning %q for %q: %v", msg, src, unit.Diagnostics().Items())
}
