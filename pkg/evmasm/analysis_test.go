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

	"github.com/evmtools/go-evmasm/pkg/util/source"
)

func Test_Analysis_StringLiterals(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ let x := \"12345678901234567890123456789012\" }", true)
}

func Test_Analysis_OversizeStringLiterals(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ let x := \"123456789012345678901234567890123\" }", true, LiteralSize)
}

func Test_Analysis_OversizeNumberLiterals(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ let x := 0x10000000000000000000000000000000000000000000000000000000000000000 }", true, LiteralSize)
}

func Test_Analysis_AssignmentAfterTag(t *testing.T) {
	t.Parallel()
	//
	successParse(t, "{ let x := 1 { tag: =: x } }")
}

func Test_Analysis_MagicVariables(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ this }", true, MagicVariable)
	failAssemble(t, "{ ecrecover }", true, MagicVariable)
	successAssemble(t, "{ let ecrecover := 1 ecrecover }", true)
}

func Test_Analysis_ImbalancedStack(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ 1 2 mul pop }", false)
	failAssemble(t, "{ 1 }", false, StackBalance)
	successAssemble(t, "{ let x := 4 7 add }", false)
}

func Test_Analysis_ErrorTag(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ invalidJumpLabel }", true)
}

func Test_Analysis_StrictLabels(t *testing.T) {
	t.Parallel()
	//
	unit := NewUnit(Config{AllowWarnings: true, StrictLabels: true})
	compile(unit, "{ invalidJumpLabel }")
	//
	if unit.Diagnostics().Ok(true) {
		t.Fatal("unresolved label should be an error under strict labels")
	}
	//
	if !unit.Diagnostics().ContainsKind(UnresolvedIdentifier) {
		t.Fatalf("expected unresolved identifier, got: %v", unit.Diagnostics().Items())
	}
}

func Test_Analysis_DesignatedInvalidInstruction(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ invalid }", true)
}

func Test_Analysis_ShadowedInstructionDeclaration(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ let gas := 1 }", true, ReservedName)
}

func Test_Analysis_ShadowedInstructionAssignment(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ 2 =: gas }", true, ReservedName)
}

func Test_Analysis_ShadowedInstructionFunctionalAssignment(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ gas := 2 }", true, ReservedName)
}

func Test_Analysis_Revert(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ revert(0, 0) }", true)
}

func Test_Analysis_FunctionCalls(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ function f(a) -> (x) { x := add(a, a) } let y := f(7) }", false)
}

func Test_Analysis_FunctionArity(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ function f(a, b) { } f(1) }", true, StackBalance)
}

func Test_Analysis_InstructionArity(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ mstore(1) }", true, StackBalance)
}

func Test_Analysis_UnknownFunction(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ f() }", true, UnresolvedIdentifier)
}

func Test_Analysis_FunctionBoundary(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ let x := 1 function f() { pop(x) } }", true, UnresolvedIdentifier)
}

func Test_Analysis_DuplicateVariable(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ let x := 1 let x := 2 }", true, ReservedName)
}

func Test_Analysis_DuplicateLabel(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ abc: abc: }", true, ReservedName)
}

func Test_Analysis_ShadowedVariable(t *testing.T) {
	t.Parallel()
	//
	// Shadowing in a nested block is legal.
	successAssemble(t, "{ let x := 1 { let x := 2 } }", false)
}

func Test_Analysis_UnresolvedAssignmentTarget(t *testing.T) {
	t.Parallel()
	//
	failAssemble(t, "{ x := 2 }", true, UnresolvedIdentifier)
}

func Test_Analysis_ForwardLabel(t *testing.T) {
	t.Parallel()
	//
	successAssemble(t, "{ jump(end) end: }", true)
}

func Test_Analysis_SiblingLabels(t *testing.T) {
	t.Parallel()
	//
	// Labels of the same name may coexist in sibling blocks.
	successAssemble(t, "{ { a: } { a: jump(a) } }", false)
}

func Test_Analysis_NestedLabelReference(t *testing.T) {
	t.Parallel()
	//
	// A label is visible from blocks nested within its own.
	successAssemble(t, "{ a: { jump(a) } }", false)
}

func Test_Analysis_LabelOutOfScope(t *testing.T) {
	t.Parallel()
	//
	// A label is not visible outside its declaring block, so the reference
	// is merely an unresolved identifier.
	successAssemble(t, "{ { a: } jump(a) }", true)
	//
	unit := NewUnit(Config{AllowWarnings: true, StrictLabels: true})
	compile(unit, "{ { a: } jump(a) }")
	//
	if unit.Diagnostics().Ok(true) {
		t.Fatal("out-of-scope label should be unresolved under strict labels")
	}
	//
	if !unit.Diagnostics().ContainsKind(UnresolvedIdentifier) {
		t.Fatalf("expected unresolved identifier, got: %v", unit.Diagnostics().Items())
	}
}

// ============================================================================
// Test helpers
// ============================================================================

func compile(unit *Unit, src string) {
	srcfile := source.NewSourceFile("", []byte(src))
	//
	if unit.Parse(srcfile) && unit.Analyze() {
		unit.Assemble()
	}
}

// Check that a source makes it through the whole pipeline, optionally
// tolerating warnings.
func successAssemble(t *testing.T, src string, allowWarnings bool) {
	unit := NewUnit(Config{AllowWarnings: allowWarnings})
	compile(unit, src)
	//
	if !unit.Diagnostics().Ok(allowWarnings) {
		t.Fatalf("failed assembling %q: %v", src, unit.Diagnostics().Items())
	}
}

// Check that a source is rejected with a diagnostic of the given kind.
func failAssemble(t *testing.T, src string, allowWarnings bool, kind Kind) {
	unit := NewUnit(Config{AllowWarnings: allowWarnings})
	compile(unit, src)
	//
	if unit.Diagnostics().Ok(allowWarnings) {
		t.Fatalf("assembling %q should have failed", src)
	}
	//
	if !unit.Diagnostics().ContainsKind(kind) {
		t.Fatalf("expected %s for %q, got: %v", kind.String(), src, unit.Diagnostics().Items())
	}
}
