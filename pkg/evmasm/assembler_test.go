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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Assemble_Constants(t *testing.T) {
	t.Parallel()
	//
	checkBytecode(t, "{ 7 8 mul }", []byte{0x60, 0x07, 0x60, 0x08, 0x02})
}

func Test_Assemble_Functional(t *testing.T) {
	t.Parallel()
	//
	// Arguments are emitted right to left, leaving the first topmost.
	checkBytecode(t, "{ mul(sload(0x12), 7) }", []byte{0x60, 0x07, 0x60, 0x12, 0x54, 0x02})
}

func Test_Assemble_VariableDeclaration(t *testing.T) {
	t.Parallel()
	//
	// Locals are popped when their block closes.
	checkBytecode(t, "{ let x := 7 }", []byte{0x60, 0x07, 0x50})
}

func Test_Assemble_VariableAccess(t *testing.T) {
	t.Parallel()
	//
	checkBytecode(t, "{ let x := 7 let y := x }", []byte{0x60, 0x07, 0x80, 0x50, 0x50})
}

func Test_Assemble_Assignment(t *testing.T) {
	t.Parallel()
	//
	checkBytecode(t, "{ let x := 7 x := 8 }", []byte{0x60, 0x07, 0x60, 0x08, 0x90, 0x50, 0x50})
}

func Test_Assemble_ForwardJump(t *testing.T) {
	t.Parallel()
	//
	checkBytecode(t, "{ jump(end) end: }", []byte{0x61, 0x00, 0x04, 0x56, 0x5b})
}

func Test_Assemble_ErrorTag(t *testing.T) {
	t.Parallel()
	//
	// Unresolved identifiers push the trailing INVALID position.
	checkBytecode(t, "{ invalidJumpLabel }", []byte{0x61, 0x00, 0x03, 0xfe})
}

func Test_Assemble_SiblingLabels(t *testing.T) {
	t.Parallel()
	//
	// Same-name labels in sibling blocks are distinct destinations, each
	// referenced jump resolving within its own block.
	checkBytecode(t, "{ { a: jump(a) } { a: jump(a) } }",
		[]byte{0x5b, 0x61, 0x00, 0x00, 0x56, 0x5b, 0x61, 0x00, 0x05, 0x56})
}

func Test_Assemble_LeadingZeroConstant(t *testing.T) {
	t.Parallel()
	//
	// Leading zeroes do not make a decimal octal.
	checkBytecode(t, "{ 09 pop }", []byte{0x60, 0x09, 0x50})
}

func Test_Assemble_RefusedAfterErrors(t *testing.T) {
	t.Parallel()
	//
	unit := NewUnit(Config{AllowWarnings: true})
	//
	require.True(t, unit.ParseString("{ 0x10000000000000000000000000000000000000000000000000000000000000000 }"))
	require.False(t, unit.Analyze())
	// An errored unit yields no program, rather than emitting junk.
	program, ok := unit.Assemble()
	//
	assert.False(t, ok)
	assert.Nil(t, program)
}

func Test_Assemble_StringLiteral(t *testing.T) {
	t.Parallel()
	//
	program := assemble(t, "{ \"abc\" }")
	code := program.Bytecode()
	// PUSH32, left-aligned and zero-padded.
	require.Equal(t, 33, len(code))
	assert.Equal(t, []byte{0x7f, 'a', 'b', 'c', 0x00}, code[:5])
	assert.Equal(t, byte(0x00), code[32])
}

func Test_Assemble_UninitialisedDeclaration(t *testing.T) {
	t.Parallel()
	//
	// Reserves a zeroed slot.
	checkBytecode(t, "{ let x }", []byte{0x60, 0x00, 0x50})
}

func Test_Assemble_Listing(t *testing.T) {
	t.Parallel()
	//
	program := assemble(t, "{ 7 8 mul }")
	//
	assert.Equal(t, "0x00: PUSH1 0x07\n0x02: PUSH1 0x08\n0x04: MUL\n", program.String())
}

// ============================================================================
// Test helpers
// ============================================================================

func assemble(t *testing.T, src string) *Program {
	unit := NewUnit(Config{AllowWarnings: true})
	//
	if !unit.ParseString(src) || !unit.Analyze() {
		t.Fatalf("failed compiling %q: %v", src, unit.Diagnostics().Items())
	}
	//
	program, ok := unit.Assemble()
	//
	if !ok {
		t.Fatalf("failed assembling %q: %v", src, unit.Diagnostics().Items())
	}
	//
	return program
}

func checkBytecode(t *testing.T, src string, expected []byte) {
	assert.Equal(t, expected, assemble(t, src).Bytecode())
}
