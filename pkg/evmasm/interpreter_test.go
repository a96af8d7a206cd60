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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

func Test_Execute_Add(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ 7 8 add }")
	//
	assert.Equal(t, big.NewInt(15), state.Top())
}

func Test_Execute_Functional(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ mul(3, add(2, 4)) }")
	//
	assert.Equal(t, big.NewInt(18), state.Top())
}

func Test_Execute_WrappingArithmetic(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ sub(0, 8) }")
	//
	expected := new(big.Int).Sub(wordModulus, big.NewInt(8))
	assert.Equal(t, expected, state.Top())
}

func Test_Execute_SignedDivision(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ sdiv(sub(0, 8), 2) }")
	//
	expected := new(big.Int).Sub(wordModulus, big.NewInt(4))
	assert.Equal(t, expected, state.Top())
}

func Test_Execute_Memory(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ mstore(0, 0x1234) sstore(0, mload(0)) }")
	//
	assert.Equal(t, big.NewInt(0x1234), state.Storage["0"])
	assert.Equal(t, 32, len(state.Memory))
}

func Test_Execute_Keccak256(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ mstore(0, 1) sstore(0, sha3(0, 0x20)) }")
	// Hash of one as a full word.
	var word [WordSize]byte
	//
	word[WordSize-1] = 1
	hash := sha3.NewLegacyKeccak256()
	hash.Write(word[:])
	//
	expected := new(big.Int).SetBytes(hash.Sum(nil))
	assert.Equal(t, expected, state.Storage["0"])
}

func Test_Execute_Loop(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ let i := 0 loop: i := add(i, 1) jumpi(loop, lt(i, 5)) sstore(0, i) }")
	//
	assert.Equal(t, big.NewInt(5), state.Storage["0"])
	// Locals popped on block exit.
	assert.Equal(t, 0, len(state.Stack))
}

func Test_Execute_FunctionCall(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ function double(x) -> (y) { y := add(x, x) } let r := double(7) sstore(0, r) }")
	//
	assert.Equal(t, big.NewInt(14), state.Storage["0"])
}

func Test_Execute_NestedFunctionCalls(t *testing.T) {
	t.Parallel()
	//
	src := `{
        function double(x) -> (y)
        {
            y := add(x, x)
        }
        function quad(x) -> (y)
        {
            y := double(double(x))
        }
        sstore(0, quad(3))
    }`
	state := run(t, src)
	//
	assert.Equal(t, big.NewInt(12), state.Storage["0"])
}

func Test_Execute_MultipleReturns(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ function divmod(a, b) -> (q, r) { q := div(a, b) r := mod(a, b) } let x, y := divmod(17, 5) sstore(0, x) sstore(1, y) }")
	//
	assert.Equal(t, big.NewInt(3), state.Storage["0"])
	assert.Equal(t, big.NewInt(2), state.Storage["1"])
}

func Test_Execute_Revert(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ mstore(0, 42) revert(0, 0x20) }")
	//
	require.True(t, state.Reverted)
	require.Equal(t, WordSize, len(state.ReturnData))
	assert.Equal(t, byte(42), state.ReturnData[WordSize-1])
}

func Test_Execute_Return(t *testing.T) {
	t.Parallel()
	//
	state := run(t, "{ mstore(0, 42) return(0, 0x20) }")
	//
	require.False(t, state.Reverted)
	require.Equal(t, WordSize, len(state.ReturnData))
	assert.Equal(t, byte(42), state.ReturnData[WordSize-1])
}

func Test_Execute_Invalid(t *testing.T) {
	t.Parallel()
	//
	_, err := execute(t, "{ invalid }")
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operation")
}

func Test_Execute_ErrorTagJump(t *testing.T) {
	t.Parallel()
	//
	// Jumping to an unresolved label lands on the error position.
	_, err := execute(t, "{ jump(nowhere) }")
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jump destination")
}

func Test_Execute_StepLimit(t *testing.T) {
	t.Parallel()
	//
	// Infinite loop.
	_, err := execute(t, "{ loop: jump(loop) }")
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step limit exceeded")
}

func Test_Execute_StackUnderflow(t *testing.T) {
	t.Parallel()
	//
	_, err := execute(t, "{ pop }")
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack underflow")
}

// ============================================================================
// Test helpers
// ============================================================================

func execute(t *testing.T, src string) (*State, error) {
	return Execute(assemble(t, src).Bytecode(), 10_000)
}

func run(t *testing.T, src string) *State {
	state, err := execute(t, src)
	//
	require.NoError(t, err)
	//
	return state
}
