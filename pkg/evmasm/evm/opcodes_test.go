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
package evm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Opcodes_Lookup(t *testing.T) {
	op, ok := Lookup("mul")
	require.True(t, ok)
	assert.Equal(t, MUL, op)
	//
	op, ok = Lookup("selfdestruct")
	require.True(t, ok)
	assert.Equal(t, SELFDESTRUCT, op)
	// Historical alias.
	op, ok = Lookup("suicide")
	require.True(t, ok)
	assert.Equal(t, SELFDESTRUCT, op)
	//
	_, ok = Lookup("bogus")
	assert.False(t, ok)
}

func Test_Opcodes_NotUserWritable(t *testing.T) {
	// Push operations and jump destinations are generated, never written.
	assert.False(t, IsMnemonic("push1"))
	assert.False(t, IsMnemonic("jumpdest"))
	//
	assert.True(t, IsMnemonic("jump"))
	assert.True(t, IsMnemonic("invalid"))
}

func Test_Opcodes_Info(t *testing.T) {
	assert.Equal(t, Info{Name: "ADD", Args: 2, Rets: 1}, ADD.Info())
	assert.Equal(t, -1, ADD.Info().StackEffect())
	assert.Equal(t, Info{Name: "DUP5", Args: 5, Rets: 6}, Dup(5).Info())
	assert.Equal(t, Info{Name: "SWAP3", Args: 4, Rets: 4}, Swap(3).Info())
	assert.Equal(t, Info{Name: "LOG2", Args: 4, Rets: 0}, (LOG0 + 2).Info())
}

func Test_Opcodes_Families(t *testing.T) {
	assert.Equal(t, PUSH1, Push(1))
	assert.Equal(t, Opcode(0x7f), Push(32))
	assert.Equal(t, DUP1, Dup(1))
	assert.Equal(t, Opcode(0x8f), Dup(16))
	assert.Equal(t, SWAP1, Swap(1))
	assert.Equal(t, Opcode(0x9f), Swap(16))
	//
	assert.True(t, Push(7).IsPush())
	assert.False(t, ADD.IsPush())
}

func Test_Opcodes_FamilyBounds(t *testing.T) {
	assert.Panics(t, func() { Push(0) })
	assert.Panics(t, func() { Push(33) })
	assert.Panics(t, func() { Dup(17) })
	assert.Panics(t, func() { Swap(0) })
}
