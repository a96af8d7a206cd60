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

// Package evm defines the symbolic instruction set targeted by the assembler:
// opcode values, mnemonics and their fixed stack signatures.
package evm

import (
	"fmt"
	"strings"
)

// Opcode identifies a single machine operation of the target stack machine.
type Opcode uint8

// Opcodes, following the standard numbering.
const (
	STOP       Opcode = 0x00
	ADD        Opcode = 0x01
	MUL        Opcode = 0x02
	SUB        Opcode = 0x03
	DIV        Opcode = 0x04
	SDIV       Opcode = 0x05
	MOD        Opcode = 0x06
	SMOD       Opcode = 0x07
	ADDMOD     Opcode = 0x08
	MULMOD     Opcode = 0x09
	EXP        Opcode = 0x0a
	SIGNEXTEND Opcode = 0x0b
	//
	LT     Opcode = 0x10
	GT     Opcode = 0x11
	SLT    Opcode = 0x12
	SGT    Opcode = 0x13
	EQ     Opcode = 0x14
	ISZERO Opcode = 0x15
	AND    Opcode = 0x16
	OR     Opcode = 0x17
	XOR    Opcode = 0x18
	NOT    Opcode = 0x19
	BYTE   Opcode = 0x1a
	//
	SHA3 Opcode = 0x20
	//
	ADDRESS      Opcode = 0x30
	BALANCE      Opcode = 0x31
	ORIGIN       Opcode = 0x32
	CALLER       Opcode = 0x33
	CALLVALUE    Opcode = 0x34
	CALLDATALOAD Opcode = 0x35
	CALLDATASIZE Opcode = 0x36
	CALLDATACOPY Opcode = 0x37
	CODESIZE     Opcode = 0x38
	CODECOPY     Opcode = 0x39
	GASPRICE     Opcode = 0x3a
	EXTCODESIZE  Opcode = 0x3b
	EXTCODECOPY  Opcode = 0x3c
	//
	BLOCKHASH  Opcode = 0x40
	COINBASE   Opcode = 0x41
	TIMESTAMP  Opcode = 0x42
	NUMBER     Opcode = 0x43
	DIFFICULTY Opcode = 0x44
	GASLIMIT   Opcode = 0x45
	//
	POP      Opcode = 0x50
	MLOAD    Opcode = 0x51
	MSTORE   Opcode = 0x52
	MSTORE8  Opcode = 0x53
	SLOAD    Opcode = 0x54
	SSTORE   Opcode = 0x55
	JUMP     Opcode = 0x56
	JUMPI    Opcode = 0x57
	PC       Opcode = 0x58
	MSIZE    Opcode = 0x59
	GAS      Opcode = 0x5a
	JUMPDEST Opcode = 0x5b
	//
	PUSH1  Opcode = 0x60
	PUSH32 Opcode = 0x7f
	//
	DUP1  Opcode = 0x80
	DUP16 Opcode = 0x8f
	//
	SWAP1  Opcode = 0x90
	SWAP16 Opcode = 0x9f
	//
	LOG0 Opcode = 0xa0
	LOG4 Opcode = 0xa4
	//
	CREATE       Opcode = 0xf0
	CALL         Opcode = 0xf1
	CALLCODE     Opcode = 0xf2
	RETURN       Opcode = 0xf3
	DELEGATECALL Opcode = 0xf4
	//
	REVERT       Opcode = 0xfd
	INVALID      Opcode = 0xfe
	SELFDESTRUCT Opcode = 0xff
)

// Info describes the fixed signature of an instruction: its canonical name,
// the number of stack operands it consumes and the number of values it
// produces.
type Info struct {
	Name string
	Args uint
	Rets uint
}

// StackEffect returns the net number of stack values pushed (positive) or
// popped (negative) by the instruction.
func (p Info) StackEffect() int {
	return int(p.Rets) - int(p.Args)
}

var infos = map[Opcode]Info{
	STOP:         {"STOP", 0, 0},
	ADD:          {"ADD", 2, 1},
	MUL:          {"MUL", 2, 1},
	SUB:          {"SUB", 2, 1},
	DIV:          {"DIV", 2, 1},
	SDIV:         {"SDIV", 2, 1},
	MOD:          {"MOD", 2, 1},
	SMOD:         {"SMOD", 2, 1},
	ADDMOD:       {"ADDMOD", 3, 1},
	MULMOD:       {"MULMOD", 3, 1},
	EXP:          {"EXP", 2, 1},
	SIGNEXTEND:   {"SIGNEXTEND", 2, 1},
	LT:           {"LT", 2, 1},
	GT:           {"GT", 2, 1},
	SLT:          {"SLT", 2, 1},
	SGT:          {"SGT", 2, 1},
	EQ:           {"EQ", 2, 1},
	ISZERO:       {"ISZERO", 1, 1},
	AND:          {"AND", 2, 1},
	OR:           {"OR", 2, 1},
	XOR:          {"XOR", 2, 1},
	NOT:          {"NOT", 1, 1},
	BYTE:         {"BYTE", 2, 1},
	SHA3:         {"SHA3", 2, 1},
	ADDRESS:      {"ADDRESS", 0, 1},
	BALANCE:      {"BALANCE", 1, 1},
	ORIGIN:       {"ORIGIN", 0, 1},
	CALLER:       {"CALLER", 0, 1},
	CALLVALUE:    {"CALLVALUE", 0, 1},
	CALLDATALOAD: {"CALLDATALOAD", 1, 1},
	CALLDATASIZE: {"CALLDATASIZE", 0, 1},
	CALLDATACOPY: {"CALLDATACOPY", 3, 0},
	CODESIZE:     {"CODESIZE", 0, 1},
	CODECOPY:     {"CODECOPY", 3, 0},
	GASPRICE:     {"GASPRICE", 0, 1},
	EXTCODESIZE:  {"EXTCODESIZE", 1, 1},
	EXTCODECOPY:  {"EXTCODECOPY", 4, 0},
	BLOCKHASH:    {"BLOCKHASH", 1, 1},
	COINBASE:     {"COINBASE", 0, 1},
	TIMESTAMP:    {"TIMESTAMP", 0, 1},
	NUMBER:       {"NUMBER", 0, 1},
	DIFFICULTY:   {"DIFFICULTY", 0, 1},
	GASLIMIT:     {"GASLIMIT", 0, 1},
	POP:          {"POP", 1, 0},
	MLOAD:        {"MLOAD", 1, 1},
	MSTORE:       {"MSTORE", 2, 0},
	MSTORE8:      {"MSTORE8", 2, 0},
	SLOAD:        {"SLOAD", 1, 1},
	SSTORE:       {"SSTORE", 2, 0},
	JUMP:         {"JUMP", 1, 0},
	JUMPI:        {"JUMPI", 2, 0},
	PC:           {"PC", 0, 1},
	MSIZE:        {"MSIZE", 0, 1},
	GAS:          {"GAS", 0, 1},
	JUMPDEST:     {"JUMPDEST", 0, 0},
	CREATE:       {"CREATE", 3, 1},
	CALL:         {"CALL", 7, 1},
	CALLCODE:     {"CALLCODE", 7, 1},
	RETURN:       {"RETURN", 2, 0},
	DELEGATECALL: {"DELEGATECALL", 6, 1},
	REVERT:       {"REVERT", 2, 0},
	INVALID:      {"INVALID", 0, 0},
	SELFDESTRUCT: {"SELFDESTRUCT", 1, 0},
}

// Mnemonic lookup table.  The PUSH family and JUMPDEST are deliberately
// absent: those operations are chosen by the assembler, never written by the
// programmer.
var mnemonics map[string]Opcode

func init() {
	// Populate the PUSH/DUP/SWAP/LOG families.
	for i := uint(0); i < 32; i++ {
		op := PUSH1 + Opcode(i)
		infos[op] = Info{fmt.Sprintf("PUSH%d", i+1), 0, 1}
	}
	//
	for i := uint(0); i < 16; i++ {
		dup := DUP1 + Opcode(i)
		swap := SWAP1 + Opcode(i)
		infos[dup] = Info{fmt.Sprintf("DUP%d", i+1), i + 1, i + 2}
		infos[swap] = Info{fmt.Sprintf("SWAP%d", i+1), i + 2, i + 2}
	}
	//
	for i := uint(0); i <= 4; i++ {
		op := LOG0 + Opcode(i)
		infos[op] = Info{fmt.Sprintf("LOG%d", i), i + 2, 0}
	}
	// Build the mnemonic table from the canonical names.
	mnemonics = make(map[string]Opcode, len(infos))
	//
	for op, info := range infos {
		if op == JUMPDEST || op.IsPush() {
			continue
		}
		//
		mnemonics[strings.ToLower(info.Name)] = op
	}
	// Legacy alias.
	mnemonics["suicide"] = SELFDESTRUCT
}

// Info returns the signature of this opcode, or panics if the opcode is not
// part of the instruction set.
func (op Opcode) Info() Info {
	info, ok := infos[op]
	//
	if !ok {
		panic(fmt.Sprintf("unknown opcode 0x%02x", uint8(op)))
	}
	//
	return info
}

// IsPush determines whether this opcode is one of the PUSH family.
func (op Opcode) IsPush() bool {
	return PUSH1 <= op && op <= PUSH32
}

// String returns the canonical (uppercase) name of this opcode.
func (op Opcode) String() string {
	if info, ok := infos[op]; ok {
		return info.Name
	}
	//
	return fmt.Sprintf("0x%02x", uint8(op))
}

// Push returns the push opcode for an immediate occupying n bytes, where
// 1 <= n <= 32.
func Push(n uint) Opcode {
	if n == 0 || n > 32 {
		panic("invalid push width")
	}
	//
	return PUSH1 + Opcode(n-1)
}

// Dup returns the opcode duplicating the nth stack value, counting from 1 at
// the top of the stack.
func Dup(n uint) Opcode {
	if n == 0 || n > 16 {
		panic("invalid dup depth")
	}
	//
	return DUP1 + Opcode(n-1)
}

// Swap returns the opcode exchanging the top of the stack with the value n
// positions below it.
func Swap(n uint) Opcode {
	if n == 0 || n > 16 {
		panic("invalid swap depth")
	}
	//
	return SWAP1 + Opcode(n-1)
}

// Lookup finds the opcode for a given (lowercase) mnemonic, indicating whether
// the mnemonic is part of the user-writable instruction set.
func Lookup(name string) (Opcode, bool) {
	op, ok := mnemonics[name]
	return op, ok
}

// IsMnemonic checks whether a given name is a reserved instruction mnemonic.
// Reserved names can never be declared as identifiers.
func IsMnemonic(name string) bool {
	_, ok := mnemonics[name]
	return ok
}
