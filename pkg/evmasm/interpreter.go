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
	"fmt"
	"math/big"

	"github.com/evmtools/go-evmasm/pkg/evmasm/evm"
	"golang.org/x/crypto/sha3"
)

// Stack slots are limited, as on the real machine.
const maxStackHeight = 1024

// Modulus of machine words.
var wordModulus = new(big.Int).Lsh(big.NewInt(1), 256)

// ExecutionError signals that execution failed at a given byte offset.
type ExecutionError struct {
	// Byte offset of the failing operation.
	PC uint
	// Description of the failure.
	Msg string
}

func (p *ExecutionError) Error() string {
	return fmt.Sprintf("0x%02x: %s", p.PC, p.Msg)
}

// State captures the machine state left behind by an execution.
type State struct {
	// Operand stack, bottom first.
	Stack []*big.Int
	// Linear memory, as touched so far.
	Memory []byte
	// Word-addressed persistent storage.
	Storage map[string]*big.Int
	// Data returned via RETURN or REVERT, if any.
	ReturnData []byte
	// Whether execution ended in REVERT.
	Reverted bool
	// Number of operations executed.
	Steps uint
}

// Top returns the value on top of the operand stack, or nil when empty.
func (p *State) Top() *big.Int {
	if len(p.Stack) == 0 {
		return nil
	}
	//
	return p.Stack[len(p.Stack)-1]
}

// Execute runs a bytecode sequence on a fresh machine with empty memory and
// storage, stopping after at most maxSteps operations.  Execution ends
// normally on STOP, RETURN, REVERT or by running off the end of the code.
func Execute(code []byte, maxSteps uint) (*State, error) {
	machine := &machine{
		code: code,
		state: &State{
			Storage: make(map[string]*big.Int),
		},
		dests: jumpDestinations(code),
	}
	//
	return machine.run(maxSteps)
}

type machine struct {
	code  []byte
	state *State
	// Valid jump destinations, by byte offset.
	dests map[uint]bool
	pc    uint
}

// Scan the code for JUMPDEST operations, skipping over push immediates.
func jumpDestinations(code []byte) map[uint]bool {
	dests := make(map[uint]bool)
	//
	for pc := uint(0); pc < uint(len(code)); pc++ {
		op := evm.Opcode(code[pc])
		//
		if op == evm.JUMPDEST {
			dests[pc] = true
		} else if op.IsPush() {
			pc += uint(op) - uint(evm.PUSH1) + 1
		}
	}
	//
	return dests
}

func (p *machine) run(maxSteps uint) (*State, error) {
	for p.pc < uint(len(p.code)) {
		if p.state.Steps >= maxSteps {
			return p.state, p.failure("step limit exceeded")
		}
		//
		p.state.Steps++
		//
		done, err := p.step()
		//
		if err != nil || done {
			return p.state, err
		}
	}
	//
	return p.state, nil
}

// Execute a single operation, reporting whether execution has finished.
//
//nolint:gocyclo
func (p *machine) step() (bool, error) {
	op := evm.Opcode(p.code[p.pc])
	at := p.pc
	p.pc++
	//
	switch {
	case op.IsPush():
		return false, p.pushImmediate(op, at)
	case op >= evm.DUP1 && op <= evm.DUP16:
		return false, p.dup(uint(op-evm.DUP1) + 1)
	case op >= evm.SWAP1 && op <= evm.SWAP16:
		return false, p.swap(uint(op-evm.SWAP1) + 1)
	}
	//
	switch op {
	case evm.STOP:
		return true, nil
	case evm.ADD:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.Add(x, y) })
	case evm.MUL:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.Mul(x, y) })
	case evm.SUB:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.Sub(x, y) })
	case evm.DIV:
		return false, p.binary(divide)
	case evm.SDIV:
		return false, p.binary(signed(divide))
	case evm.MOD:
		return false, p.binary(modulo)
	case evm.SMOD:
		return false, p.binary(signed(modulo))
	case evm.ADDMOD:
		return false, p.ternary(func(x, y, m *big.Int) *big.Int {
			if m.Sign() == 0 {
				return m
			}
			return x.Mod(x.Add(x, y), m)
		})
	case evm.MULMOD:
		return false, p.ternary(func(x, y, m *big.Int) *big.Int {
			if m.Sign() == 0 {
				return m
			}
			return x.Mod(x.Mul(x, y), m)
		})
	case evm.EXP:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.Exp(x, y, wordModulus) })
	case evm.SIGNEXTEND:
		return false, p.binary(signExtend)
	case evm.LT:
		return false, p.comparison(func(x, y *big.Int) bool { return x.Cmp(y) < 0 })
	case evm.GT:
		return false, p.comparison(func(x, y *big.Int) bool { return x.Cmp(y) > 0 })
	case evm.SLT:
		return false, p.comparison(func(x, y *big.Int) bool { return toSigned(x).Cmp(toSigned(y)) < 0 })
	case evm.SGT:
		return false, p.comparison(func(x, y *big.Int) bool { return toSigned(x).Cmp(toSigned(y)) > 0 })
	case evm.EQ:
		return false, p.comparison(func(x, y *big.Int) bool { return x.Cmp(y) == 0 })
	case evm.ISZERO:
		return false, p.unary(func(x *big.Int) *big.Int {
			if x.Sign() == 0 {
				return x.SetUint64(1)
			}
			return x.SetUint64(0)
		})
	case evm.AND:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.And(x, y) })
	case evm.OR:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.Or(x, y) })
	case evm.XOR:
		return false, p.binary(func(x, y *big.Int) *big.Int { return x.Xor(x, y) })
	case evm.NOT:
		return false, p.unary(func(x *big.Int) *big.Int { return x.Sub(new(big.Int).Sub(wordModulus, big.NewInt(1)), x) })
	case evm.BYTE:
		return false, p.binary(extractByte)
	case evm.SHA3:
		return false, p.keccak256()
	case evm.POP:
		_, err := p.pop()
		return false, err
	case evm.MLOAD:
		return false, p.mload()
	case evm.MSTORE:
		return false, p.mstore(WordSize)
	case evm.MSTORE8:
		return false, p.mstore(1)
	case evm.SLOAD:
		return false, p.sload()
	case evm.SSTORE:
		return false, p.sstore()
	case evm.JUMP:
		return false, p.jump()
	case evm.JUMPI:
		return false, p.jumpi()
	case evm.PC:
		return false, p.push(new(big.Int).SetUint64(uint64(at)))
	case evm.MSIZE:
		return false, p.push(new(big.Int).SetUint64(uint64(len(p.state.Memory))))
	case evm.CODESIZE:
		return false, p.push(new(big.Int).SetUint64(uint64(len(p.code))))
	case evm.JUMPDEST:
		return false, nil
	case evm.RETURN, evm.REVERT:
		return true, p.returnData(op == evm.REVERT)
	case evm.INVALID:
		return true, p.failure("invalid operation")
	default:
		return true, p.failure(fmt.Sprintf("%s not supported without an execution context", op.String()))
	}
}

// ============================================================================
// Operations
// ============================================================================

func (p *machine) pushImmediate(op evm.Opcode, at uint) error {
	width := uint(op) - uint(evm.PUSH1) + 1
	//
	if p.pc+width > uint(len(p.code)) {
		return p.failure("push runs off the end of the code")
	}
	//
	value := new(big.Int).SetBytes(p.code[p.pc : p.pc+width])
	p.pc += width
	//
	return p.push(value)
}

func (p *machine) dup(n uint) error {
	if uint(len(p.state.Stack)) < n {
		return p.failure("stack underflow")
	}
	//
	value := p.state.Stack[uint(len(p.state.Stack))-n]
	//
	return p.push(new(big.Int).Set(value))
}

func (p *machine) swap(n uint) error {
	height := uint(len(p.state.Stack))
	//
	if height < n+1 {
		return p.failure("stack underflow")
	}
	//
	p.state.Stack[height-1], p.state.Stack[height-1-n] = p.state.Stack[height-1-n], p.state.Stack[height-1]
	//
	return nil
}

func (p *machine) unary(fn func(*big.Int) *big.Int) error {
	x, err := p.pop()
	//
	if err != nil {
		return err
	}
	//
	result := fn(x)
	//
	return p.push(result.Mod(result, wordModulus))
}

func (p *machine) binary(fn func(x, y *big.Int) *big.Int) error {
	x, y, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	result := fn(x, y)
	//
	return p.push(result.Mod(result, wordModulus))
}

func (p *machine) ternary(fn func(x, y, m *big.Int) *big.Int) error {
	x, y, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	m, err := p.pop()
	//
	if err != nil {
		return err
	}
	//
	result := fn(x, y, m)
	//
	return p.push(result.Mod(result, wordModulus))
}

func (p *machine) comparison(fn func(x, y *big.Int) bool) error {
	x, y, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	if fn(x, y) {
		return p.push(big.NewInt(1))
	}
	//
	return p.push(big.NewInt(0))
}

func (p *machine) keccak256() error {
	offset, size, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	data := p.memorySlice(offset.Uint64(), size.Uint64())
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	//
	return p.push(new(big.Int).SetBytes(hash.Sum(nil)))
}

func (p *machine) mload() error {
	offset, err := p.pop()
	//
	if err != nil {
		return err
	}
	//
	word := p.memorySlice(offset.Uint64(), WordSize)
	//
	return p.push(new(big.Int).SetBytes(word))
}

func (p *machine) mstore(width uint) error {
	offset, value, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	slice := p.memorySlice(offset.Uint64(), uint64(width))
	value.FillBytes(slice)
	//
	return nil
}

func (p *machine) sload() error {
	key, err := p.pop()
	//
	if err != nil {
		return err
	}
	//
	if value, ok := p.state.Storage[key.String()]; ok {
		return p.push(new(big.Int).Set(value))
	}
	//
	return p.push(big.NewInt(0))
}

func (p *machine) sstore() error {
	key, value, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	p.state.Storage[key.String()] = value
	//
	return nil
}

func (p *machine) jump() error {
	target, err := p.pop()
	//
	if err != nil {
		return err
	}
	//
	return p.jumpTo(target)
}

func (p *machine) jumpi() error {
	target, condition, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	if condition.Sign() == 0 {
		return nil
	}
	//
	return p.jumpTo(target)
}

func (p *machine) jumpTo(target *big.Int) error {
	if !target.IsUint64() || !p.dests[uint(target.Uint64())] {
		return p.failure(fmt.Sprintf("invalid jump destination 0x%x", target))
	}
	//
	p.pc = uint(target.Uint64())
	//
	return nil
}

func (p *machine) returnData(revert bool) error {
	offset, size, err := p.pop2()
	//
	if err != nil {
		return err
	}
	//
	p.state.ReturnData = p.memorySlice(offset.Uint64(), size.Uint64())
	p.state.Reverted = revert
	//
	return nil
}

// ============================================================================
// Machine state
// ============================================================================

func (p *machine) push(value *big.Int) error {
	if len(p.state.Stack) >= maxStackHeight {
		return p.failure("stack overflow")
	}
	//
	p.state.Stack = append(p.state.Stack, value)
	//
	return nil
}

func (p *machine) pop() (*big.Int, error) {
	if len(p.state.Stack) == 0 {
		return nil, p.failure("stack underflow")
	}
	//
	value := p.state.Stack[len(p.state.Stack)-1]
	p.state.Stack = p.state.Stack[:len(p.state.Stack)-1]
	//
	return value, nil
}

func (p *machine) pop2() (*big.Int, *big.Int, error) {
	x, err := p.pop()
	//
	if err != nil {
		return nil, nil, err
	}
	//
	y, err := p.pop()
	//
	return x, y, err
}

// Slice of memory at a given offset, expanding (with zeroes) as needed.
func (p *machine) memorySlice(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	//
	end := offset + size
	//
	if end > uint64(len(p.state.Memory)) {
		expanded := make([]byte, end)
		copy(expanded, p.state.Memory)
		p.state.Memory = expanded
	}
	//
	return p.state.Memory[offset:end]
}

func (p *machine) failure(msg string) error {
	return &ExecutionError{PC: p.pc, Msg: msg}
}

// ============================================================================
// Word arithmetic
// ============================================================================

func divide(x, y *big.Int) *big.Int {
	if y.Sign() == 0 {
		return y
	}
	//
	return x.Quo(x, y)
}

func modulo(x, y *big.Int) *big.Int {
	if y.Sign() == 0 {
		return y
	}
	//
	return x.Rem(x, y)
}

// Lift an unsigned operation to operate on two's complement words.
func signed(fn func(x, y *big.Int) *big.Int) func(x, y *big.Int) *big.Int {
	return func(x, y *big.Int) *big.Int {
		return fromSigned(fn(toSigned(x), toSigned(y)))
	}
}

func toSigned(x *big.Int) *big.Int {
	if x.BitLen() == 256 {
		return new(big.Int).Sub(x, wordModulus)
	}
	//
	return x
}

func fromSigned(x *big.Int) *big.Int {
	if x.Sign() < 0 {
		return x.Add(x, wordModulus)
	}
	//
	return x
}

func signExtend(k, x *big.Int) *big.Int {
	if !k.IsUint64() || k.Uint64() >= WordSize-1 {
		return x
	}
	//
	bit := uint(k.Uint64())*8 + 7
	mask := new(big.Int).Lsh(big.NewInt(1), bit+1)
	mask.Sub(mask, big.NewInt(1))
	//
	if x.Bit(int(bit)) == 1 {
		// Negative: set all higher bits.
		upper := new(big.Int).Sub(wordModulus, big.NewInt(1))
		upper.AndNot(upper, mask)
		//
		return x.Or(x.And(x, mask), upper)
	}
	//
	return x.And(x, mask)
}

func extractByte(i, x *big.Int) *big.Int {
	if !i.IsUint64() || i.Uint64() >= WordSize {
		return i.SetUint64(0)
	}
	//
	var word [WordSize]byte
	x.FillBytes(word[:])
	//
	return i.SetUint64(uint64(word[i.Uint64()]))
}
