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
	"strings"

	"github.com/evmtools/go-evmasm/pkg/evmasm/ast"
	"github.com/evmtools/go-evmasm/pkg/evmasm/evm"
	"github.com/evmtools/go-evmasm/pkg/util/source"
	log "github.com/sirupsen/logrus"
)

// Operation is a single machine instruction together with its immediate
// operand (push operations only).
type Operation struct {
	Code evm.Opcode
	// Immediate holds the big-endian push data, between 1 and 32 bytes for
	// push operations, nil otherwise.
	Immediate []byte
}

// Program is an assembled sequence of operations.
type Program struct {
	ops []Operation
}

// Operations returns the assembled operation sequence.
func (p *Program) Operations() []Operation {
	return p.ops
}

// Len returns the number of operations in this program.
func (p *Program) Len() int {
	return len(p.ops)
}

// Bytecode encodes the program, with push immediates inlined after their
// opcode.
func (p *Program) Bytecode() []byte {
	var code []byte
	//
	for _, op := range p.ops {
		code = append(code, byte(op.Code))
		code = append(code, op.Immediate...)
	}
	//
	return code
}

// String produces a human-readable listing, one operation per line prefixed
// by its byte offset.
func (p *Program) String() string {
	var (
		builder strings.Builder
		offset  uint
	)
	//
	for _, op := range p.ops {
		fmt.Fprintf(&builder, "0x%02x: %s", offset, op.Code.String())
		//
		if len(op.Immediate) > 0 {
			fmt.Fprintf(&builder, " 0x%x", op.Immediate)
		}
		//
		builder.WriteString("\n")
		//
		offset += 1 + uint(len(op.Immediate))
	}
	//
	return builder.String()
}

// Width of a jump target immediate.  All label pushes are emitted at this
// fixed width, capping programs at 64KiB of code.
const tagWidth = 2

// Assemble lowers an analyzed block into a linear operation sequence.
// Variables become stack slots accessed via DUP and SWAP, labels become
// jump destinations, and function definitions are emitted inline behind a
// skip jump.  Identifiers which failed to resolve are lowered to a push of
// the error position, a trailing INVALID operation.  When the sink already
// holds errors no code is generated and nil is returned.
func Assemble(block *ast.Block, srcmap *source.Map[ast.Node], analysis *Analysis, diags *Diagnostics) *Program {
	if !diags.OnlyWarnings() {
		return nil
	}
	//
	asm := &assembler{
		srcmap:   srcmap,
		analysis: analysis,
		diags:    diags,
		tags:     make(map[*ast.Label]int),
		entries:  make(map[*ast.FunctionDefinition]int),
	}
	//
	asm.block(block)
	asm.link()
	//
	log.Debugf("assembled %d operation(s)", len(asm.ops))
	//
	return &Program{ops: asm.ops}
}

// A pending reference to a position whose value is not yet known.  Labels
// are referenced by declaration (same-name labels in sibling blocks are
// distinct destinations); internal tags are back-patched directly via their
// fixup index.  A fixup referencing nothing resolves to the error position.
type fixup struct {
	// Index of the push operation to patch.
	op int
	// Source label referenced, if any.
	label *ast.Label
	// Function definition referenced, if any.
	fn *ast.FunctionDefinition
	// Operation index of an internal tag, or -1.
	target int
}

type assembler struct {
	srcmap   *source.Map[ast.Node]
	analysis *Analysis
	diags    *Diagnostics
	// Emitted operations.
	ops []Operation
	// Positions of source labels, as operation indices.
	tags map[*ast.Label]int
	// Positions of function entry points, as operation indices.
	entries map[*ast.FunctionDefinition]int
	// References awaiting resolution.
	fixups []fixup
	// Stack of scope frames mapping variables to stack slots.
	scopes []*slots
	// Current stack height within the enclosing function context.
	height int
}

// slots maps the variables of one lexical block to their stack positions.
type slots struct {
	vars map[string]int
	// Number of slots to pop when the block closes.
	locals int
}

// ============================================================================
// Statements
// ============================================================================

func (p *assembler) block(block *ast.Block) {
	p.scopes = append(p.scopes, &slots{vars: make(map[string]int)})
	//
	for _, stmt := range block.Statements {
		p.statement(stmt)
	}
	// Locals die with their block.
	top := p.scopes[len(p.scopes)-1]
	//
	for i := 0; i < top.locals; i++ {
		p.appendOp(evm.POP)
	}
	//
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *assembler) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		p.block(s)
	case *ast.VariableDeclaration:
		p.variableDeclaration(s)
	case *ast.Assignment:
		p.expression(s.Value)
		p.storeVariable(s, s.Name)
	case *ast.StackAssignment:
		p.storeVariable(s, s.Name)
	case *ast.Label:
		p.label(s)
	case *ast.FunctionDefinition:
		p.functionDefinition(s)
	case ast.Expression:
		p.expression(s)
	default:
		panic(fmt.Sprintf("unknown statement %T", stmt))
	}
}

func (p *assembler) variableDeclaration(decl *ast.VariableDeclaration) {
	base := p.height
	//
	for _, value := range decl.Values {
		p.expression(value)
	}
	// Uninitialised declarations reserve zeroed slots.
	if len(decl.Values) == 0 {
		for range decl.Names {
			p.appendPush(big.NewInt(0))
		}
	}
	//
	top := p.scopes[len(p.scopes)-1]
	//
	for i, name := range decl.Names {
		top.vars[name] = base + i
		top.locals++
	}
}

func (p *assembler) label(label *ast.Label) {
	p.tags[label] = len(p.ops)
	p.appendOp(evm.JUMPDEST)
	// Numeric annotation items adjust the expected stack height, whilst
	// identifier items (re)bind names to the topmost slots.
	var names []string
	//
	for _, item := range label.Items {
		if item.IsNumber() {
			p.height += int(item.Number.Unwrap().Int64())
		} else {
			names = append(names, item.Name)
		}
	}
	//
	top := p.scopes[len(p.scopes)-1]
	//
	for i, name := range names {
		top.vars[name] = p.height - len(names) + i
	}
}

// Function bodies are emitted inline at their point of definition, behind a
// jump which skips over them.  Calling convention: the caller pushes the
// return address, then the arguments left to right, then jumps to the entry
// point; the callee leaves its return values in declaration order and jumps
// back.
func (p *assembler) functionDefinition(fn *ast.FunctionDefinition) {
	skip := p.appendTagPush(nil, nil)
	p.appendOp(evm.JUMP)
	//
	p.entries[fn] = len(p.ops)
	p.appendOp(evm.JUMPDEST)
	// Fresh height baseline: return address at slot 0, parameters above.
	outerHeight := p.height
	p.height = 1 + len(fn.Params)
	//
	p.scopes = append(p.scopes, &slots{vars: make(map[string]int)})
	top := p.scopes[len(p.scopes)-1]
	//
	for i, name := range fn.Params {
		top.vars[name] = 1 + i
	}
	// Return variables are zero-initialised on entry.
	for i, name := range fn.Returns {
		p.appendPush(big.NewInt(0))
		top.vars[name] = 1 + len(fn.Params) + i
	}
	//
	p.block(fn.Body)
	p.exitFunction(len(fn.Params), len(fn.Returns))
	//
	p.scopes = p.scopes[:len(p.scopes)-1]
	p.height = outerHeight
	//
	p.placeTag(skip)
}

// Rearrange the stack on function exit.  On entry here the stack is, bottom
// to top: return address, parameters, return values.  On exit only the
// return values remain, in order, and control transfers to the return
// address.  Each slot is assigned its target position (or -1 to discard) and
// swapped or popped into place.
func (p *assembler) exitFunction(params, returns int) {
	layout := make([]int, 0, 1+params+returns)
	// Return address ends on top, ready for the jump.
	layout = append(layout, returns)
	//
	for i := 0; i < params; i++ {
		layout = append(layout, -1)
	}
	//
	for i := 0; i < returns; i++ {
		layout = append(layout, i)
	}
	//
	for len(layout) > 0 && layout[len(layout)-1] != len(layout)-1 {
		top := layout[len(layout)-1]
		//
		if top < 0 {
			p.appendOp(evm.POP)
			layout = layout[:len(layout)-1]
		} else {
			p.appendOp(evm.Swap(uint(len(layout) - 1 - top)))
			layout[len(layout)-1], layout[top] = layout[top], layout[len(layout)-1]
		}
	}
	//
	p.appendOp(evm.JUMP)
}

// ============================================================================
// Expressions
// ============================================================================

func (p *assembler) expression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Literal:
		p.literal(e)
	case *ast.Instruction:
		op, _ := evm.Lookup(e.Name)
		p.appendOp(op)
	case *ast.Identifier:
		p.identifier(e)
	case *ast.Call:
		p.call(e)
	default:
		panic(fmt.Sprintf("unknown expression %T", expr))
	}
}

func (p *assembler) literal(lit *ast.Literal) {
	if lit.IsNumber {
		p.appendPush(lit.Number)
	} else {
		// String literals occupy a full word, left-aligned and zero-padded.
		word := make([]byte, WordSize)
		copy(word, lit.Bytes)
		//
		p.appendImmediate(word)
	}
}

func (p *assembler) identifier(id *ast.Identifier) {
	switch p.analysis.BindingOf(id) {
	case BindVariable:
		slot, _ := p.lookupSlot(id.Name)
		depth := p.height - slot
		//
		if depth < 1 || depth > 16 {
			p.errorAt(id, StackBalance, fmt.Sprintf("variable \"%s\" is too deep in the stack (%d slots)", id.Name, depth))
			p.appendPush(big.NewInt(0))
		} else {
			p.appendOp(evm.Dup(uint(depth)))
		}
	case BindLabel:
		p.appendTagPush(p.analysis.LabelOf(id), nil)
	default:
		// Unresolved: push the error position.
		p.appendTagPush(nil, nil)
	}
}

func (p *assembler) call(call *ast.Call) {
	if p.analysis.BindingOf(call) == BindInstruction {
		// Arguments are evaluated right to left, leaving the first argument
		// topmost as the instruction expects.
		for i := len(call.Arguments) - 1; i >= 0; i-- {
			p.expression(call.Arguments[i])
		}
		//
		op, _ := evm.Lookup(call.Name)
		p.appendOp(op)
		//
		return
	}
	//
	if p.analysis.BindingOf(call) != BindFunction {
		// Unresolved callee; errors were already reported.
		p.appendTagPush(nil, nil)
		return
	}
	//
	def := p.analysis.CalleeOf(call)
	// Push the return address, then arguments left to right, then transfer
	// to the entry point.
	ret := p.appendTagPush(nil, nil)
	//
	for _, arg := range call.Arguments {
		p.expression(arg)
	}
	//
	p.appendTagPush(nil, def)
	p.appendOp(evm.JUMP)
	// Call consumed the return address and arguments, leaving the returns.
	p.height -= 1 + len(call.Arguments)
	p.height += len(def.Returns)
	//
	p.placeTag(ret)
}

// Pop the top of stack into the slot of the named variable.
func (p *assembler) storeVariable(stmt ast.Statement, name string) {
	slot, ok := p.lookupSlot(name)
	//
	if !ok {
		// Already diagnosed; discard the value.
		p.appendOp(evm.POP)
		return
	}
	//
	depth := p.height - 1 - slot
	//
	if depth < 1 || depth > 16 {
		p.errorAt(stmt, StackBalance, fmt.Sprintf("variable \"%s\" is too deep in the stack (%d slots)", name, depth))
		p.appendOp(evm.POP)
		//
		return
	}
	//
	p.appendOp(evm.Swap(uint(depth)))
	p.appendOp(evm.POP)
}

func (p *assembler) lookupSlot(name string) (int, bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if slot, ok := p.scopes[i].vars[name]; ok {
			return slot, true
		}
	}
	//
	return 0, false
}

// ============================================================================
// Emission
// ============================================================================

func (p *assembler) appendOp(op evm.Opcode) {
	p.ops = append(p.ops, Operation{Code: op})
	p.height += op.Info().StackEffect()
}

// Push a numeric constant using the smallest push operation which fits it.
func (p *assembler) appendPush(value *big.Int) {
	bytes := value.Bytes()
	//
	if len(bytes) == 0 {
		bytes = []byte{0}
	}
	//
	p.appendImmediate(bytes)
}

func (p *assembler) appendImmediate(bytes []byte) {
	p.ops = append(p.ops, Operation{Code: evm.Push(uint(len(bytes))), Immediate: bytes})
	p.height++
}

// Push a not-yet-resolved position: a source label, a function entry point,
// or (when both are nil) an internal tag.  Returns the fixup index; internal
// tags are completed by a later placeTag, otherwise they resolve to the error
// position.
func (p *assembler) appendTagPush(label *ast.Label, fn *ast.FunctionDefinition) int {
	p.ops = append(p.ops, Operation{Code: evm.Push(tagWidth), Immediate: make([]byte, tagWidth)})
	p.height++
	//
	p.fixups = append(p.fixups, fixup{op: len(p.ops) - 1, label: label, fn: fn, target: -1})
	//
	return len(p.fixups) - 1
}

// Emit a jump destination here and point the given fixup at it.
func (p *assembler) placeTag(fix int) {
	p.fixups[fix].target = len(p.ops)
	p.appendOp(evm.JUMPDEST)
}

// Resolve every pending reference to a byte offset, patching the push
// immediates in place.  References to nothing resolve to a trailing INVALID
// operation, appended on demand.
func (p *assembler) link() {
	var (
		offsets  = p.offsets()
		errorTag = -1
	)
	//
	for _, fix := range p.fixups {
		var target int
		//
		switch {
		case fix.fn != nil:
			target = p.entries[fix.fn]
		case fix.label != nil:
			target = p.tags[fix.label]
		case fix.target >= 0:
			target = fix.target
		default:
			if errorTag < 0 {
				errorTag = len(p.ops)
				p.ops = append(p.ops, Operation{Code: evm.INVALID})
				offsets = append(offsets, offsets[errorTag-1]+1+uint(len(p.ops[errorTag-1].Immediate)))
			}
			//
			target = errorTag
		}
		//
		offset := offsets[target]
		if offset > 0xffff {
			panic("jump target exceeds 16 bits")
		}
		//
		immediate := p.ops[fix.op].Immediate
		immediate[0] = byte(offset >> 8)
		immediate[1] = byte(offset)
	}
}

// Byte offset of each operation.
func (p *assembler) offsets() []uint {
	var (
		offsets = make([]uint, len(p.ops))
		offset  uint
	)
	//
	for i, op := range p.ops {
		offsets[i] = offset
		offset += 1 + uint(len(op.Immediate))
	}
	//
	return offsets
}

func (p *assembler) errorAt(node ast.Node, kind Kind, msg string) {
	p.diags.Error(kind, p.srcmap.SpanOf(node), msg)
}
