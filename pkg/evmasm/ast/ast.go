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

// Package ast defines the abstract syntax tree for the assembly language.
// The node set is closed: every consumer (printer, analyzer, assembler)
// switches exhaustively over the variants below.  Nodes are pure data and,
// once constructed by the parser, are never mutated; positional information
// lives in a side source map keyed by node identity.
package ast

import (
	"math/big"

	"github.com/evmtools/go-evmasm/pkg/util"
)

// Node is implemented by all AST nodes.
type Node interface {
	node()
}

// Statement is implemented by every node which may appear directly within a
// block.  Observe that expressions are themselves valid statements, since a
// bare expression simply leaves its values on the stack.
type Statement interface {
	Node
	stmt()
}

// Expression is implemented by nodes which produce zero or more stack values:
// literals, identifiers, bare instructions and calls.
type Expression interface {
	Statement
	expr()
}

// ============================================================================
// Block
// ============================================================================

// Block is an ordered sequence of statements introducing a new lexical scope.
type Block struct {
	Statements []Statement
}

// ============================================================================
// Declarations & Assignments
// ============================================================================

// VariableDeclaration introduces one or more variables, visible to subsequent
// siblings of the enclosing block, bound to the values pushed by the
// expression list (e.g. "let x := 7" or "let x, y := f()").
type VariableDeclaration struct {
	Names  []string
	Values []Expression
}

// Assignment is the functional assignment form "x := e".
type Assignment struct {
	Name  string
	Value Expression
}

// StackAssignment is the instruction-style assignment form "=: x", which pops
// the current top of the stack into the named variable.
type StackAssignment struct {
	Name string
}

// ============================================================================
// Labels
// ============================================================================

// LabelItem is one entry of a label's stack annotation: either an identifier
// naming the variable expected at that slot, or a signed numeric offset.
type LabelItem struct {
	Name   string
	Number util.Option[*big.Int]
}

// IsNumber determines whether this item is a numeric offset.
func (p *LabelItem) IsNumber() bool {
	return p.Number.HasValue()
}

// Label marks a jump target.  A label may carry an explicit stack annotation
// ("name[a, -1]:"), used for verification only; Annotated distinguishes an
// empty annotation ("name[]:") from none at all ("name:").
type Label struct {
	Name      string
	Annotated bool
	Items     []LabelItem
}

// ============================================================================
// Functions
// ============================================================================

// FunctionDefinition declares a user function with ordered parameter and
// return-variable names.  Both are pre-populated as scope entries of the body.
type FunctionDefinition struct {
	Name    string
	Params  []string
	Returns []string
	Body    *Block
}

// ============================================================================
// Expressions
// ============================================================================

// Instruction is a bare machine mnemonic used in non-functional style, taking
// its operands from the stack (e.g. "add" in "{ 7 8 add }").
type Instruction struct {
	Name string
}

// Call is the functional form "name(arg, ...)", where the callee is either a
// machine mnemonic or a user-defined function.  Which of the two applies is
// determined during analysis, not parsing.
type Call struct {
	Name      string
	Arguments []Expression
}

// Identifier is a bare reference to a variable, label, function or magic
// pseudo-variable.
type Identifier struct {
	Name string
}

// Literal is a numeric or string constant.  Numeric literals retain their
// original text so the printer can reproduce them exactly; string literals
// hold their bytes after escape expansion.
type Literal struct {
	// Indicates a numeric literal.
	IsNumber bool
	// Original source text (numeric literals only).
	Text string
	// Numeric value (numeric literals only).
	Number *big.Int
	// Expanded bytes (string literals only).
	Bytes []byte
}

// ============================================================================
// Variant markers
// ============================================================================

func (p *Block) node()               {}
func (p *VariableDeclaration) node() {}
func (p *Assignment) node()          {}
func (p *StackAssignment) node()     {}
func (p *Label) node()               {}
func (p *FunctionDefinition) node()  {}
func (p *Instruction) node()         {}
func (p *Call) node()                {}
func (p *Identifier) node()          {}
func (p *Literal) node()             {}

func (p *Block) stmt()               {}
func (p *VariableDeclaration) stmt() {}
func (p *Assignment) stmt()          {}
func (p *StackAssignment) stmt()     {}
func (p *Label) stmt()               {}
func (p *FunctionDefinition) stmt()  {}
func (p *Instruction) stmt()         {}
func (p *Call) stmt()                {}
func (p *Identifier) stmt()          {}
func (p *Literal) stmt()             {}

func (p *Instruction) expr() {}
func (p *Call) expr()        {}
func (p *Identifier) expr()  {}
func (p *Literal) expr()     {}
