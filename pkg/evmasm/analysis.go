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

	"github.com/evmtools/go-evmasm/pkg/evmasm/ast"
	"github.com/evmtools/go-evmasm/pkg/evmasm/evm"
	"github.com/evmtools/go-evmasm/pkg/util/source"
	log "github.com/sirupsen/logrus"
)

// WordSize is the machine word size in bytes.  String literals must fit a
// single word.
const WordSize = 32

// Config captures the caller-selectable strictness policies of a compilation
// unit.
type Config struct {
	// AllowWarnings treats a unit whose diagnostics are all warnings as
	// successfully compiled.  Without it, any diagnostic fails the unit.
	AllowWarnings bool
	// StrictLabels escalates unresolved jump labels from warnings to errors.
	// By default an unresolved, non-magic identifier is tolerated and lowered
	// to a push of the error position.
	StrictLabels bool
}

// Magic pseudo-variables: context-supplied identifiers which would resolve
// inside a hosting contract, but which a standalone assembly unit cannot
// support.  A local declaration of the same name shadows the magic meaning.
var magicVariables = map[string]bool{
	"this":      true,
	"ecrecover": true,
	"sha256":    true,
	"ripemd160": true,
}

// Binding describes what an identifier or call ultimately resolved to.
type Binding uint8

// Binding kinds.
const (
	// BindVariable marks a reference to a declared stack variable.
	BindVariable Binding = iota
	// BindLabel marks a reference to a declared jump label.
	BindLabel
	// BindFunction marks a call to a user-defined function.
	BindFunction
	// BindInstruction marks a call to a machine mnemonic.
	BindInstruction
	// BindUnresolved marks a reference which resolved to nothing.  The
	// assembler lowers these to the error position.
	BindUnresolved
)

// Analysis is the side table produced by the analyzer: resolution results
// keyed by node identity.  The AST itself is never mutated.
type Analysis struct {
	bindings map[ast.Node]Binding
	callees  map[*ast.Call]*ast.FunctionDefinition
	labels   map[*ast.Identifier]*ast.Label
}

// BindingOf returns the resolution of a given identifier or call node.
func (p *Analysis) BindingOf(node ast.Node) Binding {
	binding, ok := p.bindings[node]
	//
	if !ok {
		panic("node was never resolved")
	}
	//
	return binding
}

// CalleeOf returns the definition of the user function invoked by a given
// call, or panics if the call did not bind to a function.
func (p *Analysis) CalleeOf(call *ast.Call) *ast.FunctionDefinition {
	def, ok := p.callees[call]
	//
	if !ok {
		panic("call was never resolved to a function")
	}
	//
	return def
}

// LabelOf returns the label declaration a given identifier resolved to, or
// panics if the identifier did not bind to a label.  Since labels of the same
// name may coexist in sibling blocks, references must be resolved to their
// declaration rather than by name.
func (p *Analysis) LabelOf(id *ast.Identifier) *ast.Label {
	def, ok := p.labels[id]
	//
	if !ok {
		panic("identifier was never resolved to a label")
	}
	//
	return def
}

// Analyze walks a parsed block, resolving every identifier through the
// nested lexical scopes, rejecting reserved and magic names, enforcing
// literal-size limits and checking stack-height consistency.  All problems
// are accumulated in the given sink; the returned side table is valid for
// assembly only when the sink contains no errors.
func Analyze(block *ast.Block, srcmap *source.Map[ast.Node], cfg Config, diags *Diagnostics) *Analysis {
	analyzer := &Analyzer{
		srcmap: srcmap,
		diags:  diags,
		cfg:    cfg,
		analysis: &Analysis{
			bindings: make(map[ast.Node]Binding),
			callees:  make(map[*ast.Call]*ast.FunctionDefinition),
			labels:   make(map[*ast.Identifier]*ast.Label),
		},
	}
	//
	analyzer.block(block)
	//
	return analyzer.analysis
}

// Analyzer holds the traversal state of a single analysis pass.  Scope frames
// are owned by the traversal and do not outlive it.
type Analyzer struct {
	srcmap *source.Map[ast.Node]
	diags  *Diagnostics
	cfg    Config
	// Stack of scope frames, innermost last.
	frames []*frame
	// Resolution side table under construction.
	analysis *Analysis
}

// frame is the set of declarations visible within one lexical block.
// Lookups walk the frame stack top-down.
type frame struct {
	vars   map[string]bool
	funcs  map[string]*ast.FunctionDefinition
	labels map[string]*ast.Label
	// Function boundary: variable lookups do not cross it.
	boundary bool
}

func newFrame(boundary bool) *frame {
	return &frame{
		vars:     make(map[string]bool),
		funcs:    make(map[string]*ast.FunctionDefinition),
		labels:   make(map[string]*ast.Label),
		boundary: boundary,
	}
}

// Process a block in a fresh scope frame, checking its net stack effect on
// exit.  From the enclosing scope's perspective a block is always neutral:
// its local declarations are popped when it closes.
func (p *Analyzer) block(block *ast.Block) {
	var (
		net   int
		decls int
	)
	//
	p.push(newFrame(false))
	// Function and label names are hoisted to the start of the frame,
	// enabling mutual calls and forward jumps between siblings.  Both are
	// visible in nested blocks but not outside their own.
	p.hoistFunctions(block)
	p.hoistLabels(block)
	//
	for _, stmt := range block.Statements {
		net += p.statement(stmt)
		//
		if decl, ok := stmt.(*ast.VariableDeclaration); ok {
			decls += len(decl.Names)
		}
	}
	//
	p.pop()
	//
	if net != decls {
		msg := fmt.Sprintf("block is not balanced: %d value(s) left on stack, but %d declaration(s) remain in scope", net, decls)
		p.warningAt(block, StackBalance, msg)
	}
	//
	log.Debugf("analyzed block: %d statement(s), net stack effect %d", len(block.Statements), net)
}

func (p *Analyzer) hoistFunctions(block *ast.Block) {
	top := p.top()
	//
	for _, stmt := range block.Statements {
		if fn, ok := stmt.(*ast.FunctionDefinition); ok {
			if evm.IsMnemonic(fn.Name) {
				p.errorAt(fn, ReservedName, "cannot use instruction names for identifier names")
			} else if _, ok := top.funcs[fn.Name]; ok {
				p.errorAt(fn, ReservedName, fmt.Sprintf("function \"%s\" already declared", fn.Name))
			}
			//
			top.funcs[fn.Name] = fn
		}
	}
}

func (p *Analyzer) hoistLabels(block *ast.Block) {
	top := p.top()
	//
	for _, stmt := range block.Statements {
		if label, ok := stmt.(*ast.Label); ok {
			if evm.IsMnemonic(label.Name) {
				p.errorAt(label, ReservedName, "cannot use instruction names for identifier names")
			} else if _, ok := top.labels[label.Name]; ok {
				p.errorAt(label, ReservedName, fmt.Sprintf("label \"%s\" already declared", label.Name))
			}
			//
			top.labels[label.Name] = label
		}
	}
}

// Process a single statement, returning its net stack effect.
func (p *Analyzer) statement(stmt ast.Statement) int {
	switch s := stmt.(type) {
	case *ast.Block:
		p.block(s)
		return 0
	case *ast.VariableDeclaration:
		return p.variableDeclaration(s)
	case *ast.Assignment:
		p.assignment(s)
		return 0
	case *ast.StackAssignment:
		p.stackAssignment(s)
		return -1
	case *ast.Label:
		return p.label(s)
	case *ast.FunctionDefinition:
		p.functionDefinition(s)
		return 0
	case ast.Expression:
		return p.expression(s)
	default:
		panic(fmt.Sprintf("unknown statement %T", stmt))
	}
}

func (p *Analyzer) variableDeclaration(decl *ast.VariableDeclaration) int {
	var net int
	// Check the initialiser produces exactly one value per name.
	for _, value := range decl.Values {
		net += p.expression(value)
	}
	//
	if len(decl.Values) > 0 && net != len(decl.Names) {
		msg := fmt.Sprintf("expected %d value(s), but expression(s) produce %d", len(decl.Names), net)
		p.warningAt(decl, StackBalance, msg)
	}
	// Declare names, visible from here onward.
	top := p.top()
	//
	for _, name := range decl.Names {
		if evm.IsMnemonic(name) {
			p.errorAt(decl, ReservedName, "cannot use instruction names for identifier names")
		} else if top.vars[name] {
			p.errorAt(decl, ReservedName, fmt.Sprintf("variable \"%s\" already declared", name))
		}
		//
		top.vars[name] = true
	}
	// All declared slots remain on the stack.
	return len(decl.Names)
}

func (p *Analyzer) assignment(stmt *ast.Assignment) {
	if net := p.expression(stmt.Value); net != 1 {
		msg := fmt.Sprintf("expected expression producing one value, but it produces %d", net)
		p.warningAt(stmt, StackBalance, msg)
	}
	//
	p.resolveAssignmentTarget(stmt, stmt.Name, "cannot use instruction names for identifier names")
}

func (p *Analyzer) stackAssignment(stmt *ast.StackAssignment) {
	p.resolveAssignmentTarget(stmt, stmt.Name, "identifier expected, got instruction name")
}

func (p *Analyzer) resolveAssignmentTarget(stmt ast.Statement, name string, reservedMsg string) {
	if evm.IsMnemonic(name) {
		p.errorAt(stmt, ReservedName, reservedMsg)
		return
	}
	//
	if !p.lookupVariable(stmt, name) {
		p.errorAt(stmt, UnresolvedIdentifier, fmt.Sprintf("variable \"%s\" not found", name))
	}
}

// A label's stack annotation describes the expected stack layout at that
// point: identifier items (re)bind variables to slots, whilst a numeric item
// adjusts the expected stack height.  Annotations drive verification only;
// they generate no code.
func (p *Analyzer) label(label *ast.Label) int {
	var net int
	//
	top := p.top()
	//
	for _, item := range label.Items {
		if item.IsNumber() {
			net += int(item.Number.Unwrap().Int64())
		} else {
			top.vars[item.Name] = true
		}
	}
	//
	return net
}

func (p *Analyzer) functionDefinition(fn *ast.FunctionDefinition) {
	// Parameters and return variables are pre-populated as scope entries of
	// the body, behind a boundary which outer variables cannot cross.
	p.push(newFrame(true))
	//
	top := p.top()
	//
	for _, name := range append(append([]string{}, fn.Params...), fn.Returns...) {
		if evm.IsMnemonic(name) {
			p.errorAt(fn, ReservedName, "cannot use instruction names for identifier names")
		} else if top.vars[name] {
			p.errorAt(fn, ReservedName, fmt.Sprintf("variable \"%s\" already declared", name))
		}
		//
		top.vars[name] = true
	}
	//
	p.block(fn.Body)
	//
	p.pop()
}

// Process an expression, returning the number of values it leaves on the
// stack.
func (p *Analyzer) expression(expr ast.Expression) int {
	switch e := expr.(type) {
	case *ast.Literal:
		p.literal(e)
		return 1
	case *ast.Instruction:
		// Parser only constructs these for known mnemonics.
		op, _ := evm.Lookup(e.Name)
		p.bind(e, BindInstruction)
		//
		return op.Info().StackEffect()
	case *ast.Identifier:
		return p.identifier(e)
	case *ast.Call:
		return p.call(e)
	default:
		panic(fmt.Sprintf("unknown expression %T", expr))
	}
}

func (p *Analyzer) literal(lit *ast.Literal) {
	if lit.IsNumber {
		if lit.Number.BitLen() > WordSize*8 {
			p.errorAt(lit, LiteralSize, "number literal too large")
		}
	} else if len(lit.Bytes) > WordSize {
		msg := fmt.Sprintf("string literal too long (%d > %d)", len(lit.Bytes), WordSize)
		p.errorAt(lit, LiteralSize, msg)
	}
}

func (p *Analyzer) identifier(id *ast.Identifier) int {
	// Nearest enclosing variable declaration wins, including over any magic
	// meaning of the same name.
	if p.lookupVariable(id, id.Name) {
		p.bind(id, BindVariable)
		return 1
	}
	// Labels next, from the innermost frame declaring one of this name.
	// Hoisting makes forward references within a frame legal.
	if def := p.lookupLabel(id.Name); def != nil {
		p.bind(id, BindLabel)
		p.analysis.labels[id] = def
		//
		return 1
	}
	// Unshadowed magic names cannot be supplied here.
	if magicVariables[id.Name] {
		p.errorAt(id, MagicVariable, fmt.Sprintf("magic variable \"%s\" not supported in standalone assembly", id.Name))
		p.bind(id, BindUnresolved)
		//
		return 1
	}
	// Unresolved: tolerated as an invalid jump label unless strict.
	severity := Warning
	if p.cfg.StrictLabels {
		severity = Error
	}
	//
	p.reportAt(id, UnresolvedIdentifier, severity, fmt.Sprintf("identifier \"%s\" not found (invalid jump label)", id.Name))
	p.bind(id, BindUnresolved)
	//
	return 1
}

func (p *Analyzer) call(call *ast.Call) int {
	var net int
	// Arguments first; each must produce exactly one value.
	for _, arg := range call.Arguments {
		n := p.expression(arg)
		net += n
		//
		if n != 1 {
			msg := fmt.Sprintf("expected argument producing one value, but it produces %d", n)
			p.warningAt(call, StackBalance, msg)
		}
	}
	// Mnemonics take precedence: they can never be shadowed.
	if op, ok := evm.Lookup(call.Name); ok {
		info := op.Info()
		//
		if uint(len(call.Arguments)) != info.Args {
			msg := fmt.Sprintf("instruction %s expects %d arguments, got %d", info.Name, info.Args, len(call.Arguments))
			p.errorAt(call, StackBalance, msg)
		}
		//
		p.bind(call, BindInstruction)
		//
		return net + info.StackEffect()
	}
	// User-defined function.
	if def := p.lookupFunction(call.Name); def != nil {
		if len(call.Arguments) != len(def.Params) {
			msg := fmt.Sprintf("function \"%s\" expects %d arguments, got %d", call.Name, len(def.Params), len(call.Arguments))
			p.errorAt(call, StackBalance, msg)
		}
		//
		p.bind(call, BindFunction)
		p.analysis.callees[call] = def
		//
		return net - len(def.Params) + len(def.Returns)
	}
	//
	p.errorAt(call, UnresolvedIdentifier, fmt.Sprintf("function \"%s\" not found", call.Name))
	p.bind(call, BindUnresolved)
	//
	return net
}

// ============================================================================
// Scope lookups
// ============================================================================

// Lookup a variable, walking the frame stack top-down.  Lookups never cross a
// function boundary; a hit beyond one is reported as inaccessible.
func (p *Analyzer) lookupVariable(node ast.Node, name string) bool {
	crossed := false
	//
	for i := len(p.frames) - 1; i >= 0; i-- {
		if p.frames[i].vars[name] {
			if crossed {
				p.errorAt(node, UnresolvedIdentifier,
					fmt.Sprintf("variable \"%s\" is not accessible across a function boundary", name))
				return false
			}
			//
			return true
		}
		//
		if p.frames[i].boundary {
			crossed = true
		}
	}
	//
	return false
}

// Lookup a function.  Unlike variables, function definitions are visible
// across function boundaries.
func (p *Analyzer) lookupFunction(name string) *ast.FunctionDefinition {
	for i := len(p.frames) - 1; i >= 0; i-- {
		if def, ok := p.frames[i].funcs[name]; ok {
			return def
		}
	}
	//
	return nil
}

// Lookup a label, walking the frame stack top-down.  Like functions, labels
// are visible across function boundaries; a label declared in a sibling block
// is out of scope.
func (p *Analyzer) lookupLabel(name string) *ast.Label {
	for i := len(p.frames) - 1; i >= 0; i-- {
		if def, ok := p.frames[i].labels[name]; ok {
			return def
		}
	}
	//
	return nil
}

func (p *Analyzer) push(f *frame) {
	p.frames = append(p.frames, f)
}

func (p *Analyzer) pop() {
	p.frames = p.frames[:len(p.frames)-1]
}

func (p *Analyzer) top() *frame {
	return p.frames[len(p.frames)-1]
}

// ============================================================================
// Reporting
// ============================================================================

func (p *Analyzer) bind(node ast.Node, binding Binding) {
	p.analysis.bindings[node] = binding
}

func (p *Analyzer) errorAt(node ast.Node, kind Kind, msg string) {
	p.diags.Error(kind, p.srcmap.SpanOf(node), msg)
}

func (p *Analyzer) warningAt(node ast.Node, kind Kind, msg string) {
	p.diags.Warning(kind, p.srcmap.SpanOf(node), msg)
}

func (p *Analyzer) reportAt(node ast.Node, kind Kind, severity Severity, msg string) {
	p.diags.Report(kind, severity, p.srcmap.SpanOf(node), msg)
}
