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
	"github.com/evmtools/go-evmasm/pkg/evmasm/ast"
	"github.com/evmtools/go-evmasm/pkg/util/source"
)

// Unit drives a single source through the pipeline: parse, analyze, assemble.
// Stages must be invoked in order; each reports success via its return value
// and accumulates problems in the shared diagnostic sink.  A failed stage
// leaves the unit usable for inspection (e.g. pretty-printing a block which
// failed analysis) but not for later stages.
type Unit struct {
	cfg      Config
	diags    *Diagnostics
	srcfile  *source.File
	root     *ast.Block
	srcmap   *source.Map[ast.Node]
	analysis *Analysis
}

// NewUnit constructs an empty compilation unit with the given policies.
func NewUnit(cfg Config) *Unit {
	return &Unit{
		cfg:   cfg,
		diags: NewDiagnostics(),
	}
}

// Parse lexes and parses the given source, reporting success.  Warnings
// count against success only when the unit disallows them.
func (p *Unit) Parse(srcfile *source.File) bool {
	p.srcfile = srcfile
	p.root, p.srcmap = Parse(srcfile, p.diags)
	//
	return p.root != nil && p.diags.Ok(p.cfg.AllowWarnings)
}

// ParseString is a convenience form of Parse for in-memory sources.
func (p *Unit) ParseString(text string) bool {
	return p.Parse(source.NewSourceFile("", []byte(text)))
}

// Analyze resolves and validates the parsed block, reporting success.
func (p *Unit) Analyze() bool {
	if p.root == nil {
		panic("unit was never (successfully) parsed")
	}
	//
	p.analysis = Analyze(p.root, p.srcmap, p.cfg, p.diags)
	//
	return p.diags.Ok(p.cfg.AllowWarnings)
}

// Assemble lowers the analyzed block to machine operations.  When earlier
// stages reported errors no program is generated and nil is returned.
func (p *Unit) Assemble() (program *Program, ok bool) {
	if p.analysis == nil {
		panic("unit was never analyzed")
	}
	//
	if program = Assemble(p.root, p.srcmap, p.analysis, p.diags); program == nil {
		return nil, false
	}
	//
	return program, p.diags.Ok(p.cfg.AllowWarnings)
}

// Compile runs all remaining stages on the given source.
func (p *Unit) Compile(srcfile *source.File) (*Program, bool) {
	if !p.Parse(srcfile) {
		return nil, false
	}
	//
	if !p.Analyze() {
		return nil, false
	}
	//
	return p.Assemble()
}

// Root returns the parsed block, or nil before a successful parse.
func (p *Unit) Root() *ast.Block {
	return p.root
}

// SourceMap returns the node-to-span mapping built during parsing.
func (p *Unit) SourceMap() *source.Map[ast.Node] {
	return p.srcmap
}

// Diagnostics returns the sink shared by all stages of this unit.
func (p *Unit) Diagnostics() *Diagnostics {
	return p.diags
}

// String pretty-prints the parsed block in canonical form.
func (p *Unit) String() string {
	if p.root == nil {
		return ""
	}
	//
	return Print(p.root)
}
