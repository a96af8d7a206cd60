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

	"github.com/evmtools/go-evmasm/pkg/util/source"
)

// Kind categorises a diagnostic.
type Kind uint8

// Diagnostic kinds.
const (
	// ParserError indicates malformed syntax.  Always fatal to the current
	// parse.
	ParserError Kind = iota
	// ReservedName indicates an attempt to declare or assign a name which
	// collides with an instruction mnemonic.
	ReservedName
	// UnresolvedIdentifier indicates a reference to a name with no visible
	// declaration.
	UnresolvedIdentifier
	// LiteralSize indicates a string literal exceeding the machine word size.
	LiteralSize
	// StackBalance indicates a net stack effect mismatch at block exit.
	StackBalance
	// MagicVariable indicates use of a context-supplied pseudo-variable in a
	// context which cannot supply it.
	MagicVariable
)

func (k Kind) String() string {
	switch k {
	case ParserError:
		return "parser error"
	case ReservedName:
		return "reserved name"
	case UnresolvedIdentifier:
		return "unresolved identifier"
	case LiteralSize:
		return "literal size"
	case StackBalance:
		return "stack balance"
	case MagicVariable:
		return "magic variable"
	default:
		panic("unknown diagnostic kind")
	}
}

// Severity distinguishes warnings from errors.
type Severity uint8

// Severities.
const (
	// Warning diagnostics never block assembly, though caller policy may
	// still fail the unit overall.
	Warning Severity = iota
	// Error diagnostics prevent assembly from completing.
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	//
	return "warning"
}

// Diagnostic is a single problem reported against a span of the source file.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Span     source.Span
	Message  string
}

func (p *Diagnostic) String() string {
	return fmt.Sprintf("%s (%s): %s", p.Severity, p.Kind, p.Message)
}

// Diagnostics accumulates every problem found while processing one
// compilation unit.  Each unit owns exactly one sink; stages append to it
// rather than aborting, so a caller can report all problems in a single pass.
// The sink is not safe for concurrent writers.
type Diagnostics struct {
	items []Diagnostic
}

// NewDiagnostics constructs a fresh, empty sink.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Error appends an error-severity diagnostic.
func (p *Diagnostics) Error(kind Kind, span source.Span, msg string) {
	p.items = append(p.items, Diagnostic{kind, Error, span, msg})
}

// Warning appends a warning-severity diagnostic.
func (p *Diagnostics) Warning(kind Kind, span source.Span, msg string) {
	p.items = append(p.items, Diagnostic{kind, Warning, span, msg})
}

// Report appends a diagnostic whose severity is chosen by the caller.  This
// supports policy-dependent escalation (e.g. strict label resolution).
func (p *Diagnostics) Report(kind Kind, severity Severity, span source.Span, msg string) {
	p.items = append(p.items, Diagnostic{kind, severity, span, msg})
}

// Items returns all accumulated diagnostics in the order reported.
func (p *Diagnostics) Items() []Diagnostic {
	return p.items
}

// Len returns the number of accumulated diagnostics.
func (p *Diagnostics) Len() int {
	return len(p.items)
}

// OnlyWarnings checks whether every accumulated diagnostic is a warning.
// This holds vacuously for an empty sink.
func (p *Diagnostics) OnlyWarnings() bool {
	for _, d := range p.items {
		if d.Severity == Error {
			return false
		}
	}
	//
	return true
}

// ContainsKind checks whether a diagnostic of the given kind has been
// reported.
func (p *Diagnostics) ContainsKind(kind Kind) bool {
	for _, d := range p.items {
		if d.Kind == kind {
			return true
		}
	}
	//
	return false
}

// Ok determines whether the unit passes under a given warning policy: with
// allowWarnings, only error-severity diagnostics fail the unit; without it,
// any diagnostic does.
func (p *Diagnostics) Ok(allowWarnings bool) bool {
	if allowWarnings {
		return p.OnlyWarnings()
	}
	//
	return len(p.items) == 0
}
