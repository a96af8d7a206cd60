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
	"strings"

	"github.com/evmtools/go-evmasm/pkg/evmasm/ast"
)

// Indentation unit used by the printer.
const indentUnit = "    "

// Print renders an AST block as canonical source text.  Printing is the
// syntactic inverse of parsing: printing the parse of canonical text
// reproduces it exactly, and print-parse-print is idempotent for any text
// which parses.
func Print(block *ast.Block) string {
	var p printer
	//
	p.block(block, 0)
	//
	return p.builder.String()
}

type printer struct {
	builder strings.Builder
}

func (p *printer) block(b *ast.Block, indent int) {
	p.builder.WriteString("{")
	//
	for _, stmt := range b.Statements {
		p.builder.WriteString("\n")
		p.pad(indent + 1)
		p.statement(stmt, indent+1)
	}
	//
	p.builder.WriteString("\n")
	p.pad(indent)
	p.builder.WriteString("}")
}

func (p *printer) statement(stmt ast.Statement, indent int) {
	switch s := stmt.(type) {
	case *ast.Block:
		p.block(s, indent)
	case *ast.VariableDeclaration:
		p.builder.WriteString("let ")
		p.builder.WriteString(strings.Join(s.Names, ", "))
		//
		if len(s.Values) > 0 {
			p.builder.WriteString(" := ")
			p.expressions(s.Values)
		}
	case *ast.Assignment:
		p.builder.WriteString(s.Name)
		p.builder.WriteString(" := ")
		p.expression(s.Value)
	case *ast.StackAssignment:
		p.builder.WriteString("=: ")
		p.builder.WriteString(s.Name)
	case *ast.Label:
		p.label(s)
	case *ast.FunctionDefinition:
		p.function(s, indent)
	case ast.Expression:
		p.expression(s)
	default:
		panic(fmt.Sprintf("unknown statement %T", stmt))
	}
}

func (p *printer) label(l *ast.Label) {
	p.builder.WriteString(l.Name)
	//
	if l.Annotated {
		p.builder.WriteString("[")
		//
		for i, item := range l.Items {
			if i != 0 {
				p.builder.WriteString(", ")
			}
			//
			if item.IsNumber() {
				p.builder.WriteString(item.Number.Unwrap().String())
			} else {
				p.builder.WriteString(item.Name)
			}
		}
		//
		p.builder.WriteString("]")
	}
	//
	p.builder.WriteString(":")
}

func (p *printer) function(fn *ast.FunctionDefinition, indent int) {
	p.builder.WriteString("function ")
	p.builder.WriteString(fn.Name)
	p.builder.WriteString("(")
	p.builder.WriteString(strings.Join(fn.Params, ", "))
	p.builder.WriteString(")")
	//
	if len(fn.Returns) > 0 {
		p.builder.WriteString(" -> (")
		p.builder.WriteString(strings.Join(fn.Returns, ", "))
		p.builder.WriteString(")")
	}
	// Body block begins on the following line.
	p.builder.WriteString("\n")
	p.pad(indent)
	p.block(fn.Body, indent)
}

func (p *printer) expressions(exprs []ast.Expression) {
	for i, e := range exprs {
		if i != 0 {
			p.builder.WriteString(", ")
		}
		//
		p.expression(e)
	}
}

func (p *printer) expression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Literal:
		p.literal(e)
	case *ast.Identifier:
		p.builder.WriteString(e.Name)
	case *ast.Instruction:
		p.builder.WriteString(e.Name)
	case *ast.Call:
		p.builder.WriteString(e.Name)
		p.builder.WriteString("(")
		p.expressions(e.Arguments)
		p.builder.WriteString(")")
	default:
		panic(fmt.Sprintf("unknown expression %T", expr))
	}
}

func (p *printer) literal(l *ast.Literal) {
	if l.IsNumber {
		// Numeric literals print as written (e.g. hex stays hex).
		p.builder.WriteString(l.Text)
		return
	}
	//
	p.builder.WriteString(escapeString(l.Bytes))
}

// Re-escape a string literal's bytes using the escape set accepted by the
// parser.  Non-printable bytes become hex escapes; in particular, bytes which
// originated from a unicode escape stay as hex-escaped UTF-8 rather than
// being re-encoded as a code point.
func escapeString(bytes []byte) string {
	var builder strings.Builder
	//
	builder.WriteString("\"")
	//
	for _, b := range bytes {
		switch {
		case b == '\n':
			builder.WriteString("\\n")
		case b == '\t':
			builder.WriteString("\\t")
		case b == '\r':
			builder.WriteString("\\r")
		case b == '"':
			builder.WriteString("\\\"")
		case b == '\\':
			builder.WriteString("\\\\")
		case b >= 0x20 && b <= 0x7e:
			builder.WriteByte(b)
		default:
			builder.WriteString(fmt.Sprintf("\\x%02x", b))
		}
	}
	//
	builder.WriteString("\"")
	//
	return builder.String()
}

func (p *printer) pad(indent int) {
	for i := 0; i < indent; i++ {
		p.builder.WriteString(indentUnit)
	}
}
