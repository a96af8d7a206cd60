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
	"github.com/evmtools/go-evmasm/pkg/util/source"
	"github.com/evmtools/go-evmasm/pkg/util/source/lex"
)

// END_OF signals "end of file"
const END_OF uint = 0

// WHITESPACE signals whitespace
const WHITESPACE uint = 1

// COMMENT signals "// ... \n"
const COMMENT uint = 2

// LBRACE signals "("
const LBRACE uint = 3

// RBRACE signals ")"
const RBRACE uint = 4

// LCURLY signals "{"
const LCURLY uint = 5

// RCURLY signals "}"
const RCURLY uint = 6

// LSQUARE signals "["
const LSQUARE uint = 7

// RSQUARE signals "]"
const RSQUARE uint = 8

// COMMA signals ","
const COMMA uint = 9

// COLON signals ":"
const COLON uint = 10

// ASSIGN signals ":="
const ASSIGN uint = 11

// STACK_ASSIGN signals "=:"
const STACK_ASSIGN uint = 12

// RIGHTARROW signals "->"
const RIGHTARROW uint = 13

// MINUS signals "-"
const MINUS uint = 14

// NUMBER signals a decimal or hexadecimal number
const NUMBER uint = 15

// STRING signals a quoted string
const STRING uint = 16

// IDENTIFIER signals an identifier or mnemonic
const IDENTIFIER uint = 20

// KEYWORD_LET signals a variable declaration
const KEYWORD_LET uint = 21

// KEYWORD_FUNCTION signals a function definition
const KEYWORD_FUNCTION uint = 22

// Rule for describing whitespace
var whitespace lex.Scanner[rune] = lex.Many(lex.Or(lex.Unit(' '), lex.Unit('\t'), lex.Unit('\r'), lex.Unit('\n')))

// Rule for describing numbers.  A number is either a hexadecimal or a decimal
// one.
var (
	digit = lex.Within('0', '9')

	hexDigit = lex.Or(
		digit,
		lex.Within('A', 'F'),
		lex.Within('a', 'f'),
	)
	hexStart = lex.Sequence(lex.String("0x"), hexDigit)

	number = lex.Or(
		lex.SequenceNullableLast(hexStart, lex.Many(hexDigit)),
		lex.SequenceNullableLast(digit, lex.Many(digit)),
	)
)

var identifierStart lex.Scanner[rune] = lex.Or(
	lex.Unit('_'),
	lex.Unit('$'),
	lex.Within('a', 'z'),
	lex.Within('A', 'Z'))

var identifierRest lex.Scanner[rune] = lex.Many(lex.Or(
	lex.Unit('_'),
	lex.Unit('$'),
	lex.Within('0', '9'),
	lex.Within('a', 'z'),
	lex.Within('A', 'Z')))

// Rule for describing identifiers
var identifier lex.Scanner[rune] = lex.And(identifierStart, identifierRest)

// Rule for describing strings in quotes, including backslash escapes.  Escape
// expansion itself happens in the parser, where errors can be reported.
var strung lex.Scanner[rune] = lex.Delimited('"', '\\')

// Comments start with '//' and continue until a newline or EOF.
var comment lex.Scanner[rune] = lex.And(lex.String("//"), lex.Until('\n'))

// lexing rules
var rules []lex.LexRule[rune] = []lex.LexRule[rune]{
	lex.Rule(comment, COMMENT),
	lex.Rule(lex.Unit('('), LBRACE),
	lex.Rule(lex.Unit(')'), RBRACE),
	lex.Rule(lex.Unit('{'), LCURLY),
	lex.Rule(lex.Unit('}'), RCURLY),
	lex.Rule(lex.Unit('['), LSQUARE),
	lex.Rule(lex.Unit(']'), RSQUARE),
	lex.Rule(lex.Unit(','), COMMA),
	lex.Rule(lex.Unit(':', '='), ASSIGN),
	lex.Rule(lex.Unit('=', ':'), STACK_ASSIGN),
	lex.Rule(lex.Unit(':'), COLON),
	lex.Rule(lex.Unit('-', '>'), RIGHTARROW),
	lex.Rule(lex.Unit('-'), MINUS),
	lex.Rule(whitespace, WHITESPACE),
	lex.Rule(number, NUMBER),
	lex.Rule(strung, STRING),
	lex.Rule(identifier, IDENTIFIER),
	lex.Rule(lex.Eof[rune](), END_OF),
}

// Keywords are lexed as identifiers and reclassified afterwards.  This avoids
// mis-lexing identifiers of which a keyword is a prefix (e.g. "letter").
var keywords = map[string]uint{
	"let":      KEYWORD_LET,
	"function": KEYWORD_FUNCTION,
}

// Lex a given source file into a sequence of zero or more tokens, along with
// any syntax errors arising.
func Lex(srcfile *source.File) ([]lex.Token, []source.SyntaxError) {
	var (
		lexer = lex.NewLexer(srcfile.Contents(), rules...)
		// Lex as many tokens as possible
		tokens = lexer.Collect()
		out    []lex.Token
	)
	// Check whether anything was left (if so this is an error)
	if lexer.Remaining() != 0 {
		start, end := lexer.Index(), lexer.Index()+lexer.Remaining()
		err := srcfile.SyntaxError(source.NewSpan(int(start), int(end)), "unknown text encountered")
		// errors
		return nil, []source.SyntaxError{*err}
	}
	// Strip whitespace & comments, reclassify keywords.
	for _, t := range tokens {
		switch t.Kind {
		case WHITESPACE, COMMENT:
			continue
		case IDENTIFIER:
			if kind, ok := keywords[srcfile.Text(t.Span)]; ok {
				t.Kind = kind
			}
		}
		//
		out = append(out, t)
	}
	// Done
	return out, nil
}
