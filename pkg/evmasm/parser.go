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
	"unicode/utf8"

	"github.com/evmtools/go-evmasm/pkg/evmasm/ast"
	"github.com/evmtools/go-evmasm/pkg/evmasm/evm"
	"github.com/evmtools/go-evmasm/pkg/util"
	"github.com/evmtools/go-evmasm/pkg/util/source"
	"github.com/evmtools/go-evmasm/pkg/util/source/lex"
)

// Parse accepts a given source file representing one assembly unit, and parses
// it into an AST block along with a source map tying every node back to its
// originating text.  Parse failures are recorded in the given sink as
// ParserError diagnostics; on failure the returned block is nil.
func Parse(srcfile *source.File, diags *Diagnostics) (*ast.Block, *source.Map[ast.Node]) {
	parser := NewParser(srcfile, diags)
	// Parse the top-level block
	return parser.Parse()
}

// Parser is a recursive-descent parser for the assembly language.  Error
// recovery is limited: a malformed statement aborts the enclosing block, but
// errors already recorded are retained in the sink.
type Parser struct {
	srcfile *source.File
	tokens  []lex.Token
	// Source mapping
	srcmap *source.Map[ast.Node]
	// Diagnostic sink owned by the enclosing compilation unit.
	diags *Diagnostics
	// Position within the tokens
	index int
}

// NewParser constructs a new parser for a given source file, reporting into a
// given diagnostic sink.
func NewParser(srcfile *source.File, diags *Diagnostics) *Parser {
	// Construct (initially empty) source mapping
	srcmap := source.NewSourceMap[ast.Node](srcfile)
	//
	return &Parser{srcfile, nil, srcmap, diags, 0}
}

// Parse the source file into a single top-level block, or record one or more
// ParserError diagnostics and return nil.
func (p *Parser) Parse() (*ast.Block, *source.Map[ast.Node]) {
	var errs []source.SyntaxError
	// Convert source file into tokens
	if p.tokens, errs = Lex(p.srcfile); len(errs) > 0 {
		for _, err := range errs {
			p.diags.Error(ParserError, err.Span(), err.Message())
		}
		//
		return nil, p.srcmap
	}
	// Parse top-level block
	block, ok := p.parseBlock()
	//
	if !ok {
		return nil, p.srcmap
	}
	// Check nothing trailing
	if p.lookahead().Kind != END_OF {
		p.error(p.lookahead(), "expected end of assembly")
		return nil, p.srcmap
	}
	//
	return block, p.srcmap
}

// SourceMap returns the node-to-span mapping constructed during parsing.
func (p *Parser) SourceMap() *source.Map[ast.Node] {
	return p.srcmap
}

func (p *Parser) parseBlock() (*ast.Block, bool) {
	var (
		start = p.index
		block ast.Block
	)
	//
	if !p.expect(LCURLY, "expected block") {
		return nil, false
	}
	// Parse statements until end of block
	for p.lookahead().Kind != RCURLY {
		if p.lookahead().Kind == END_OF {
			p.error(p.lookahead(), "unterminated block")
			return nil, false
		}
		//
		stmt, ok := p.parseStatement()
		if !ok {
			return nil, false
		}
		//
		block.Statements = append(block.Statements, stmt)
	}
	// Advance past "}"
	p.match(RCURLY)
	//
	p.srcmap.Put(&block, p.spanOf(start, p.index-1))
	//
	return &block, true
}

func (p *Parser) parseStatement() (ast.Statement, bool) {
	lookahead := p.lookahead()
	//
	switch lookahead.Kind {
	case LCURLY:
		return p.parseBlock()
	case KEYWORD_LET:
		return p.parseVariableDeclaration()
	case KEYWORD_FUNCTION:
		return p.parseFunctionDefinition()
	case STACK_ASSIGN:
		return p.parseStackAssignment()
	case IDENTIFIER:
		switch {
		case p.follows(IDENTIFIER, COLON), p.follows(IDENTIFIER, LSQUARE):
			return p.parseLabel()
		case p.follows(IDENTIFIER, ASSIGN):
			return p.parseAssignment()
		}
		// Bare reference, mnemonic or call.
		return p.parseExpression()
	case NUMBER, STRING:
		return p.parseExpression()
	default:
		p.error(lookahead, "expected statement")
		return nil, false
	}
}

// Parse "let" identifier ("," identifier)* [":=" expression ("," expression)*]
func (p *Parser) parseVariableDeclaration() (ast.Statement, bool) {
	var (
		start = p.index
		decl  ast.VariableDeclaration
		ok    bool
	)
	//
	p.match(KEYWORD_LET)
	// Parse name(s)
	if decl.Names, ok = p.parseIdentifierList(); !ok {
		return nil, false
	}
	// Parse optional initialiser
	if p.match(ASSIGN) {
		if decl.Values, ok = p.parseExpressionList(); !ok {
			return nil, false
		}
	}
	//
	p.srcmap.Put(&decl, p.spanOf(start, p.index-1))
	//
	return &decl, true
}

// Parse identifier ":=" expression
func (p *Parser) parseAssignment() (ast.Statement, bool) {
	var (
		start = p.index
		stmt  ast.Assignment
		ok    bool
	)
	// Following cannot fail (lookahead checked)
	tok := p.lookahead()
	p.match(IDENTIFIER)
	p.match(ASSIGN)
	//
	stmt.Name = p.string(tok)
	//
	if stmt.Value, ok = p.parseExpression(); !ok {
		return nil, false
	}
	//
	p.srcmap.Put(&stmt, p.spanOf(start, p.index-1))
	//
	return &stmt, true
}

// Parse "=:" identifier
func (p *Parser) parseStackAssignment() (ast.Statement, bool) {
	var (
		start = p.index
		stmt  ast.StackAssignment
	)
	//
	p.match(STACK_ASSIGN)
	//
	tok := p.lookahead()
	if !p.expect(IDENTIFIER, "expected variable name") {
		return nil, false
	}
	//
	stmt.Name = p.string(tok)
	p.srcmap.Put(&stmt, p.spanOf(start, p.index-1))
	//
	return &stmt, true
}

// Parse identifier [ "[" item ("," item)* "]" ] ":"
func (p *Parser) parseLabel() (ast.Statement, bool) {
	var (
		start = p.index
		label ast.Label
	)
	// Following cannot fail (lookahead checked)
	tok := p.lookahead()
	p.match(IDENTIFIER)
	//
	label.Name = p.string(tok)
	// Parse optional stack annotation
	if p.match(LSQUARE) {
		label.Annotated = true
		//
		for p.lookahead().Kind != RSQUARE {
			// look for ","
			if len(label.Items) != 0 && !p.expect(COMMA, "expected ','") {
				return nil, false
			}
			//
			item, ok := p.parseLabelItem()
			if !ok {
				return nil, false
			}
			//
			label.Items = append(label.Items, item)
		}
		// Advance past "]"
		p.match(RSQUARE)
	}
	//
	if !p.expect(COLON, "expected ':'") {
		return nil, false
	}
	//
	p.srcmap.Put(&label, p.spanOf(start, p.index-1))
	//
	return &label, true
}

// Parse a single stack-annotation item: an identifier, or a signed integer
// offset.
func (p *Parser) parseLabelItem() (ast.LabelItem, bool) {
	var (
		lookahead = p.lookahead()
		negate    bool
	)
	//
	switch lookahead.Kind {
	case IDENTIFIER:
		p.match(IDENTIFIER)
		return ast.LabelItem{Name: p.string(lookahead), Number: util.None[*big.Int]()}, true
	case MINUS:
		p.match(MINUS)
		negate = true
		//
		lookahead = p.lookahead()
	}
	//
	if !p.expect(NUMBER, "expected identifier or number") {
		return ast.LabelItem{}, false
	}
	//
	num := p.number(lookahead)
	if negate {
		num.Neg(num)
	}
	//
	return ast.LabelItem{Number: util.Some(num)}, true
}

// Parse "function" identifier "(" params ")" ["->" "(" returns ")"] block
func (p *Parser) parseFunctionDefinition() (ast.Statement, bool) {
	var (
		start = p.index
		fn    ast.FunctionDefinition
		ok    bool
	)
	//
	p.match(KEYWORD_FUNCTION)
	// Parse function name
	tok := p.lookahead()
	if !p.expect(IDENTIFIER, "expected function name") {
		return nil, false
	}
	//
	fn.Name = p.string(tok)
	// Parse parameters
	if fn.Params, ok = p.parseParenthesisedNames(); !ok {
		return nil, false
	}
	// Parse optional returns
	if p.match(RIGHTARROW) {
		if fn.Returns, ok = p.parseParenthesisedNames(); !ok {
			return nil, false
		}
	}
	// Parse body
	if fn.Body, ok = p.parseBlock(); !ok {
		return nil, false
	}
	//
	p.srcmap.Put(&fn, p.spanOf(start, p.index-1))
	//
	return &fn, true
}

// Parse "(" [identifier ("," identifier)*] ")"
func (p *Parser) parseParenthesisedNames() ([]string, bool) {
	var names []string
	//
	if !p.expect(LBRACE, "expected '('") {
		return nil, false
	}
	//
	for p.lookahead().Kind != RBRACE {
		// look for ","
		if len(names) != 0 && !p.expect(COMMA, "expected ','") {
			return nil, false
		}
		//
		tok := p.lookahead()
		if !p.expect(IDENTIFIER, "expected name") {
			return nil, false
		}
		//
		names = append(names, p.string(tok))
	}
	// Advance past ")"
	p.match(RBRACE)
	//
	return names, true
}

// Parse identifier ("," identifier)*
func (p *Parser) parseIdentifierList() ([]string, bool) {
	var names []string
	//
	for len(names) == 0 || p.match(COMMA) {
		tok := p.lookahead()
		if !p.expect(IDENTIFIER, "expected name") {
			return nil, false
		}
		//
		names = append(names, p.string(tok))
	}
	//
	return names, true
}

// Parse expression ("," expression)*
func (p *Parser) parseExpressionList() ([]ast.Expression, bool) {
	var values []ast.Expression
	//
	for len(values) == 0 || p.match(COMMA) {
		expr, ok := p.parseExpression()
		if !ok {
			return nil, false
		}
		//
		values = append(values, expr)
	}
	//
	return values, true
}

func (p *Parser) parseExpression() (ast.Expression, bool) {
	lookahead := p.lookahead()
	//
	switch lookahead.Kind {
	case NUMBER:
		return p.parseNumber()
	case STRING:
		return p.parseString()
	case IDENTIFIER:
		// An identifier immediately followed by "(" is always a call.
		if p.follows(IDENTIFIER, LBRACE) {
			return p.parseCall()
		}
		//
		p.match(IDENTIFIER)
		name := p.string(lookahead)
		// Bare mnemonics take their operands from the stack; anything else is
		// an ordinary reference.
		if evm.IsMnemonic(name) {
			insn := &ast.Instruction{Name: name}
			p.srcmap.Put(insn, lookahead.Span)
			//
			return insn, true
		}
		//
		id := &ast.Identifier{Name: name}
		p.srcmap.Put(id, lookahead.Span)
		//
		return id, true
	default:
		p.error(lookahead, "expected expression")
		return nil, false
	}
}

// Parse identifier "(" [expression ("," expression)*] ")"
func (p *Parser) parseCall() (ast.Expression, bool) {
	var (
		start = p.index
		call  ast.Call
	)
	// Neither can fail (lookahead checked by caller)
	tok := p.lookahead()
	p.match(IDENTIFIER)
	p.match(LBRACE)
	//
	call.Name = p.string(tok)
	//
	for p.lookahead().Kind != RBRACE {
		// look for ","
		if len(call.Arguments) != 0 && !p.expect(COMMA, "expected ','") {
			return nil, false
		}
		//
		arg, ok := p.parseExpression()
		if !ok {
			return nil, false
		}
		//
		call.Arguments = append(call.Arguments, arg)
	}
	// Advance past ")"
	p.match(RBRACE)
	//
	p.srcmap.Put(&call, p.spanOf(start, p.index-1))
	//
	return &call, true
}

func (p *Parser) parseNumber() (ast.Expression, bool) {
	tok := p.lookahead()
	p.match(NUMBER)
	//
	lit := &ast.Literal{
		IsNumber: true,
		Text:     p.string(tok),
		Number:   p.number(tok),
	}
	//
	p.srcmap.Put(lit, tok.Span)
	//
	return lit, true
}

func (p *Parser) parseString() (ast.Expression, bool) {
	tok := p.lookahead()
	p.match(STRING)
	// Strip enclosing quotes
	quoted := p.string(tok)
	quoted = quoted[1 : len(quoted)-1]
	// Expand escape sequences
	bytes, ok := p.expandEscapes(tok, quoted)
	if !ok {
		return nil, false
	}
	//
	lit := &ast.Literal{Bytes: bytes}
	p.srcmap.Put(lit, tok.Span)
	//
	return lit, true
}

// Expand all escape sequences within a string literal into raw bytes.
// Unicode escapes ("\uXXXX") are expanded into their UTF-8 byte sequence here
// and now, rather than being deferred to later stages.
func (p *Parser) expandEscapes(tok lex.Token, text string) ([]byte, bool) {
	var (
		runes = []rune(text)
		bytes []byte
	)
	//
	for i := 0; i < len(runes); i++ {
		if runes[i] != '\\' {
			bytes = utf8.AppendRune(bytes, runes[i])
			continue
		}
		// Escape sequence; the lexer guarantees at least one rune follows.
		i++
		//
		switch runes[i] {
		case 'n':
			bytes = append(bytes, '\n')
		case 't':
			bytes = append(bytes, '\t')
		case 'r':
			bytes = append(bytes, '\r')
		case 'b':
			bytes = append(bytes, '\b')
		case 'f':
			bytes = append(bytes, '\f')
		case 'v':
			bytes = append(bytes, '\v')
		case '\'', '"', '\\':
			bytes = append(bytes, byte(runes[i]))
		case 'x':
			b, ok := hexValue(runes, i+1, 2)
			if !ok {
				p.error(tok, "invalid hex escape sequence")
				return nil, false
			}
			//
			bytes = append(bytes, byte(b))
			i += 2
		case 'u':
			r, ok := hexValue(runes, i+1, 4)
			if !ok {
				p.error(tok, "invalid unicode escape sequence")
				return nil, false
			}
			// Expand code point into UTF-8 bytes
			bytes = utf8.AppendRune(bytes, rune(r))
			i += 4
		default:
			p.error(tok, fmt.Sprintf("unknown escape sequence \"\\%c\"", runes[i]))
			return nil, false
		}
	}
	//
	return bytes, true
}

// Read n hex digits starting at a given index, or fail.
func hexValue(runes []rune, index int, n int) (uint32, bool) {
	var value uint32
	//
	if index+n > len(runes) {
		return 0, false
	}
	//
	for i := index; i < index+n; i++ {
		var digit uint32
		//
		switch r := runes[i]; {
		case '0' <= r && r <= '9':
			digit = uint32(r - '0')
		case 'a' <= r && r <= 'f':
			digit = uint32(r-'a') + 10
		case 'A' <= r && r <= 'F':
			digit = uint32(r-'A') + 10
		default:
			return 0, false
		}
		//
		value = (value << 4) | digit
	}
	//
	return value, true
}

// ============================================================================
// Helpers
// ============================================================================

// Get the text representing the given token as a string.
func (p *Parser) string(token lex.Token) string {
	return p.srcfile.Text(token.Span)
}

// Get the value of a numeric token.  The base is chosen explicitly since
// decimals may carry leading zeroes, which SetString in base 0 would read as
// an octal prefix.
func (p *Parser) number(token lex.Token) *big.Int {
	var (
		number big.Int
		text   = p.string(token)
	)
	//
	if strings.HasPrefix(text, "0x") {
		number.SetString(text[2:], 16)
	} else {
		number.SetString(text, 10)
	}
	//
	return &number
}

// Lookahead returns the next token.  This must exist because EOF is always
// appended at the end of the token stream.
func (p *Parser) lookahead() lex.Token {
	return p.tokens[p.index]
}

// Expect reports an error if the next token is not what was expected.
func (p *Parser) expect(kind uint, msg string) bool {
	lookahead := p.lookahead()
	//
	if lookahead.Kind != kind {
		p.error(lookahead, msg)
		return false
	}
	//
	p.index++
	//
	return true
}

// Match attempts to match the given token.
func (p *Parser) match(kind uint) bool {
	if p.lookahead().Kind == kind {
		p.index++
		return true
	}
	//
	return false
}

// Follows attempts to check what follows the current position.
func (p *Parser) follows(kinds ...uint) bool {
	for i, kind := range kinds {
		n := i + p.index
		if n >= len(p.tokens) {
			return false
		} else if p.tokens[n].Kind != kind {
			return false
		}
	}
	//
	return true
}

func (p *Parser) spanOf(firstToken, lastToken int) source.Span {
	start := p.tokens[firstToken].Span.Start()
	end := p.tokens[lastToken].Span.End()
	//
	return source.NewSpan(start, end)
}

func (p *Parser) error(token lex.Token, msg string) {
	p.diags.Error(ParserError, token.Span, msg)
}
