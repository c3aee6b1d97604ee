// internal/browser/parser/css.go
package parser

import (
	"fmt"
	"strings"
)

// Property is a CSS property name, always lower-cased (e.g. "display").
type Property string

// Value is a raw CSS value (e.g. "none", "12px").
type Value string

// Declaration is one property:value pair inside a rule body.
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// RuleSet couples one or more selector groups with the declarations they apply.
type RuleSet struct {
	SelectorGroups []SelectorGroup
	Declarations   []Declaration
}

// StyleSheet is the parsed form of one stylesheet source.
type StyleSheet struct {
	Rules []RuleSet
}

// SelectorGroup is a comma-separated list of complex selectors sharing one body.
type SelectorGroup []ComplexSelector

// ComplexSelector is a chain of simple selectors joined by combinators,
// e.g. "nav > ul li.active".
type ComplexSelector struct {
	Selectors []SimpleSelectorWithCombinator
}

// SimpleSelectorWithCombinator pairs a simple selector with the combinator
// that precedes it in the chain.
type SimpleSelectorWithCombinator struct {
	Combinator     Combinator
	SimpleSelector SimpleSelector
}

// SimpleSelector is one compound selector: tag and/or id/classes/attributes.
type SimpleSelector struct {
	TagName    string
	ID         string
	Classes    []string
	Attributes []AttributeSelector
}

// AttributeSelector is a `[name]` or `[name<op>value]` component.
type AttributeSelector struct {
	Name     string
	Operator string // "=", "~=", "|=", "^=", "$=", "*=" or "" for presence
	Value    string
}

// Combinator relates a simple selector to the one before it.
type Combinator int

const (
	CombinatorNone            Combinator = iota // first selector in the chain
	CombinatorDescendant                        // whitespace
	CombinatorChild                             // >
	CombinatorAdjacentSibling                   // +
	CombinatorGeneralSibling                    // ~
)

// CalculateSpecificity returns the (id, class, type) specificity triple for a
// complex selector, summed over its simple selectors.
func (cs ComplexSelector) CalculateSpecificity() (int, int, int) {
	a, b, c := 0, 0, 0
	for _, s := range cs.Selectors {
		sa, sb, sc := s.SimpleSelector.CalculateSpecificity()
		a += sa
		b += sb
		c += sc
	}
	return a, b, c
}

// CalculateSpecificity for a simple selector. Attribute selectors count as
// classes; the universal selector counts as nothing.
func (s SimpleSelector) CalculateSpecificity() (a, b, c int) {
	if s.ID != "" {
		a = 1
	}
	b = len(s.Classes) + len(s.Attributes)
	if s.TagName != "" && s.TagName != "*" {
		c = 1
	}
	return a, b, c
}

// IsValid reports whether the selector has at least one component.
func (s SimpleSelector) IsValid() bool {
	return s.TagName != "" || s.ID != "" || len(s.Classes) > 0 || len(s.Attributes) > 0
}

// Parser is a single-pass recursive-descent CSS parser. It is tolerant by
// construction: malformed rules and unsupported at-rules are skipped rather
// than failing the whole sheet, matching how browsers recover.
type Parser struct {
	input string
	pos   int
}

func NewParser(input string) *Parser {
	return &Parser{input: input}
}

// Parse consumes the whole input and returns the stylesheet.
func (p *Parser) Parse() StyleSheet {
	var rules []RuleSet
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		switch {
		case p.startsWith("/*"):
			p.skipComment()
		case p.peek() == '@':
			p.skipAtRule()
		default:
			if rule, ok := p.parseRuleSet(); ok {
				rules = append(rules, rule)
			}
		}
	}
	return StyleSheet{Rules: rules}
}

func (p *Parser) parseRuleSet() (RuleSet, bool) {
	groups := p.parseSelectorGroups()
	if len(groups) == 0 {
		// Recover at the next block so one bad prelude cannot desync the sheet.
		p.skipTo('{')
		if p.peek() == '{' {
			p.skipBlock('{', '}')
		}
		return RuleSet{}, false
	}
	decls, err := p.parseDeclarations()
	if err != nil || len(decls) == 0 {
		return RuleSet{}, false
	}
	return RuleSet{SelectorGroups: groups, Declarations: decls}, true
}

// parseSelectorGroups parses the comma-separated selector prelude of a rule.
func (p *Parser) parseSelectorGroups() []SelectorGroup {
	var group SelectorGroup
	for {
		p.skipSpace()
		if p.eof() || p.peek() == '{' {
			break
		}
		complexSel := p.parseComplexSelector()
		if len(complexSel.Selectors) > 0 {
			group = append(group, complexSel)
		}
		p.skipSpace()
		if p.peek() == ',' {
			p.advance()
			continue
		}
		break
	}
	if len(group) == 0 {
		return nil
	}
	return []SelectorGroup{group}
}

func (p *Parser) parseComplexSelector() ComplexSelector {
	var out ComplexSelector
	combinator := CombinatorNone
	for {
		p.skipSpace()
		if p.eof() || p.peek() == '{' || p.peek() == ',' {
			break
		}
		simple, err := p.parseSimpleSelector()
		if err != nil {
			p.skipTo(' ', '>', '+', '~', ',', '{')
			continue
		}
		if simple.IsValid() {
			out.Selectors = append(out.Selectors, SimpleSelectorWithCombinator{
				Combinator:     combinator,
				SimpleSelector: simple,
			})
		}
		p.skipSpace()
		if p.eof() || p.peek() == '{' || p.peek() == ',' {
			break
		}
		switch p.peek() {
		case '>':
			combinator = CombinatorChild
			p.advance()
		case '+':
			combinator = CombinatorAdjacentSibling
			p.advance()
		case '~':
			combinator = CombinatorGeneralSibling
			p.advance()
		default:
			combinator = CombinatorDescendant
		}
	}
	return out
}

// parseSimpleSelector parses one compound selector such as input#q.wide[type="text"].
// Pseudo-classes and pseudo-elements are consumed and dropped; they never
// affect matching here.
func (p *Parser) parseSimpleSelector() (SimpleSelector, error) {
	sel := SimpleSelector{}

	if ch := p.peek(); ch == '*' {
		p.advance()
		sel.TagName = "*"
	} else if isIdentStart(ch) {
		sel.TagName = strings.ToLower(p.parseIdent())
	}

loop:
	for !p.eof() {
		switch p.peek() {
		case '#':
			p.advance()
			sel.ID = p.parseIdent()
		case '.':
			p.advance()
			sel.Classes = append(sel.Classes, p.parseIdent())
		case '[':
			p.advance()
			if attr, err := p.parseAttributeSelector(); err == nil {
				sel.Attributes = append(sel.Attributes, attr)
			}
		case ':':
			p.skipPseudo()
		default:
			break loop
		}
	}

	if !sel.IsValid() && sel.TagName != "*" {
		return sel, fmt.Errorf("empty simple selector")
	}
	return sel, nil
}

// parseAttributeSelector parses the body of `[...]`; the '[' is already consumed.
func (p *Parser) parseAttributeSelector() (AttributeSelector, error) {
	p.skipSpace()
	name := p.parseIdent()
	p.skipSpace()

	if p.eof() {
		return AttributeSelector{}, fmt.Errorf("unterminated attribute selector")
	}
	if p.peek() == ']' {
		p.advance()
		return AttributeSelector{Name: name}, nil
	}

	var op strings.Builder
	op.WriteByte(p.advance())
	if p.peek() == '=' {
		op.WriteByte(p.advance())
	}
	p.skipSpace()

	var value string
	if q := p.peek(); q == '"' || q == '\'' {
		p.advance()
		start := p.pos
		for !p.eof() && p.peek() != q {
			p.pos++
		}
		value = p.input[start:p.pos]
		if !p.eof() {
			p.advance()
		}
	} else {
		value = p.parseIdent()
	}
	p.skipSpace()

	if p.eof() || p.peek() != ']' {
		return AttributeSelector{}, fmt.Errorf("expected ']' in attribute selector")
	}
	p.advance()
	return AttributeSelector{Name: name, Operator: op.String(), Value: value}, nil
}

// parseDeclarations parses the `{ ... }` body of a rule.
func (p *Parser) parseDeclarations() ([]Declaration, error) {
	p.skipSpace()
	if p.eof() || p.peek() != '{' {
		return nil, fmt.Errorf("expected '{'")
	}
	p.advance()

	var decls []Declaration
	for {
		p.skipSpace()
		if p.eof() || p.peek() == '}' {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		prop, val, important := p.parseDeclaration()
		if prop != "" && val != "" {
			decls = append(decls, Declaration{
				Property:  Property(strings.ToLower(prop)),
				Value:     Value(val),
				Important: important,
			})
		}
	}
	if p.peek() == '}' {
		p.advance()
	}
	return decls, nil
}

func (p *Parser) parseDeclaration() (prop, val string, important bool) {
	if !isIdentStart(p.peek()) {
		p.recoverDeclaration()
		return
	}
	prop = p.parseIdent()
	p.skipSpace()

	if p.eof() || p.peek() != ':' {
		p.recoverDeclaration()
		return
	}
	p.advance()
	p.skipSpace()

	val = p.parseValue()
	if strings.HasSuffix(strings.ToLower(val), "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}

	p.skipSpace()
	if p.peek() == ';' {
		p.advance()
	}
	return
}

// recoverDeclaration skips a malformed declaration up to its terminator.
func (p *Parser) recoverDeclaration() {
	p.skipTo(';', '}')
	if p.peek() == ';' {
		p.advance()
	}
}

// parseValue reads a value up to ';' or '}', keeping quoted strings and
// function parentheses (url(...), calc(...)) intact.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		switch ch := p.peek(); {
		case ch == ';' || ch == '}':
			return strings.TrimSpace(p.input[start:p.pos])
		case ch == '"' || ch == '\'':
			p.skipQuoted(ch)
		case ch == '(':
			p.skipBlock('(', ')')
		default:
			p.pos++
		}
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// -- Lexer helpers --

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

// peek returns the current byte, or 0 at EOF.
func (p *Parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) advance() byte {
	ch := p.peek()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *Parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *Parser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) skipComment() {
	p.pos += 2
	if end := strings.Index(p.input[p.pos:], "*/"); end >= 0 {
		p.pos += end + 2
	} else {
		p.pos = len(p.input)
	}
}

func (p *Parser) skipTo(targets ...byte) {
	for !p.eof() {
		ch := p.peek()
		for _, t := range targets {
			if ch == t {
				return
			}
		}
		p.pos++
	}
}

func (p *Parser) skipBlock(open, close byte) {
	depth := 0
	for !p.eof() {
		switch p.advance() {
		case open:
			depth++
		case close:
			depth--
			if depth <= 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuoted(quote byte) {
	p.advance()
	for !p.eof() {
		switch p.advance() {
		case '\\':
			p.advance()
		case quote:
			return
		}
	}
}

// skipAtRule drops @media, @keyframes, @import and friends wholesale.
func (p *Parser) skipAtRule() {
	p.advance()
	_ = p.parseIdent()
	for !p.eof() {
		switch p.peek() {
		case '{':
			p.skipBlock('{', '}')
			return
		case ';':
			p.advance()
			return
		default:
			p.pos++
		}
	}
}

// skipPseudo consumes ':hover', '::before', ':nth-child(2n)' etc.
func (p *Parser) skipPseudo() {
	p.advance()
	if p.peek() == ':' {
		p.advance()
	}
	_ = p.parseIdent()
	if p.peek() == '(' {
		p.skipBlock('(', ')')
	}
}

func (p *Parser) parseIdent() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.peek()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
