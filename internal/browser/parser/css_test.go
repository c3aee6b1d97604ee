// internal/browser/parser/css_test.go
package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helpers to build expected structures concisely.
func d(prop, val string, important bool) Declaration {
	return Declaration{Property: Property(prop), Value: Value(val), Important: important}
}

func s(tag, id string, classes []string, attrs []AttributeSelector) SimpleSelector {
	return SimpleSelector{TagName: tag, ID: id, Classes: classes, Attributes: attrs}
}

func sc(c Combinator, sel SimpleSelector) SimpleSelectorWithCombinator {
	return SimpleSelectorWithCombinator{Combinator: c, SimpleSelector: sel}
}

func TestParseSimpleSelectors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected SimpleSelector
	}{
		{"Tag", "div", s("div", "", nil, nil)},
		{"TagUppercased", "DIV", s("div", "", nil, nil)},
		{"ID", "#main", s("", "main", nil, nil)},
		{"Class", ".button", s("", "", []string{"button"}, nil)},
		{"MultipleClasses", ".btn.primary", s("", "", []string{"btn", "primary"}, nil)},
		{"Combined", "input#username.required", s("input", "username", []string{"required"}, nil)},
		{"Universal", "*", s("*", "", nil, nil)},
		{"AttrPresence", "[disabled]", s("", "", nil, []AttributeSelector{{Name: "disabled"}})},
		{"AttrExact", `[type="text"]`, s("", "", nil, []AttributeSelector{{Name: "type", Operator: "=", Value: "text"}})},
		{"AttrWord", `[class~="alert"]`, s("", "", nil, []AttributeSelector{{Name: "class", Operator: "~=", Value: "alert"}})},
		{"AttrPrefix", `[href^="https"]`, s("", "", nil, []AttributeSelector{{Name: "href", Operator: "^=", Value: "https"}})},
		{"AttrSuffix", `[src$=".png"]`, s("", "", nil, []AttributeSelector{{Name: "src", Operator: "$=", Value: ".png"}})},
		{"AttrSubstring", `[title*="ex"]`, s("", "", nil, []AttributeSelector{{Name: "title", Operator: "*=", Value: "ex"}})},
		{"Mixed", `a.external[target="_blank"]`, s("a", "", []string{"external"}, []AttributeSelector{{Name: "target", Operator: "=", Value: "_blank"}})},
		// Pseudo-classes are consumed but never participate in matching.
		{"PseudoDropped", "a:hover", s("a", "", nil, nil)},
		{"FunctionalPseudoDropped", "li:nth-child(2n+1)", s("li", "", nil, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(tt.input + " { }")
			groups := p.parseSelectorGroups()
			require.NotEmpty(t, groups, "failed to parse selector for %q", tt.input)
			require.NotEmpty(t, groups[0])
			require.NotEmpty(t, groups[0][0].Selectors)
			assert.Equal(t, tt.expected, groups[0][0].Selectors[0].SimpleSelector)
		})
	}
}

func TestParseCombinators(t *testing.T) {
	input := `
		div p,
		article > section,
		h1 + h2,
		h2 ~ p,
		.container .item > span
		{}
	`
	p := NewParser(input)
	groups := p.parseSelectorGroups()
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 5)

	expected := []ComplexSelector{
		{Selectors: []SimpleSelectorWithCombinator{
			sc(CombinatorNone, s("div", "", nil, nil)),
			sc(CombinatorDescendant, s("p", "", nil, nil)),
		}},
		{Selectors: []SimpleSelectorWithCombinator{
			sc(CombinatorNone, s("article", "", nil, nil)),
			sc(CombinatorChild, s("section", "", nil, nil)),
		}},
		{Selectors: []SimpleSelectorWithCombinator{
			sc(CombinatorNone, s("h1", "", nil, nil)),
			sc(CombinatorAdjacentSibling, s("h2", "", nil, nil)),
		}},
		{Selectors: []SimpleSelectorWithCombinator{
			sc(CombinatorNone, s("h2", "", nil, nil)),
			sc(CombinatorGeneralSibling, s("p", "", nil, nil)),
		}},
		{Selectors: []SimpleSelectorWithCombinator{
			sc(CombinatorNone, s("", "", []string{"container"}, nil)),
			sc(CombinatorDescendant, s("", "", []string{"item"}, nil)),
			sc(CombinatorChild, s("span", "", nil, nil)),
		}},
	}

	for i, exp := range expected {
		assert.Equal(t, exp, groups[0][i], "complex selector %d", i)
	}
}

func TestParseDeclarations(t *testing.T) {
	input := `
	{
		color: red;
		font-size: 16px !important;
		margin: 10px 20px;
		/* comment between declarations */
		background-image: url("a;b.png");
		padding: 0
	}
	`
	p := NewParser(input)
	p.skipSpace()

	got, err := p.parseDeclarations()
	require.NoError(t, err)

	expected := []Declaration{
		d("color", "red", false),
		d("font-size", "16px", true),
		d("margin", "10px 20px", false),
		d("background-image", `url("a;b.png")`, false),
		d("padding", "0", false),
	}
	assert.Equal(t, expected, got)
}

func TestParseFullStylesheet(t *testing.T) {
	input := `
	/* header */
	@import url("base.css");
	h1, h2 { font-weight: bold; }
	@media (max-width: 600px) {
		h1 { display: none; }
	}
	#app .visible { display: block; visibility: visible; }
	%%% { color: blue; }
	p { cursor: pointer; }
	`
	sheet := NewParser(input).Parse()

	// The @-rules and the unparseable rule disappear; three rules survive.
	require.Len(t, sheet.Rules, 3)

	assert.Len(t, sheet.Rules[0].SelectorGroups[0], 2)
	assert.Equal(t, []Declaration{d("font-weight", "bold", false)}, sheet.Rules[0].Declarations)

	assert.Equal(t, []Declaration{
		d("display", "block", false),
		d("visibility", "visible", false),
	}, sheet.Rules[1].Declarations)

	assert.Equal(t, []Declaration{d("cursor", "pointer", false)}, sheet.Rules[2].Declarations)
}

func TestCalculateSpecificity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		a, b, c int
	}{
		{"Tag", "div {}", 0, 0, 1},
		{"Class", ".x {}", 0, 1, 0},
		{"ID", "#x {}", 1, 0, 0},
		{"Universal", "* {}", 0, 0, 0},
		{"Compound", "a#x.y[href] {}", 1, 2, 1},
		{"Chain", "ul li .item {}", 0, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(tt.input)
			groups := p.parseSelectorGroups()
			require.NotEmpty(t, groups)
			a, b, c := groups[0][0].CalculateSpecificity()
			assert.Equal(t, [3]int{tt.a, tt.b, tt.c}, [3]int{a, b, c})
		})
	}
}
