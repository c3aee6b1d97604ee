// internal/browser/style/style.go
package style

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pagescope/pagescope/internal/browser/parser"
	"golang.org/x/net/html"
)

// ShadowDOMProcessor is the contract for the shadow DOM engine. Keeping it as
// an interface here breaks the import cycle between the style and shadowdom
// packages: shadowdom depends on StyledNode, the engine only depends on this.
type ShadowDOMProcessor interface {
	DetectShadowHost(node *html.Node) bool
	InstantiateShadowRoot(host *html.Node) (*html.Node, []parser.StyleSheet)
	AssignSlots(host *StyledNode)
}

const (
	BaseFontSize      = 16.0 // default root font size
	DefaultLineHeight = 1.2
)

// DefaultUserAgentCSS approximates the browser defaults the snapshot
// classifiers care about: block/inline display, intrinsic form control sizes,
// and cursor defaults for links and buttons.
const DefaultUserAgentCSS = `
div, p, h1, h2, h3, h4, h5, h6, body, html, ul, ol, li, form, header, footer,
section, article, nav, main, aside, fieldset, details, summary, table {
	display: block;
	margin: 0;
	padding: 0;
}

body { margin: 8px; }

h1 { font-size: 2em; }
h2 { font-size: 1.5em; }

ul, ol { padding-left: 40px; }

input, button, textarea, select {
	display: inline-block;
	box-sizing: border-box;
	border-width: 1px;
	border-style: solid;
	font-size: inherit;
}

input { width: 170px; height: 21px; }
textarea { width: 170px; height: 48px; }
select { width: 120px; height: 21px; }

input[type="checkbox"], input[type="radio"] {
	width: 13px;
	height: 13px;
}

input[type="hidden"] { display: none; }

button, input[type="submit"], input[type="button"], input[type="reset"] {
	width: auto;
	height: auto;
	cursor: default;
}

a { cursor: pointer; }

img, iframe, embed, object, video, canvas, svg { display: inline-block; }
iframe { width: 300px; height: 150px; }

script, style, link, meta, title, template, noscript { display: none; }
`

// Engine computes styles for a document: user agent defaults, author sheets,
// inline styles, inheritance, and declarative shadow root instantiation.
type Engine struct {
	userAgentSheets []parser.StyleSheet
	authorSheets    []parser.StyleSheet
	shadowEngine    ShadowDOMProcessor
	viewportWidth   float64
	viewportHeight  float64
}

// NewEngine creates a styling engine. The ShadowDOMProcessor may be nil for
// documents known not to use shadow DOM (tests mostly).
func NewEngine(shadowEngine ShadowDOMProcessor) *Engine {
	uaSheet := parser.NewParser(DefaultUserAgentCSS).Parse()
	return &Engine{
		shadowEngine:    shadowEngine,
		userAgentSheets: []parser.StyleSheet{uaSheet},
	}
}

// AddAuthorSheet adds a stylesheet collected from the page.
func (se *Engine) AddAuthorSheet(sheet parser.StyleSheet) {
	se.authorSheets = append(se.authorSheets, sheet)
}

// SetViewport sets the dimensions used for viewport-relative units.
func (se *Engine) SetViewport(width, height float64) {
	se.viewportWidth = width
	se.viewportHeight = height
}

// StyledNode is a DOM node with its computed styles. ShadowRoot, when set,
// holds the styled subtree of the node's instantiated shadow root; its source
// html.Node is a synthetic boundary node.
type StyledNode struct {
	Node           *html.Node
	ComputedStyles map[parser.Property]parser.Value
	Parent         *StyledNode
	Children       []*StyledNode
	ShadowRoot     *StyledNode

	// SlotAssignment is set on slot elements inside a shadow root: the light
	// children of the host projected into this slot, in host order.
	SlotAssignment []*StyledNode
}

// Tag returns the lower-cased tag name, or "" for non-elements.
func (sn *StyledNode) Tag() string {
	if sn.Node == nil || sn.Node.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(sn.Node.Data)
}

// Attr returns the value of an attribute and whether it is present.
func (sn *StyledNode) Attr(name string) (string, bool) {
	if sn.Node == nil {
		return "", false
	}
	for _, a := range sn.Node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// -- Style Tree Construction --

// BuildTree computes styles for node and its subtree. parent may be nil for
// the document root.
func (se *Engine) BuildTree(node *html.Node, parent *StyledNode) *StyledNode {
	return se.buildTreeRecursive(node, parent, se.authorSheets)
}

func (se *Engine) buildTreeRecursive(node *html.Node, parent *StyledNode, scopedSheets []parser.StyleSheet) *StyledNode {
	if node.Type == html.CommentNode || node.Type == html.DoctypeNode {
		return nil
	}
	if node.Type == html.ElementNode && strings.ToLower(node.Data) == "head" {
		return nil
	}

	styles := make(map[parser.Property]parser.Value)
	if node.Type == html.ElementNode {
		styles = se.CalculateStyles(node, scopedSheets)
	}

	sn := &StyledNode{
		Node:           node,
		ComputedStyles: styles,
		Parent:         parent,
	}

	if parent != nil {
		se.inheritStyles(sn, parent)
	} else if _, ok := sn.ComputedStyles["font-size"]; !ok {
		sn.ComputedStyles["font-size"] = parser.Value(fmt.Sprintf("%.2fpx", BaseFontSize))
	}
	se.resolveFontSize(sn, parent)

	if se.shadowEngine != nil && se.shadowEngine.DetectShadowHost(node) {
		rootNode, shadowSheets := se.shadowEngine.InstantiateShadowRoot(node)
		if rootNode != nil {
			sn.ShadowRoot = se.buildTreeRecursive(rootNode, sn, shadowSheets)
		}
	}

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		// an instantiated shadow template lives in ShadowRoot; its inert
		// light-DOM copy must not reappear as styled children
		if sn.ShadowRoot != nil && isShadowTemplate(c) {
			continue
		}
		if child := se.buildTreeRecursive(c, sn, scopedSheets); child != nil {
			sn.Children = append(sn.Children, child)
		}
	}

	// Slot projection needs both the shadow tree and the light children, so
	// it runs once both exist.
	if sn.ShadowRoot != nil && se.shadowEngine != nil {
		se.shadowEngine.AssignSlots(sn)
	}
	return sn
}

// isShadowTemplate reports whether node is a declarative shadow template.
func isShadowTemplate(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode || strings.ToLower(node.Data) != "template" {
		return false
	}
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, "shadowrootmode") {
			mode := strings.ToLower(a.Val)
			return mode == "open" || mode == "closed"
		}
	}
	return false
}

// inheritableProperties propagate from parent to child when the child has no
// own value. Visibility and cursor matter directly to the snapshot
// classifiers, the font properties to text measurement.
var inheritableProperties = [...]parser.Property{
	"color", "font-family", "font-size", "font-weight",
	"line-height", "text-align", "visibility", "cursor",
}

func (se *Engine) inheritStyles(child, parent *StyledNode) {
	for prop, val := range child.ComputedStyles {
		if val == "inherit" {
			if pv, ok := parent.ComputedStyles[prop]; ok {
				child.ComputedStyles[prop] = pv
			} else {
				delete(child.ComputedStyles, prop)
			}
		}
	}
	for _, prop := range inheritableProperties {
		if _, ok := child.ComputedStyles[prop]; !ok {
			if pv, ok := parent.ComputedStyles[prop]; ok {
				child.ComputedStyles[prop] = pv
			}
		}
	}
}

func (se *Engine) resolveFontSize(sn, parent *StyledNode) {
	parentSize := BaseFontSize
	if parent != nil {
		parentSize = ParseAbsoluteLength(parent.Lookup("font-size", "16px"))
	}
	if raw, ok := sn.ComputedStyles["font-size"]; ok {
		resolved := ParseLengthWithUnits(string(raw), parentSize, BaseFontSize, parentSize, se.viewportWidth, se.viewportHeight)
		if resolved > 0 {
			sn.ComputedStyles["font-size"] = parser.Value(fmt.Sprintf("%.2fpx", resolved))
		} else {
			sn.ComputedStyles["font-size"] = parser.Value(fmt.Sprintf("%.2fpx", parentSize))
		}
	}
}

// -- The Cascade --

type StyleOrigin int

const (
	OriginUserAgent StyleOrigin = iota
	OriginAuthor
	OriginInline
)

type contextualDeclaration struct {
	decl        parser.Declaration
	specificity [3]int
	origin      StyleOrigin
	order       int
}

// CalculateStyles runs the cascade for a single element against the UA sheet,
// the scoped author sheets and the inline style attribute.
func (se *Engine) CalculateStyles(node *html.Node, scopedSheets []parser.StyleSheet) map[parser.Property]parser.Value {
	var decls []contextualDeclaration
	order := 0

	collect := func(sheets []parser.StyleSheet, origin StyleOrigin) {
		for _, sheet := range sheets {
			for _, rule := range sheet.Rules {
				for _, group := range rule.SelectorGroups {
					matched, ok := se.matches(node, group)
					if !ok {
						continue
					}
					a, b, c := matched.CalculateSpecificity()
					for _, d := range rule.Declarations {
						decls = append(decls, contextualDeclaration{
							decl:        d,
							specificity: [3]int{a, b, c},
							origin:      origin,
							order:       order,
						})
						order++
					}
					break
				}
			}
		}
	}
	collect(se.userAgentSheets, OriginUserAgent)
	collect(scopedSheets, OriginAuthor)

	for _, attr := range node.Attr {
		if attr.Key != "style" {
			continue
		}
		for _, d := range parseInlineStyles(attr.Val) {
			decls = append(decls, contextualDeclaration{
				decl:        d,
				specificity: [3]int{1, 0, 0},
				origin:      OriginInline,
				order:       order,
			})
			order++
		}
	}

	// Ascending priority: the last write to the map wins.
	sort.Slice(decls, func(i, j int) bool {
		di, dj := decls[i], decls[j]
		pi, pj := cascadePriority(di), cascadePriority(dj)
		if pi != pj {
			return pi < pj
		}
		if di.specificity != dj.specificity {
			for k := 0; k < 3; k++ {
				if di.specificity[k] != dj.specificity[k] {
					return di.specificity[k] < dj.specificity[k]
				}
			}
		}
		return di.order < dj.order
	})

	styles := make(map[parser.Property]parser.Value, len(decls))
	for _, cd := range decls {
		styles[cd.decl.Property] = cd.decl.Value
	}
	return styles
}

func cascadePriority(cd contextualDeclaration) int {
	switch cd.origin {
	case OriginUserAgent:
		if cd.decl.Important {
			return 5
		}
		return 1
	case OriginAuthor:
		if cd.decl.Important {
			return 4
		}
		return 2
	case OriginInline:
		if cd.decl.Important {
			return 4
		}
		return 3
	}
	return 0
}

func parseInlineStyles(styleAttr string) []parser.Declaration {
	var decls []parser.Declaration
	for _, part := range strings.Split(styleAttr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		important := false
		if strings.HasSuffix(strings.ToLower(val), "!important") {
			important = true
			val = strings.TrimSpace(val[:len(val)-len("!important")])
		}
		if prop == "" || val == "" {
			continue
		}
		decls = append(decls, parser.Declaration{
			Property:  parser.Property(prop),
			Value:     parser.Value(val),
			Important: important,
		})
	}
	return decls
}

// -- Selector Matching --

func (se *Engine) matches(node *html.Node, group parser.SelectorGroup) (*parser.ComplexSelector, bool) {
	if node.Type != html.ElementNode {
		return nil, false
	}
	for i := range group {
		last := len(group[i].Selectors) - 1
		if last < 0 {
			continue
		}
		if se.matchComplex(node, group[i], last) {
			return &group[i], true
		}
	}
	return nil, false
}

func (se *Engine) matchComplex(node *html.Node, sel parser.ComplexSelector, index int) bool {
	if node == nil || node.Type != html.ElementNode || index < 0 {
		return false
	}
	current := sel.Selectors[index]
	if !matchesSimple(node, current.SimpleSelector) {
		return false
	}
	if index == 0 {
		return true
	}
	switch current.Combinator {
	case parser.CombinatorDescendant:
		for p := node.Parent; p != nil; p = p.Parent {
			if se.matchComplex(p, sel, index-1) {
				return true
			}
		}
	case parser.CombinatorChild:
		return se.matchComplex(node.Parent, sel, index-1)
	case parser.CombinatorAdjacentSibling:
		return se.matchComplex(previousElementSibling(node), sel, index-1)
	case parser.CombinatorGeneralSibling:
		for s := previousElementSibling(node); s != nil; s = previousElementSibling(s) {
			if se.matchComplex(s, sel, index-1) {
				return true
			}
		}
	case parser.CombinatorNone:
		return true
	}
	return false
}

func previousElementSibling(node *html.Node) *html.Node {
	for s := node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func matchesSimple(node *html.Node, sel parser.SimpleSelector) bool {
	if sel.TagName != "" && sel.TagName != "*" && strings.ToLower(node.Data) != sel.TagName {
		return false
	}
	if sel.ID != "" && attrValue(node, "id") != sel.ID {
		return false
	}
	if len(sel.Classes) > 0 {
		nodeClasses := strings.Fields(attrValue(node, "class"))
		for _, want := range sel.Classes {
			found := false
			for _, have := range nodeClasses {
				if have == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, as := range sel.Attributes {
		if !matchesAttribute(node, as) {
			return false
		}
	}
	return true
}

func attrValue(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func matchesAttribute(node *html.Node, sel parser.AttributeSelector) bool {
	var actual string
	found := false
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, sel.Name) {
			actual = a.Val
			found = true
			break
		}
	}
	if !found {
		return false
	}
	switch sel.Operator {
	case "":
		return true
	case "=":
		return actual == sel.Value
	case "~=":
		for _, w := range strings.Fields(actual) {
			if w == sel.Value {
				return true
			}
		}
		return false
	case "|=":
		return actual == sel.Value || strings.HasPrefix(actual, sel.Value+"-")
	case "^=":
		return strings.HasPrefix(actual, sel.Value)
	case "$=":
		return strings.HasSuffix(actual, sel.Value)
	case "*=":
		return strings.Contains(actual, sel.Value)
	}
	return false
}

// -- Computed Accessors --

// Lookup returns the computed value for property, or fallback when absent.
func (sn *StyledNode) Lookup(property, fallback string) string {
	if v, ok := sn.ComputedStyles[parser.Property(property)]; ok {
		return string(v)
	}
	return fallback
}

type DisplayType int

const (
	DisplayInline DisplayType = iota
	DisplayBlock
	DisplayInlineBlock
	DisplayNone
)

func (sn *StyledNode) Display() DisplayType {
	if sn.Node != nil && sn.Node.Type == html.TextNode {
		return DisplayInline
	}
	switch sn.Lookup("display", "") {
	case "none":
		return DisplayNone
	case "block", "flex", "grid", "table", "list-item", "flow-root":
		return DisplayBlock
	case "inline-block", "inline-flex", "inline-grid":
		return DisplayInlineBlock
	case "inline":
		return DisplayInline
	}
	return defaultDisplay(sn.Node)
}

type PositionType int

const (
	PositionStatic PositionType = iota
	PositionRelative
	PositionAbsolute
	PositionFixed
	PositionSticky
)

func (sn *StyledNode) Position() PositionType {
	switch sn.Lookup("position", "static") {
	case "relative":
		return PositionRelative
	case "absolute":
		return PositionAbsolute
	case "fixed":
		return PositionFixed
	case "sticky":
		return PositionSticky
	}
	return PositionStatic
}

// Visibility returns the computed visibility keyword.
func (sn *StyledNode) Visibility() string {
	return sn.Lookup("visibility", "visible")
}

// Opacity returns the computed opacity, clamped to [0,1].
func (sn *StyledNode) Opacity() float64 {
	raw := sn.Lookup("opacity", "1")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 1
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Cursor returns the computed cursor keyword.
func (sn *StyledNode) Cursor() string {
	return sn.Lookup("cursor", "auto")
}

// ZIndex returns the computed z-index and whether one was declared.
func (sn *StyledNode) ZIndex() (int, bool) {
	raw := sn.Lookup("z-index", "auto")
	if raw == "auto" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsVisible is the affirmative style check: display, visibility and opacity
// all permit rendering. Geometry is layout's business, not handled here.
func (sn *StyledNode) IsVisible() bool {
	if sn.Display() == DisplayNone {
		return false
	}
	if v := sn.Visibility(); v == "hidden" || v == "collapse" {
		return false
	}
	return sn.Opacity() > 0
}

func defaultDisplay(node *html.Node) DisplayType {
	if node == nil || node.Type != html.ElementNode {
		return DisplayInline
	}
	switch strings.ToLower(node.Data) {
	case "html", "body", "div", "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "form", "header", "footer", "section", "article",
		"nav", "main", "aside", "fieldset", "details", "summary", "table",
		"pre", "blockquote", "hr", "address", "figure", "dl", "dt", "dd":
		return DisplayBlock
	case "input", "button", "textarea", "select", "img", "iframe", "embed",
		"object", "video", "canvas", "svg":
		return DisplayInlineBlock
	case "script", "style", "link", "meta", "title", "template", "noscript":
		return DisplayNone
	}
	return DisplayInline
}

// -- Length Parsing --

// ParseLengthWithUnits resolves a CSS length against its reference values.
// Unsupported units and keywords resolve to 0.
func ParseLengthWithUnits(value string, parentFontSize, rootFontSize, referenceDimension, viewportWidth, viewportHeight float64) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "auto" || value == "normal" || value == "none" {
		return 0
	}

	for _, u := range []struct {
		suffix string
		scale  func(v float64) float64
	}{
		{"px", func(v float64) float64 { return v }},
		{"rem", func(v float64) float64 { return v * rootFontSize }},
		{"em", func(v float64) float64 { return v * parentFontSize }},
		{"vmin", func(v float64) float64 { return min(viewportWidth, viewportHeight) * v / 100 }},
		{"vmax", func(v float64) float64 { return max(viewportWidth, viewportHeight) * v / 100 }},
		{"vw", func(v float64) float64 { return viewportWidth * v / 100 }},
		{"vh", func(v float64) float64 { return viewportHeight * v / 100 }},
		{"%", func(v float64) float64 { return referenceDimension * v / 100 }},
	} {
		if strings.HasSuffix(value, u.suffix) {
			num := strings.TrimSuffix(value, u.suffix)
			if v, err := strconv.ParseFloat(strings.TrimSpace(num), 64); err == nil {
				return u.scale(v)
			}
			return 0
		}
	}

	// Unitless values read as pixels.
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return 0
}

// ParseAbsoluteLength resolves a length that needs no reference context (px
// or unitless).
func ParseAbsoluteLength(value string) float64 {
	return ParseLengthWithUnits(value, 0, 0, 0, 0, 0)
}

// GetFontSize returns the resolved font size in pixels.
func GetFontSize(sn *StyledNode) float64 {
	if sn == nil {
		return BaseFontSize
	}
	if v := ParseAbsoluteLength(sn.Lookup("font-size", "16px")); v > 0 {
		return v
	}
	return BaseFontSize
}

// MeasureText estimates the rendered size of a text node. Width uses an
// average glyph advance of 0.6em, the same crude metric browsers' fallback
// fonts roughly follow for Latin text.
func MeasureText(sn *StyledNode) (width, height float64) {
	if sn == nil || sn.Node == nil || sn.Node.Type != html.TextNode {
		return 0, 0
	}
	text := strings.TrimSpace(sn.Node.Data)
	if text == "" {
		return 0, 0
	}
	fontSize := GetFontSize(sn)
	return float64(len(text)) * fontSize * 0.6, fontSize * DefaultLineHeight
}
