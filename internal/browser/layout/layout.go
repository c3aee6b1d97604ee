// internal/browser/layout/layout.go
package layout

import (
	"strings"

	"github.com/pagescope/pagescope/internal/browser/style"
	"golang.org/x/net/html"
)

// Rect is a border-box rectangle in root document coordinates (CSS pixels).
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Center returns the visual center of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Edges holds per-side spacing.
type Edges struct {
	Top, Right, Bottom, Left float64
}

// Box is one laid-out node. Rect covers border and padding; margins sit
// outside it. Hidden marks visibility:hidden boxes, which occupy space but
// are neither painted nor hit-test targets.
type Box struct {
	Styled   *style.StyledNode
	Rect     Rect
	Margin   Edges
	Hidden   bool
	ZIndex   int
	Seq      int // pre-order paint sequence, tie-break for hit testing
	Parent   *Box
	Children []*Box
}

// Tree is the laid-out document with an index from styled nodes to boxes.
type Tree struct {
	Root     *Box
	Viewport Rect
	boxes    map[*style.StyledNode]*Box
}

// BoxOf returns the box for a styled node, or nil when the node generated no
// box (display:none subtree, or unreached).
func (t *Tree) BoxOf(sn *style.StyledNode) *Box {
	if t == nil {
		return nil
	}
	return t.boxes[sn]
}

// RectOf is BoxOf collapsed to geometry; missing boxes yield a zero rect.
func (t *Tree) RectOf(sn *style.StyledNode) Rect {
	if b := t.BoxOf(sn); b != nil {
		return b.Rect
	}
	return Rect{}
}

// Engine performs a reduced box layout: block stacking, inline line flow
// with an estimated text metric, explicit CSS sizes, absolute and fixed
// positioning. It is deliberately approximate; the snapshot classifiers only
// need usable rectangles and a faithful paint order.
type Engine struct {
	viewportWidth  float64
	viewportHeight float64
}

func NewEngine(viewportWidth, viewportHeight float64) *Engine {
	return &Engine{viewportWidth: viewportWidth, viewportHeight: viewportHeight}
}

// Layout computes geometry for the whole styled tree. root is typically the
// document node produced by style.Engine.BuildTree.
func (e *Engine) Layout(root *style.StyledNode) *Tree {
	t := &Tree{
		Viewport: Rect{Width: e.viewportWidth, Height: e.viewportHeight},
		boxes:    make(map[*style.StyledNode]*Box),
	}
	seq := 0
	t.Root = e.layoutNode(t, root, nil, 0, 0, e.viewportWidth, &seq)
	return t
}

// composedChildren returns the children layout flows into: the shadow tree
// for hosts, slot assignments (or fallback) for slots, light children
// otherwise.
func composedChildren(sn *style.StyledNode) []*style.StyledNode {
	if sn.ShadowRoot != nil {
		return sn.ShadowRoot.Children
	}
	if sn.Tag() == "slot" {
		if len(sn.SlotAssignment) > 0 {
			return sn.SlotAssignment
		}
	}
	return sn.Children
}

func (e *Engine) layoutNode(t *Tree, sn *style.StyledNode, parent *Box, x, y, availWidth float64, seq *int) *Box {
	if sn == nil || sn.Node == nil {
		return nil
	}

	switch sn.Node.Type {
	case html.TextNode:
		return e.layoutText(t, sn, parent, x, y, availWidth, seq)
	case html.DocumentNode:
		return e.layoutContainerOnly(t, sn, parent, x, y, availWidth, seq)
	case html.ElementNode:
		// fallthrough below
	default:
		return nil
	}

	if sn.Display() == style.DisplayNone {
		return nil
	}

	margin := e.edges(sn, "margin")
	inset := e.insetEdges(sn) // padding + border

	box := &Box{
		Styled: sn,
		Margin: margin,
		Hidden: !visibilityVisible(sn),
		Parent: parent,
		Seq:    *seq,
	}
	*seq++
	if z, ok := sn.ZIndex(); ok {
		box.ZIndex = z
	} else if parent != nil {
		box.ZIndex = parent.ZIndex
	}
	t.boxes[sn] = box

	switch sn.Position() {
	case style.PositionFixed:
		x = e.length(sn, "left", e.viewportWidth)
		y = e.length(sn, "top", e.viewportHeight)
		availWidth = e.viewportWidth - x
	case style.PositionAbsolute:
		base := t.Viewport
		if parent != nil {
			base = parent.Rect
		}
		x = base.X + e.length(sn, "left", base.Width)
		y = base.Y + e.length(sn, "top", base.Height)
	case style.PositionRelative:
		x += e.length(sn, "left", availWidth)
		y += e.length(sn, "top", 0)
	}

	x += margin.Left
	y += margin.Top

	explicitW, hasW := e.explicitLength(sn, "width", availWidth)
	explicitH, hasH := e.explicitLength(sn, "height", e.viewportHeight)

	contentWidth := availWidth - margin.Left - margin.Right - inset.Left - inset.Right
	if hasW {
		contentWidth = explicitW
	} else if sn.Display() == style.DisplayInlineBlock || sn.Display() == style.DisplayInline {
		// shrink-to-fit, resolved after children are placed
		contentWidth = max(availWidth-margin.Left-margin.Right-inset.Left-inset.Right, 0)
	}
	if contentWidth < 0 {
		contentWidth = 0
	}

	contentX := x + inset.Left
	contentY := y + inset.Top

	usedWidth, usedHeight := e.flowChildren(t, sn, box, contentX, contentY, contentWidth, seq)

	width := contentWidth
	if !hasW && (sn.Display() == style.DisplayInlineBlock || sn.Display() == style.DisplayInline) {
		width = min(usedWidth, contentWidth)
	}
	height := usedHeight
	if hasH {
		height = explicitH
	}

	box.Rect = Rect{
		X:      x,
		Y:      y,
		Width:  width + inset.Left + inset.Right,
		Height: height + inset.Top + inset.Bottom,
	}
	return box
}

// layoutContainerOnly lays out a node that contributes no box of its own
// (the document node): children flow directly at the given origin.
func (e *Engine) layoutContainerOnly(t *Tree, sn *style.StyledNode, parent *Box, x, y, availWidth float64, seq *int) *Box {
	box := &Box{Styled: sn, Parent: parent, Seq: *seq}
	*seq++
	t.boxes[sn] = box
	_, h := e.flowChildren(t, sn, box, x, y, availWidth, seq)
	box.Rect = Rect{X: x, Y: y, Width: availWidth, Height: h}
	return box
}

// flowChildren stacks block children vertically and flows inline children
// into lines. Returns the maximum line advance and total height consumed.
func (e *Engine) flowChildren(t *Tree, sn *style.StyledNode, box *Box, contentX, contentY, contentWidth float64, seq *int) (usedWidth, usedHeight float64) {
	var cursorY, lineX, lineH float64

	flushLine := func() {
		if lineX > 0 || lineH > 0 {
			cursorY += lineH
			if lineX > usedWidth {
				usedWidth = lineX
			}
			lineX, lineH = 0, 0
		}
	}

	for _, child := range composedChildren(sn) {
		if child.Node == nil {
			continue
		}
		if child.Node.Type == html.ElementNode {
			switch child.Position() {
			case style.PositionAbsolute, style.PositionFixed:
				if cb := e.layoutNode(t, child, box, contentX, contentY, contentWidth, seq); cb != nil {
					box.Children = append(box.Children, cb)
				}
				continue
			}
			if child.Display() == style.DisplayNone {
				continue
			}
		}

		isBlock := child.Node.Type == html.ElementNode && child.Display() == style.DisplayBlock
		if isBlock {
			flushLine()
			cb := e.layoutNode(t, child, box, contentX, contentY+cursorY, contentWidth, seq)
			if cb != nil {
				box.Children = append(box.Children, cb)
				cursorY += cb.Rect.Height + cb.Margin.Top + cb.Margin.Bottom
				if cb.Rect.Width > usedWidth {
					usedWidth = cb.Rect.Width
				}
			}
			continue
		}

		// inline flow
		cb := e.layoutNode(t, child, box, contentX+lineX, contentY+cursorY, contentWidth-lineX, seq)
		if cb == nil {
			continue
		}
		advance := cb.Rect.Width + cb.Margin.Left + cb.Margin.Right
		if lineX > 0 && lineX+advance > contentWidth {
			// wrap: move the subtree to the start of the next line
			flushLine()
			reposition(cb, contentX, contentY+cursorY)
		}
		box.Children = append(box.Children, cb)
		lineX += advance
		h := cb.Rect.Height + cb.Margin.Top + cb.Margin.Bottom
		if h > lineH {
			lineH = h
		}
	}
	flushLine()
	return usedWidth, cursorY
}

// reposition moves a freshly laid-out subtree to a new line origin.
func reposition(b *Box, x, y float64) {
	shift(b, x+b.Margin.Left-b.Rect.X, y+b.Margin.Top-b.Rect.Y)
}

func shift(b *Box, dx, dy float64) {
	b.Rect.X += dx
	b.Rect.Y += dy
	for _, c := range b.Children {
		shift(c, dx, dy)
	}
}

func (e *Engine) layoutText(t *Tree, sn *style.StyledNode, parent *Box, x, y, availWidth float64, seq *int) *Box {
	w, h := style.MeasureText(sn)
	if w == 0 && h == 0 {
		return nil
	}
	if availWidth > 0 && w > availWidth {
		// crude wrap estimate: keep the area, clamp the advance
		lines := w/availWidth + 1
		h *= lines
		w = availWidth
	}
	box := &Box{
		Styled: sn,
		Rect:   Rect{X: x, Y: y, Width: w, Height: h},
		Hidden: !visibilityVisible(sn),
		Parent: parent,
		Seq:    *seq,
	}
	if parent != nil {
		box.ZIndex = parent.ZIndex
	}
	*seq++
	t.boxes[sn] = box
	return box
}

func visibilityVisible(sn *style.StyledNode) bool {
	v := sn.Visibility()
	return v != "hidden" && v != "collapse"
}

// -- Length resolution --

func (e *Engine) length(sn *style.StyledNode, prop string, reference float64) float64 {
	raw := sn.Lookup(prop, "")
	if raw == "" {
		return 0
	}
	return style.ParseLengthWithUnits(raw, style.GetFontSize(sn), style.BaseFontSize, reference, e.viewportWidth, e.viewportHeight)
}

func (e *Engine) explicitLength(sn *style.StyledNode, prop string, reference float64) (float64, bool) {
	raw := strings.TrimSpace(sn.Lookup(prop, ""))
	if raw == "" || raw == "auto" {
		return 0, false
	}
	v := style.ParseLengthWithUnits(raw, style.GetFontSize(sn), style.BaseFontSize, reference, e.viewportWidth, e.viewportHeight)
	if v <= 0 {
		return 0, false
	}
	return v, true
}

// edges resolves a 1-4 value shorthand plus any longhand overrides.
func (e *Engine) edges(sn *style.StyledNode, prop string) Edges {
	var out Edges
	if raw := sn.Lookup(prop, ""); raw != "" {
		parts := strings.Fields(raw)
		vals := make([]float64, len(parts))
		for i, p := range parts {
			vals[i] = style.ParseLengthWithUnits(p, style.GetFontSize(sn), style.BaseFontSize, 0, e.viewportWidth, e.viewportHeight)
		}
		switch len(vals) {
		case 1:
			out = Edges{vals[0], vals[0], vals[0], vals[0]}
		case 2:
			out = Edges{vals[0], vals[1], vals[0], vals[1]}
		case 3:
			out = Edges{vals[0], vals[1], vals[2], vals[1]}
		case 4:
			out = Edges{vals[0], vals[1], vals[2], vals[3]}
		}
	}
	for side, target := range map[string]*float64{
		prop + "-top": &out.Top, prop + "-right": &out.Right,
		prop + "-bottom": &out.Bottom, prop + "-left": &out.Left,
	} {
		if raw := sn.Lookup(side, ""); raw != "" {
			*target = style.ParseLengthWithUnits(raw, style.GetFontSize(sn), style.BaseFontSize, 0, e.viewportWidth, e.viewportHeight)
		}
	}
	return out
}

// insetEdges folds border widths into padding; the classifiers never need
// them separated.
func (e *Engine) insetEdges(sn *style.StyledNode) Edges {
	p := e.edges(sn, "padding")
	if sn.Lookup("border-style", "none") != "none" || sn.Lookup("border-width", "") != "" || sn.Lookup("border", "") != "" {
		bw := 1.0
		if raw := sn.Lookup("border-width", ""); raw != "" {
			if v := style.ParseAbsoluteLength(raw); v > 0 {
				bw = v
			}
		}
		p.Top += bw
		p.Right += bw
		p.Bottom += bw
		p.Left += bw
	}
	return p
}

// -- Hit Testing --

// ElementAtPoint returns the topmost element styled node at the point, by
// paint order: higher z-index wins, later document order breaks ties. Hidden
// boxes and text boxes are transparent to hit testing.
func (t *Tree) ElementAtPoint(x, y float64) *style.StyledNode {
	return t.elementAtPointIn(t.Root, x, y)
}

// ElementAtPointWithin restricts the hit test to the subtree rooted at scope,
// mirroring a shadow root's retargeted elementFromPoint. Scope nodes that
// generate no box of their own (shadow boundary containers) are searched
// through their children's boxes.
func (t *Tree) ElementAtPointWithin(scope *style.StyledNode, x, y float64) *style.StyledNode {
	if scope == nil {
		return nil
	}
	if b := t.BoxOf(scope); b != nil {
		return t.elementAtPointIn(b, x, y)
	}
	var best *style.StyledNode
	for _, child := range scope.Children {
		if hit := t.elementAtPointIn(t.BoxOf(child), x, y); hit != nil {
			if best == nil || paintsAbove(t.BoxOf(hit), t.BoxOf(best)) {
				best = hit
			}
		}
	}
	return best
}

func (t *Tree) elementAtPointIn(root *Box, x, y float64) *style.StyledNode {
	if root == nil {
		return nil
	}
	var best *Box
	var walk func(b *Box)
	walk = func(b *Box) {
		if b == nil {
			return
		}
		if isHitTarget(b) && b.Rect.Contains(x, y) {
			if best == nil || paintsAbove(b, best) {
				best = b
			}
		}
		for _, c := range b.Children {
			walk(c)
		}
	}
	walk(root)
	if best == nil {
		return nil
	}
	return best.Styled
}

func isHitTarget(b *Box) bool {
	if b.Hidden || b.Styled == nil || b.Styled.Node == nil {
		return false
	}
	return b.Styled.Node.Type == html.ElementNode
}

func paintsAbove(a, b *Box) bool {
	if a.ZIndex != b.ZIndex {
		return a.ZIndex > b.ZIndex
	}
	return a.Seq > b.Seq
}
