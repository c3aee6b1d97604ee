// internal/browser/dom/visibility.go
package dom

import (
	"strings"

	"github.com/pagescope/pagescope/internal/browser/shadowdom"
	"github.com/pagescope/pagescope/internal/browser/style"
	"golang.org/x/net/html"
)

// VisibilityEvaluator decides whether an element or a text run is actually
// rendered. Element visibility means "occupies rendered layout", not
// "perceptible": opacity:0 and off-screen positions still count as visible.
type VisibilityEvaluator struct {
	// viewportExpansion widens the vertical band text must fall into,
	// in CSS pixels on each side.
	viewportExpansion float64
}

func NewVisibilityEvaluator(viewportExpansion int) *VisibilityEvaluator {
	return &VisibilityEvaluator{viewportExpansion: float64(viewportExpansion)}
}

// IsElementVisible reports whether the element occupies rendered layout:
// positive box dimensions, visibility not hidden, display not none.
func (v *VisibilityEvaluator) IsElementVisible(p *Page, sn *style.StyledNode) bool {
	box := p.Layout.BoxOf(sn)
	if box == nil {
		// display:none subtrees generate no box
		return false
	}
	if box.Rect.Width <= 0 || box.Rect.Height <= 0 {
		return false
	}
	return sn.Visibility() != "hidden" && sn.Display() != style.DisplayNone
}

// IsTextVisible reports whether a text node should appear in the snapshot:
// non-empty after trimming, positive rendered extent, top edge inside the
// viewport band, and an enclosing element that is checkably visible (both
// CSS visibility and opacity affirmative). Text failing any of these is
// omitted from the tree entirely.
func (v *VisibilityEvaluator) IsTextVisible(p *Page, sn *style.StyledNode) bool {
	if sn.Node == nil || sn.Node.Type != html.TextNode {
		return false
	}
	if strings.TrimSpace(sn.Node.Data) == "" {
		return false
	}
	box := p.Layout.BoxOf(sn)
	if box == nil || box.Rect.Width <= 0 || box.Rect.Height <= 0 {
		return false
	}
	if box.Rect.Y < -v.viewportExpansion || box.Rect.Y > p.ViewportHeight+v.viewportExpansion {
		return false
	}
	parent := enclosingElement(sn)
	if parent == nil {
		return false
	}
	if parent.Visibility() == "hidden" {
		return false
	}
	// opacity does not inherit, so any fully transparent ancestor hides the
	// text; visibility already flows down through the style engine
	for cur := parent; cur != nil; cur = enclosingElement(cur) {
		if cur.Opacity() <= 0 {
			return false
		}
	}
	return true
}

// enclosingElement walks up to the nearest real element, skipping synthetic
// shadow boundary containers.
func enclosingElement(sn *style.StyledNode) *style.StyledNode {
	for cur := sn.Parent; cur != nil; cur = cur.Parent {
		if cur.Node == nil || cur.Node.Type != html.ElementNode {
			continue
		}
		if cur.Node.Data == shadowdom.ShadowBoundaryTag {
			continue
		}
		return cur
	}
	return nil
}
