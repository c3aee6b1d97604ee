// internal/browser/dom/xpath.go
package dom

import (
	"strconv"
	"strings"

	"github.com/pagescope/pagescope/internal/browser/shadowdom"
	"github.com/pagescope/pagescope/internal/browser/style"
	"golang.org/x/net/html"
)

// BuildXPath computes the structural path from el up to its nearest traversal
// boundary: a shadow root, an iframe document, or the document root. The
// boundary itself is not part of the path, so the result resolves only within
// its own scope.
//
// Tag names are lower-cased. A positional suffix [n+1] appears only when the
// element has n preceding siblings of the same tag; a first-of-kind element
// carries no suffix at all.
func BuildXPath(el *style.StyledNode) string {
	var segments []string
	for cur := el; cur != nil && cur.Node != nil && cur.Node.Type == html.ElementNode; {
		segments = append(segments, pathSegment(cur))
		parent := cur.Parent
		if isTraversalBoundary(parent) {
			break
		}
		cur = parent
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "/")
}

func pathSegment(sn *style.StyledNode) string {
	tag := sn.Tag()
	preceding := 0
	if sn.Parent != nil {
		for _, sib := range sn.Parent.Children {
			if sib == sn {
				break
			}
			if sib.Node != nil && sib.Node.Type == html.ElementNode && sib.Tag() == tag {
				preceding++
			}
		}
	}
	if preceding > 0 {
		return tag + "[" + strconv.Itoa(preceding+1) + "]"
	}
	return tag
}

// isTraversalBoundary reports whether parent ends the xpath walk: missing,
// the document node, a shadow root, or an iframe element.
func isTraversalBoundary(parent *style.StyledNode) bool {
	if parent == nil || parent.Node == nil {
		return true
	}
	if parent.Node.Type == html.DocumentNode {
		return true
	}
	if parent.Node.Data == shadowdom.ShadowBoundaryTag {
		return true
	}
	return parent.Tag() == "iframe"
}
