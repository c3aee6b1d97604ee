// internal/browser/dom/history.go
package dom

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/pagescope/pagescope/api/schemas"
)

// HistoryElement captures enough of an element record to find the same
// element again in a later snapshot, after highlight indices have shifted.
type HistoryElement struct {
	TagName        string            `json:"tagName"`
	XPath          string            `json:"xpath"`
	HighlightIndex *int              `json:"highlightIndex,omitempty"`
	ParentBranch   []string          `json:"entireParentBranchPath"`
	Attributes     map[string]string `json:"attributes"`
	ShadowRoot     bool              `json:"shadowRoot,omitempty"`
}

// ElementHash is the stable identity of an element across snapshots. Two
// elements are considered the same when all three components match.
type ElementHash struct {
	BranchPathHash string
	AttributesHash string
	XPathHash      string
}

// NewHistoryElement snapshots the matching-relevant parts of a record.
func NewHistoryElement(el *schemas.ElementNode) *HistoryElement {
	if el == nil {
		return nil
	}
	return &HistoryElement{
		TagName:        el.TagName,
		XPath:          el.XPath,
		HighlightIndex: el.HighlightIndex,
		ParentBranch:   parentBranchPath(el),
		Attributes:     el.Attributes,
		ShadowRoot:     el.ShadowRoot,
	}
}

// Hash derives the element's cross-snapshot identity.
func (h *HistoryElement) Hash() ElementHash {
	return ElementHash{
		BranchPathHash: hashBranchPath(h.ParentBranch),
		AttributesHash: hashAttributes(h.Attributes),
		XPathHash:      hashText(h.XPath),
	}
}

// HashElement is the one-step form for live records.
func HashElement(el *schemas.ElementNode) ElementHash {
	return ElementHash{
		BranchPathHash: hashBranchPath(parentBranchPath(el)),
		AttributesHash: hashAttributes(el.Attributes),
		XPathHash:      hashText(el.XPath),
	}
}

// Matches reports whether a live record is the element this history entry
// was taken from.
func (h *HistoryElement) Matches(el *schemas.ElementNode) bool {
	return el != nil && h.Hash() == HashElement(el)
}

// FindInTree locates the history element in a fresh snapshot, or nil when
// the element no longer exists.
func (h *HistoryElement) FindInTree(root *schemas.ElementNode) *schemas.ElementNode {
	if h == nil || root == nil {
		return nil
	}
	want := h.Hash()
	var found *schemas.ElementNode
	var walk func(el *schemas.ElementNode)
	walk = func(el *schemas.ElementNode) {
		if found != nil {
			return
		}
		if HashElement(el) == want {
			found = el
			return
		}
		for _, child := range el.Children {
			if ce, ok := child.(*schemas.ElementNode); ok {
				walk(ce)
			}
		}
	}
	walk(root)
	return found
}

// parentBranchPath collects the tag names from the document root down to the
// element itself.
func parentBranchPath(el *schemas.ElementNode) []string {
	var tags []string
	for cur := el; cur != nil; cur = cur.Parent {
		tags = append(tags, cur.TagName)
	}
	for i, j := 0, len(tags)-1; i < j; i, j = i+1, j-1 {
		tags[i], tags[j] = tags[j], tags[i]
	}
	return tags
}

func hashBranchPath(branch []string) string {
	return hashText(strings.Join(branch, "/"))
}

func hashAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(attrs[k])
	}
	return hashText(sb.String())
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
