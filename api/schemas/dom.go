package schemas

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TextNodeType is the discriminator carried by serialized text records.
// Element records carry no discriminator; consumers detect them by the
// presence of "tagName".
const TextNodeType = "TEXT_NODE"

// Node is a single record in a snapshot tree: either an *ElementNode or a
// *TextNode. The concrete types are the full contract; nothing else
// implements this interface.
type Node interface {
	isNode()
}

// ElementNode is the structured projection of one DOM element at the
// instant of traversal.
type ElementNode struct {
	TagName       string            `json:"tagName"`
	XPath         string            `json:"xpath"`
	Attributes    map[string]string `json:"attributes"`
	Children      []Node            `json:"children"`
	IsVisible     bool              `json:"isVisible"`
	IsInteractive bool              `json:"isInteractive"`
	IsTopElement  bool              `json:"isTopElement"`

	// HighlightIndex is present only when the element qualified for
	// highlighting (visible, interactive, and topmost at its center).
	HighlightIndex *int `json:"highlightIndex,omitempty"`

	// ShadowRoot is set when the element hosts a shadow root.
	ShadowRoot bool `json:"shadowRoot,omitempty"`

	// Parent links the tree upward for history hashing and text
	// aggregation. Never serialized; the wire shape is strictly a tree.
	Parent *ElementNode `json:"-"`
}

// TextNode is the projection of a rendered, non-empty text run. Invisible
// or empty text is omitted from the tree entirely, so IsVisible is always
// true on records that exist.
type TextNode struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	IsVisible bool   `json:"isVisible"`
}

func (*ElementNode) isNode() {}
func (*TextNode) isNode()    {}

// NewTextNode builds a visible text record. The caller is responsible for
// trimming and for omitting empty or invisible text.
func NewTextNode(text string) *TextNode {
	return &TextNode{Type: TextNodeType, Text: text, IsVisible: true}
}

// UnmarshalJSON decodes the wire shape back into the typed tree. Children are
// discriminated by the "type" field: text records carry TextNodeType,
// everything else is an element. Parent links are rebuilt on the way up.
func (e *ElementNode) UnmarshalJSON(data []byte) error {
	type elementFields ElementNode
	aux := struct {
		*elementFields
		Children []jsoniter.RawMessage `json:"children"`
	}{elementFields: (*elementFields)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Children) == 0 {
		e.Children = nil
		return nil
	}
	e.Children = make([]Node, 0, len(aux.Children))
	for _, raw := range aux.Children {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return err
		}
		if probe.Type == TextNodeType {
			var tn TextNode
			if err := json.Unmarshal(raw, &tn); err != nil {
				return err
			}
			e.Children = append(e.Children, &tn)
			continue
		}
		var ce ElementNode
		if err := json.Unmarshal(raw, &ce); err != nil {
			return err
		}
		ce.Parent = e
		e.Children = append(e.Children, &ce)
	}
	return nil
}

// SelectorMap indexes highlighted elements by their highlight index, the
// handle an agent uses to act on an element.
type SelectorMap map[int]*ElementNode

// BuildSelectorMap walks a snapshot tree and collects every element that
// received a highlight index.
func BuildSelectorMap(root *ElementNode) SelectorMap {
	m := make(SelectorMap)
	if root == nil {
		return m
	}
	var walk func(el *ElementNode)
	walk = func(el *ElementNode) {
		if el.HighlightIndex != nil {
			m[*el.HighlightIndex] = el
		}
		for _, child := range el.Children {
			if ce, ok := child.(*ElementNode); ok {
				walk(ce)
			}
		}
	}
	walk(root)
	return m
}

// AllText aggregates the visible text of a subtree, stopping descent at any
// nested element that is itself highlighted. The result describes what a
// click on this element acts upon, without swallowing nested targets.
func (e *ElementNode) AllText() string {
	var parts []string
	var walk func(n Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *TextNode:
			parts = append(parts, v.Text)
		case *ElementNode:
			if v != e && v.HighlightIndex != nil {
				return
			}
			for _, child := range v.Children {
				walk(child)
			}
		}
	}
	walk(e)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ClickableElementsToString renders the highlighted elements of a tree as
// the compact line format consumed by agent prompts:
//
//	12[:]<button aria-label="Search">Search</button>
//
// includeAttributes selects which attributes are inlined; nil includes none.
func ClickableElementsToString(root *ElementNode, includeAttributes []string) string {
	if root == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(el *ElementNode)
	walk = func(el *ElementNode) {
		if el.HighlightIndex != nil {
			attrs := formatAttributes(el.Attributes, includeAttributes)
			text := el.AllText()
			fmt.Fprintf(&sb, "%d[:]<%s%s>%s</%s>\n", *el.HighlightIndex, el.TagName, attrs, text, el.TagName)
		}
		for _, child := range el.Children {
			if ce, ok := child.(*ElementNode); ok {
				walk(ce)
			}
		}
	}
	walk(root)
	return strings.TrimRight(sb.String(), "\n")
}

func formatAttributes(attrs map[string]string, include []string) string {
	if len(include) == 0 || len(attrs) == 0 {
		return ""
	}
	selected := make([]string, 0, len(include))
	for _, name := range include {
		if val, ok := attrs[name]; ok && val != "" {
			selected = append(selected, fmt.Sprintf("%s=%q", name, val))
		}
	}
	if len(selected) == 0 {
		return ""
	}
	sort.Strings(selected)
	return " " + strings.Join(selected, " ")
}

// HighlightBox is one draw operation for the overlay renderer: the corrected
// main-document rectangle for a highlighted element. Coordinates are in CSS
// pixels relative to the top-level viewport.
type HighlightBox struct {
	Index  int     `json:"index"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
