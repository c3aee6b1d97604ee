// internal/browser/shadowdom/shadow.go
package shadowdom

import (
	"strings"

	"github.com/pagescope/pagescope/internal/browser/parser"
	"github.com/pagescope/pagescope/internal/browser/style"
	"golang.org/x/net/html"
)

// ShadowBoundaryTag is the synthetic element standing in for an instantiated
// shadow root. XPath generation and hit-test scoping treat it as a hard
// boundary.
const ShadowBoundaryTag = "shadow-root-boundary"

// Engine implements declarative shadow DOM: detection of
// <template shadowrootmode> hosts, instantiation of their content, per-root
// style extraction and slot projection. It satisfies style.ShadowDOMProcessor.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// DetectShadowHost reports whether node carries a first-level declarative
// shadow template. Templates nested deeper do not make this node a host.
func (e *Engine) DetectShadowHost(node *html.Node) bool {
	return findShadowTemplate(node) != nil
}

// InstantiateShadowRoot clones the shadow template's content under a
// synthetic boundary node and extracts the root's <style> sheets. Style tags
// inside nested templates stay inert. Returns (nil, nil) when node is not a
// host.
func (e *Engine) InstantiateShadowRoot(host *html.Node) (*html.Node, []parser.StyleSheet) {
	tpl := findShadowTemplate(host)
	if tpl == nil {
		return nil, nil
	}

	boundary := &html.Node{
		Type: html.ElementNode,
		Data: ShadowBoundaryTag,
	}
	for c := tpl.FirstChild; c != nil; c = c.NextSibling {
		appendChild(boundary, cloneNode(c))
	}

	sheets := extractStyles(boundary)
	return boundary, sheets
}

// AssignSlots projects the host's light children into the slots of its shadow
// tree. Named content goes to the first slot with a matching name; everything
// else (elements without a slot attribute and non-empty text) goes to the
// first unnamed slot. Content naming a slot that does not exist is dropped,
// as are the shadow templates themselves.
func (e *Engine) AssignSlots(host *style.StyledNode) {
	if host == nil || host.ShadowRoot == nil {
		return
	}

	named := make(map[string]*style.StyledNode)
	var defaultSlot *style.StyledNode
	var collect func(sn *style.StyledNode)
	collect = func(sn *style.StyledNode) {
		if sn == nil {
			return
		}
		if sn.Node != nil && sn.Node.Type == html.ElementNode && strings.ToLower(sn.Node.Data) == "slot" {
			name := getAttr(sn.Node, "name")
			if name == "" {
				if defaultSlot == nil {
					defaultSlot = sn
				}
			} else if _, taken := named[name]; !taken {
				named[name] = sn
			}
		}
		for _, c := range sn.Children {
			collect(c)
		}
	}
	collect(host.ShadowRoot)

	for _, child := range host.Children {
		node := child.Node
		if node == nil {
			continue
		}
		switch node.Type {
		case html.ElementNode:
			if strings.ToLower(node.Data) == "template" && getAttr(node, "shadowrootmode") != "" {
				continue
			}
			if slotName := getAttr(node, "slot"); slotName != "" {
				if s, ok := named[slotName]; ok {
					s.SlotAssignment = append(s.SlotAssignment, child)
				}
				continue
			}
			if defaultSlot != nil {
				defaultSlot.SlotAssignment = append(defaultSlot.SlotAssignment, child)
			}
		case html.TextNode:
			if strings.TrimSpace(node.Data) != "" && defaultSlot != nil {
				defaultSlot.SlotAssignment = append(defaultSlot.SlotAssignment, child)
			}
		}
	}
}

// findShadowTemplate returns the first-level declarative shadow template of
// node, or nil.
func findShadowTemplate(node *html.Node) *html.Node {
	if node == nil || node.Type != html.ElementNode {
		return nil
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || strings.ToLower(c.Data) != "template" {
			continue
		}
		mode := strings.ToLower(getAttr(c, "shadowrootmode"))
		if mode == "open" || mode == "closed" {
			return c
		}
	}
	return nil
}

// extractStyles removes <style> elements under root and parses their text as
// stylesheets scoped to this shadow root. Nested templates are not descended
// into; their styles activate only if that template is itself instantiated.
func extractStyles(root *html.Node) []parser.StyleSheet {
	var sheets []parser.StyleSheet
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		c := n.FirstChild
		for c != nil {
			next := c.NextSibling
			if c.Type == html.ElementNode {
				switch strings.ToLower(c.Data) {
				case "style":
					sheets = append(sheets, parser.NewParser(textContent(c)).Parse())
					n.RemoveChild(c)
				case "template":
					// inert
				default:
					walk(c)
				}
			}
			c = next
		}
	}
	walk(root)
	return sheets
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// getAttr returns an attribute value by case-insensitive key, or "".
func getAttr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// cloneNode deep-copies a node subtree without carrying over parent or
// sibling links.
func cloneNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]html.Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendChild(clone, cloneNode(c))
	}
	return clone
}

func appendChild(parent, child *html.Node) {
	if child == nil {
		return
	}
	child.Parent = parent
	child.PrevSibling = parent.LastChild
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = child
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child
}
