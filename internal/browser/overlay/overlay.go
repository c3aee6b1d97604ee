// internal/browser/overlay/overlay.go
package overlay

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pagescope/pagescope/api/schemas"
	"github.com/pagescope/pagescope/internal/browser/style"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	// ContainerID is the fixed identifier of the singleton overlay
	// container. The harness uses it to clear highlights between snapshots.
	ContainerID = "pagescope-highlight-container"

	// HighlightAttr tags each highlighted source element with its index.
	HighlightAttr = "pagescope-highlight-id"
)

// palette cycles per highlight index so adjacent boxes stay tellable apart.
var palette = []string{
	"#FF6B6B", "#4ECDC4", "#FFD93D", "#95E1D3",
	"#A06CD5", "#FF8C42", "#6A8EAE", "#E84855",
}

func colorFor(index int) string {
	return palette[index%len(palette)]
}

// Renderer draws highlight boxes into a parsed document. It owns no state;
// the singleton container lives in the document itself so repeated
// invocations on the same page reuse it.
type Renderer struct {
	log *zap.Logger
}

func NewRenderer(log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{log: log}
}

// Apply ensures the overlay container exists, appends one bordered box and
// one numbered label per draw operation, and tags each source element with
// its highlight index. Box coordinates are already corrected into
// top-document space by the snapshot builder.
func (r *Renderer) Apply(doc *html.Node, boxes []schemas.HighlightBox, targets map[int]*style.StyledNode) {
	if doc == nil || len(boxes) == 0 {
		return
	}
	container := r.ensureContainer(doc)
	if container == nil {
		r.log.Warn("document has no root element, overlay skipped")
		return
	}

	for _, box := range boxes {
		color := colorFor(box.Index)
		appendElement(container, "div", map[string]string{
			"style": fmt.Sprintf(
				"position:absolute;box-sizing:border-box;border:2px solid %s;left:%.2fpx;top:%.2fpx;width:%.2fpx;height:%.2fpx;",
				color, box.Left, box.Top, box.Width, box.Height),
		})

		labelTop := box.Top - 18
		if labelTop < 0 {
			labelTop = 0
		}
		label := appendElement(container, "div", map[string]string{
			"style": fmt.Sprintf(
				"position:absolute;background:%s;color:#fff;font-size:12px;padding:0 4px;left:%.2fpx;top:%.2fpx;",
				color, box.Left, labelTop),
		})
		label.AppendChild(&html.Node{Type: html.TextNode, Data: fmt.Sprintf("%d", box.Index)})

		if target := targets[box.Index]; target != nil && target.Node != nil {
			setAttr(target.Node, HighlightAttr, fmt.Sprintf("%d", box.Index))
		}
	}
}

// Remove deletes the overlay container and strips the tagging attributes,
// returning the document to its pre-highlight state.
func (r *Renderer) Remove(doc *html.Node) {
	if doc == nil {
		return
	}
	if container := findByID(doc, ContainerID); container != nil && container.Parent != nil {
		container.Parent.RemoveChild(container)
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			removeAttr(n, HighlightAttr)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

// ensureContainer finds or creates the singleton overlay container on the
// document's root element.
func (r *Renderer) ensureContainer(doc *html.Node) *html.Node {
	if existing := findByID(doc, ContainerID); existing != nil {
		return existing
	}
	root := rootElement(doc)
	if root == nil {
		return nil
	}
	container := appendElement(root, "div", map[string]string{
		"id": ContainerID,
		"style": "position:fixed;pointer-events:none;top:0;left:0;" +
			"width:100%;height:100%;z-index:2147483647;",
	})
	return container
}

// -- Live-session script generation --

// ApplyScript renders the JavaScript a live browser session evaluates to
// draw the same overlay in a real page. The draw operations are embedded as
// JSON; the script is idempotent per container.
func ApplyScript(boxes []schemas.HighlightBox) (string, error) {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(boxes)
	if err != nil {
		return "", fmt.Errorf("encoding highlight boxes: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(`(() => {
  const boxes = `)
	sb.Write(payload)
	sb.WriteString(`;
  const palette = ` + paletteJSON() + `;
  let container = document.getElementById("` + ContainerID + `");
  if (!container) {
    container = document.createElement("div");
    container.id = "` + ContainerID + `";
    container.style.cssText = "position:fixed;pointer-events:none;top:0;left:0;width:100%;height:100%;z-index:2147483647;";
    document.documentElement.appendChild(container);
  }
  for (const box of boxes) {
    const color = palette[box.index % palette.length];
    const frame = document.createElement("div");
    frame.style.cssText = "position:absolute;box-sizing:border-box;border:2px solid " + color +
      ";left:" + box.left + "px;top:" + box.top + "px;width:" + box.width + "px;height:" + box.height + "px;";
    container.appendChild(frame);
    const label = document.createElement("div");
    label.textContent = String(box.index);
    label.style.cssText = "position:absolute;background:" + color +
      ";color:#fff;font-size:12px;padding:0 4px;left:" + box.left + "px;top:" + Math.max(0, box.top - 18) + "px;";
    container.appendChild(label);
  }
  return boxes.length;
})()`)
	return sb.String(), nil
}

// RemoveScript clears the overlay container and the tagging attributes in a
// live page.
func RemoveScript() string {
	return `(() => {
  const container = document.getElementById("` + ContainerID + `");
  if (container) container.remove();
  for (const el of document.querySelectorAll("[` + HighlightAttr + `]")) {
    el.removeAttribute("` + HighlightAttr + `");
  }
})()`
}

func paletteJSON() string {
	quoted := make([]string, len(palette))
	for i, c := range palette {
		quoted[i] = `"` + c + `"`
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

// -- DOM helpers --

func appendElement(parent *html.Node, tag string, attrs map[string]string) *html.Node {
	el := &html.Node{Type: html.ElementNode, Data: tag}
	for k, v := range attrs {
		el.Attr = append(el.Attr, html.Attribute{Key: k, Val: v})
	}
	parent.AppendChild(el)
	return el
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func findByID(doc *html.Node, id string) *html.Node {
	var find func(n *html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == id {
					return n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}
	return find(doc)
}

func rootElement(doc *html.Node) *html.Node {
	if doc.Type == html.ElementNode {
		return doc
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}
