// internal/browser/dom/builder.go
package dom

import (
	"strings"

	"github.com/pagescope/pagescope/api/schemas"
	"github.com/pagescope/pagescope/internal/browser/style"
	"github.com/pagescope/pagescope/internal/config"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Builder orchestrates a snapshot: it walks a page's styled tree across
// shadow and frame boundaries, applies the classifiers to every element, and
// assembles the output tree together with the overlay draw operations.
// A Builder is stateless across calls; all traversal state lives on the call
// stack of one Build.
type Builder struct {
	cfg           config.SnapshotConfig
	visibility    *VisibilityEvaluator
	interactivity *InteractivityEvaluator
	occlusion     *OcclusionTester
	log           *zap.Logger
}

// NewBuilder wires the evaluators from the snapshot configuration. inspector
// may be nil, in which case the attribute fallback inspects listeners.
func NewBuilder(cfg config.SnapshotConfig, inspector ListenerInspector, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		cfg:           cfg,
		visibility:    NewVisibilityEvaluator(cfg.ViewportExpansion),
		interactivity: NewInteractivityEvaluator(cfg, inspector),
		occlusion:     NewOcclusionTester(cfg.AssumeTopOnHitTestFailure, log),
		log:           log,
	}
}

// Snapshot is the result of one traversal. Root is nil only when the page
// has no body. Highlights holds one draw operation per highlighted element,
// in assignment order, already corrected into top-document coordinates; it
// is empty when highlighting is disabled, but index assignment is identical
// either way.
type Snapshot struct {
	Root        *schemas.ElementNode
	SelectorMap schemas.SelectorMap
	Highlights  []schemas.HighlightBox

	// Targets maps highlight indices to the source nodes behind them, for
	// the overlay renderer's element tagging. Never serialized.
	Targets map[int]*style.StyledNode
}

// frameContext carries the coordinate state of the document currently being
// walked: the page itself, the immediate enclosing iframe element (nil in
// the top document) and the accumulated offset into top-document
// coordinates. One level of correction is added per frame crossing, so the
// offsets compose across arbitrary nesting.
type frameContext struct {
	page    *Page
	iframe  *style.StyledNode
	offsetX float64
	offsetY float64
}

// run is the per-invocation traversal state: the shared highlight counter
// and the accumulated draw list.
type run struct {
	b          *Builder
	next       int
	highlights []schemas.HighlightBox
	targets    map[int]*style.StyledNode
}

// Build produces a snapshot of the page. The entry point is the document
// body; a page without one yields a snapshot with a nil root.
func (b *Builder) Build(page *Page) *Snapshot {
	snap := &Snapshot{SelectorMap: make(schemas.SelectorMap)}
	if page == nil || page.Body == nil {
		return snap
	}
	r := &run{b: b, targets: make(map[int]*style.StyledNode)}
	if node := r.build(page.Body, frameContext{page: page}, nil); node != nil {
		snap.Root, _ = node.(*schemas.ElementNode)
	}
	snap.SelectorMap = schemas.BuildSelectorMap(snap.Root)
	snap.Highlights = r.highlights
	snap.Targets = r.targets
	return snap
}

func (r *run) build(sn *style.StyledNode, ctx frameContext, parent *schemas.ElementNode) schemas.Node {
	if sn == nil || sn.Node == nil {
		return nil
	}

	if sn.Node.Type == html.TextNode {
		if !r.b.visibility.IsTextVisible(ctx.page, sn) {
			return nil
		}
		return schemas.NewTextNode(strings.TrimSpace(sn.Node.Data))
	}
	if sn.Node.Type != html.ElementNode {
		return nil
	}

	tag := sn.Tag()
	if !Accepted(tag) {
		return nil
	}

	record := &schemas.ElementNode{
		TagName:    tag,
		XPath:      BuildXPath(sn),
		Attributes: copyAttributes(sn.Node),
		Parent:     parent,
		ShadowRoot: sn.ShadowRoot != nil,
	}
	record.IsVisible = r.b.visibility.IsElementVisible(ctx.page, sn)
	record.IsInteractive = r.b.interactivity.IsInteractive(sn)
	record.IsTopElement = r.b.occlusion.IsTopElement(ctx.page, sn, ctx.iframe != nil)

	if record.IsVisible && record.IsInteractive && record.IsTopElement {
		idx := r.next
		r.next++
		record.HighlightIndex = &idx
		r.targets[idx] = sn
		if r.b.cfg.DoHighlightElements {
			rect := ctx.page.Layout.RectOf(sn)
			r.highlights = append(r.highlights, schemas.HighlightBox{
				Index:  idx,
				Left:   rect.X + ctx.offsetX,
				Top:    rect.Y + ctx.offsetY,
				Width:  rect.Width,
				Height: rect.Height,
			})
		}
	}

	// shadow content first, in the same frame context
	if sn.ShadowRoot != nil {
		for _, child := range sn.ShadowRoot.Children {
			if childNode := r.build(child, ctx, record); childNode != nil {
				record.Children = append(record.Children, childNode)
			}
		}
	}

	if tag == "iframe" {
		r.buildFrame(sn, ctx, record)
		return record
	}

	for _, child := range sn.Children {
		if childNode := r.build(child, ctx, record); childNode != nil {
			record.Children = append(record.Children, childNode)
		}
	}
	return record
}

// buildFrame descends into an iframe's document. The frame's own rectangle
// becomes the coordinate correction for everything inside it; inaccessible
// frames leave the iframe element childless.
func (r *run) buildFrame(iframe *style.StyledNode, ctx frameContext, record *schemas.ElementNode) {
	child := ctx.page.Frames[iframe]
	if child == nil {
		if hasFrameSource(iframe) {
			r.b.log.Warn("skipping inaccessible iframe subtree",
				zap.String("src", attrOr(iframe, "src", "")),
				zap.String("xpath", record.XPath))
		}
		return
	}
	if child.Body == nil {
		return
	}
	rect := ctx.page.Layout.RectOf(iframe)
	frameCtx := frameContext{
		page:    child,
		iframe:  iframe,
		offsetX: ctx.offsetX + rect.X,
		offsetY: ctx.offsetY + rect.Y,
	}
	for _, bodyChild := range child.Body.Children {
		if childNode := r.build(bodyChild, frameCtx, record); childNode != nil {
			record.Children = append(record.Children, childNode)
		}
	}
}

func hasFrameSource(iframe *style.StyledNode) bool {
	if _, ok := iframe.Attr("srcdoc"); ok {
		return true
	}
	src, ok := iframe.Attr("src")
	return ok && strings.TrimSpace(src) != ""
}

func copyAttributes(node *html.Node) map[string]string {
	attrs := make(map[string]string, len(node.Attr))
	for _, a := range node.Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}
