// internal/browser/dom/page.go
package dom

import (
	"fmt"
	"strings"

	"github.com/pagescope/pagescope/internal/browser/layout"
	"github.com/pagescope/pagescope/internal/browser/parser"
	"github.com/pagescope/pagescope/internal/browser/shadowdom"
	"github.com/pagescope/pagescope/internal/browser/style"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// maxFrameDepth bounds iframe nesting so a self-referencing frame cannot
// recurse forever.
const maxFrameDepth = 8

// FrameResolver fetches the document of a src-addressed iframe. Returning an
// error marks the frame inaccessible, which mirrors a cross-origin denial:
// the frame element stays in the snapshot with no children.
type FrameResolver interface {
	Resolve(src string) (string, error)
}

// FrameResolverFunc adapts a function to the FrameResolver interface.
type FrameResolverFunc func(src string) (string, error)

func (f FrameResolverFunc) Resolve(src string) (string, error) { return f(src) }

// Page is one fully processed document: styled tree, layout geometry and the
// documents of its accessible child frames. Frames are keyed by the iframe's
// styled node in this page's own tree.
type Page struct {
	Styled *style.StyledNode
	Layout *layout.Tree
	Body   *style.StyledNode
	Frames map[*style.StyledNode]*Page

	ViewportWidth  float64
	ViewportHeight float64
}

// LoadOptions configures page processing.
type LoadOptions struct {
	ViewportWidth  float64
	ViewportHeight float64

	// Resolver fetches src-addressed iframe documents. Without one, only
	// srcdoc frames are accessible.
	Resolver FrameResolver

	Logger *zap.Logger
}

// LoadPage parses an HTML document, computes styles and layout, and resolves
// accessible child frames recursively. Inaccessible frames are logged and
// skipped; they never fail the load.
func LoadPage(src string, opts LoadOptions) (*Page, error) {
	return loadPage(src, opts, 0)
}

func loadPage(src string, opts LoadOptions, depth int) (*Page, error) {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 720
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	styleEngine := style.NewEngine(shadowdom.NewEngine())
	styleEngine.SetViewport(opts.ViewportWidth, opts.ViewportHeight)
	for _, sheet := range collectAuthorSheets(doc) {
		styleEngine.AddAuthorSheet(sheet)
	}

	styled := styleEngine.BuildTree(doc, nil)
	tree := layout.NewEngine(opts.ViewportWidth, opts.ViewportHeight).Layout(styled)

	p := &Page{
		Styled:         styled,
		Layout:         tree,
		Body:           findBody(styled),
		Frames:         make(map[*style.StyledNode]*Page),
		ViewportWidth:  opts.ViewportWidth,
		ViewportHeight: opts.ViewportHeight,
	}
	p.resolveFrames(opts, log, depth)
	return p, nil
}

// resolveFrames loads the document of every accessible iframe in the page,
// including iframes inside shadow trees.
func (p *Page) resolveFrames(opts LoadOptions, log *zap.Logger, depth int) {
	if depth >= maxFrameDepth {
		log.Warn("frame nesting limit reached, deeper frames skipped",
			zap.Int("depth", depth))
		return
	}

	var walk func(sn *style.StyledNode)
	walk = func(sn *style.StyledNode) {
		if sn == nil {
			return
		}
		if sn.Tag() == "iframe" {
			p.loadFrame(sn, opts, log, depth)
		}
		for _, c := range sn.Children {
			walk(c)
		}
		if sn.ShadowRoot != nil {
			walk(sn.ShadowRoot)
		}
	}
	walk(p.Styled)
}

func (p *Page) loadFrame(iframe *style.StyledNode, opts LoadOptions, log *zap.Logger, depth int) {
	content, err := frameContent(iframe, opts.Resolver)
	if err != nil {
		log.Warn("iframe content inaccessible, subtree skipped",
			zap.String("src", attrOr(iframe, "src", "")),
			zap.Error(err))
		return
	}
	if content == "" {
		return
	}

	rect := p.Layout.RectOf(iframe)
	childOpts := LoadOptions{
		ViewportWidth:  rect.Width,
		ViewportHeight: rect.Height,
		Resolver:       opts.Resolver,
		Logger:         opts.Logger,
	}
	child, err := loadPage(content, childOpts, depth+1)
	if err != nil {
		log.Warn("iframe document failed to parse, subtree skipped",
			zap.String("src", attrOr(iframe, "src", "")),
			zap.Error(err))
		return
	}
	p.Frames[iframe] = child
}

// frameContent returns the HTML of an iframe's document: inline srcdoc when
// present, otherwise the resolver's answer for src. An empty result means the
// frame has no document at all, which is not an error.
func frameContent(iframe *style.StyledNode, resolver FrameResolver) (string, error) {
	if srcdoc, ok := iframe.Attr("srcdoc"); ok {
		return srcdoc, nil
	}
	src, ok := iframe.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", nil
	}
	if resolver == nil {
		return "", fmt.Errorf("no frame resolver for src %q", src)
	}
	return resolver.Resolve(src)
}

// collectAuthorSheets extracts every active <style> element of the document.
// Styles inside templates stay inert; they activate only when their shadow
// root is instantiated.
func collectAuthorSheets(doc *html.Node) []parser.StyleSheet {
	var sheets []parser.StyleSheet
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch strings.ToLower(c.Data) {
			case "style":
				sheets = append(sheets, parser.NewParser(textContent(c)).Parse())
			case "template":
				// inert
			default:
				walk(c)
			}
		}
	}
	walk(doc)
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

func findBody(styled *style.StyledNode) *style.StyledNode {
	if styled == nil {
		return nil
	}
	if styled.Tag() == "body" {
		return styled
	}
	for _, c := range styled.Children {
		if found := findBody(c); found != nil {
			return found
		}
	}
	return nil
}

func attrOr(sn *style.StyledNode, name, fallback string) string {
	if v, ok := sn.Attr(name); ok {
		return v
	}
	return fallback
}
