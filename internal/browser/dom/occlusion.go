// internal/browser/dom/occlusion.go
package dom

import (
	"github.com/pagescope/pagescope/internal/browser/shadowdom"
	"github.com/pagescope/pagescope/internal/browser/style"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// OcclusionTester decides whether an element is the topmost hit at its visual
// center. Elements inside an iframe are trusted as top unconditionally: hit
// testing cannot cross the frame boundary from inside, so an overlay placed
// by the parent page above the frame goes undetected. Known limitation.
type OcclusionTester struct {
	assumeTopOnFailure bool
	log                *zap.Logger
}

func NewOcclusionTester(assumeTopOnFailure bool, log *zap.Logger) *OcclusionTester {
	if log == nil {
		log = zap.NewNop()
	}
	return &OcclusionTester{assumeTopOnFailure: assumeTopOnFailure, log: log}
}

// IsTopElement hit-tests the element's center against its own hit-testing
// scope: the enclosing shadow root when there is one, the main document
// otherwise. Any failure during the test resolves to the configured
// fail-open policy; dropping a genuinely interactive element is worse than
// the occasional false positive.
func (o *OcclusionTester) IsTopElement(p *Page, sn *style.StyledNode, insideIframe bool) (top bool) {
	if insideIframe {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Debug("hit test failed, applying fail-open policy",
				zap.Any("cause", r),
				zap.String("tag", sn.Tag()))
			top = o.assumeTopOnFailure
		}
	}()

	box := p.Layout.BoxOf(sn)
	if box == nil || box.Rect.Width <= 0 || box.Rect.Height <= 0 {
		return o.assumeTopOnFailure
	}
	cx, cy := box.Rect.Center()

	if boundary := enclosingShadowBoundary(sn); boundary != nil {
		hit := p.Layout.ElementAtPointWithin(boundary, cx, cy)
		if hit == nil {
			// the shadow scope could not resolve a hit; trust the element
			return true
		}
		return chainContains(hit, sn, boundary)
	}

	hit := p.Layout.ElementAtPoint(cx, cy)
	if hit == nil {
		return false
	}
	return chainContains(hit, sn, nil)
}

// chainContains walks from hit up the parent chain, bounded by limit when
// non-nil, looking for identity with target.
func chainContains(hit, target, limit *style.StyledNode) bool {
	for cur := hit; cur != nil; cur = cur.Parent {
		if cur == target {
			return true
		}
		if limit != nil && cur == limit {
			return false
		}
	}
	return false
}

// enclosingShadowBoundary returns the synthetic shadow root container the
// element lives under, or nil for main-document elements.
func enclosingShadowBoundary(sn *style.StyledNode) *style.StyledNode {
	for cur := sn.Parent; cur != nil; cur = cur.Parent {
		if cur.Node != nil && cur.Node.Type == html.ElementNode && cur.Node.Data == shadowdom.ShadowBoundaryTag {
			return cur
		}
	}
	return nil
}
