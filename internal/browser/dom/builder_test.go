// internal/browser/dom/builder_test.go
package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pagescope/pagescope/api/schemas"
	"github.com/pagescope/pagescope/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadFixture(t *testing.T, src string) *Page {
	t.Helper()
	p, err := LoadPage(src, LoadOptions{Logger: zap.NewNop()})
	require.NoError(t, err)
	return p
}

func snapCfg() config.SnapshotConfig {
	return config.NewDefaultConfig().Snapshot()
}

func buildSnapshot(t *testing.T, src string) *Snapshot {
	t.Helper()
	return NewBuilder(snapCfg(), nil, zap.NewNop()).Build(loadFixture(t, src))
}

// findRecord locates the first element record carrying the given id, in
// document pre-order.
func findRecord(root *schemas.ElementNode, id string) *schemas.ElementNode {
	if root == nil {
		return nil
	}
	if root.Attributes["id"] == id {
		return root
	}
	for _, child := range root.Children {
		if ce, ok := child.(*schemas.ElementNode); ok {
			if found := findRecord(ce, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// collectIndices gathers assigned highlight indices in pre-order visit order.
func collectIndices(root *schemas.ElementNode) []int {
	var out []int
	var walk func(el *schemas.ElementNode)
	walk = func(el *schemas.ElementNode) {
		if el.HighlightIndex != nil {
			out = append(out, *el.HighlightIndex)
		}
		for _, child := range el.Children {
			if ce, ok := child.(*schemas.ElementNode); ok {
				walk(ce)
			}
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func forEachRecord(root *schemas.ElementNode, fn func(*schemas.ElementNode)) {
	if root == nil {
		return
	}
	fn(root)
	for _, child := range root.Children {
		if ce, ok := child.(*schemas.ElementNode); ok {
			forEachRecord(ce, fn)
		}
	}
}

const basicFixture = `<html><body>
	<a id="link" href="/home">Home</a>
	<button id="btn">Go</button>
	<div id="plain">Just text</div>
	<svg id="vector"><circle onclick="boom()"></circle></svg>
	<script>var x = 1;</script>
</body></html>`

func TestSnapshotBasics(t *testing.T) {
	snap := buildSnapshot(t, basicFixture)

	require.NotNil(t, snap.Root)
	assert.Equal(t, "body", snap.Root.TagName)
	assert.Equal(t, "html/body", snap.Root.XPath)

	link := findRecord(snap.Root, "link")
	require.NotNil(t, link)
	assert.True(t, link.IsVisible)
	assert.True(t, link.IsInteractive)
	assert.True(t, link.IsTopElement)
	require.NotNil(t, link.HighlightIndex)
	assert.Equal(t, 0, *link.HighlightIndex)
	assert.Equal(t, "/home", link.Attributes["href"])

	btn := findRecord(snap.Root, "btn")
	require.NotNil(t, btn)
	require.NotNil(t, btn.HighlightIndex)
	assert.Equal(t, 1, *btn.HighlightIndex)

	plain := findRecord(snap.Root, "plain")
	require.NotNil(t, plain)
	assert.True(t, plain.IsVisible)
	assert.False(t, plain.IsInteractive)
	assert.Nil(t, plain.HighlightIndex)
}

func TestRejectedSubtreesAreAbsent(t *testing.T) {
	snap := buildSnapshot(t, basicFixture)

	assert.Nil(t, findRecord(snap.Root, "vector"), "denied tags never appear")
	forEachRecord(snap.Root, func(el *schemas.ElementNode) {
		assert.NotEqual(t, "svg", el.TagName)
		assert.NotEqual(t, "circle", el.TagName, "descendants of a denied tag are never visited")
		assert.NotEqual(t, "script", el.TagName)
	})
}

func TestHighlightIndexInvariant(t *testing.T) {
	snap := buildSnapshot(t, `<html><body>
		<button id="first">A</button>
		<div><a id="second" href="/">B</a></div>
		<button id="unseen" style="display:none">C</button>
		<div id="inert">plain</div>
		<button id="third">D</button>
	</body></html>`)

	forEachRecord(snap.Root, func(el *schemas.ElementNode) {
		qualified := el.IsVisible && el.IsInteractive && el.IsTopElement
		assert.Equal(t, qualified, el.HighlightIndex != nil,
			"highlight presence must track the three flags on <%s id=%q>", el.TagName, el.Attributes["id"])
	})

	indices := collectIndices(snap.Root)
	require.NotEmpty(t, indices)
	for i, idx := range indices {
		assert.Equal(t, i, idx, "indices are dense and assigned in pre-order")
	}
}

func TestTextNodeOmission(t *testing.T) {
	snap := buildSnapshot(t, `<html><body>
		<div id="good">kept</div>
		<div id="veiled" style="visibility: hidden">unseen</div>
		<div id="faded" style="opacity: 0">faded out</div>
		<div style="opacity: 0"><span id="nestedfade">behind a clear ancestor</span></div>
		<div id="empty">   </div>
		<div id="far" style="position:absolute; top:5000px">below the fold</div>
	</body></html>`)

	good := findRecord(snap.Root, "good")
	require.NotNil(t, good)
	require.Len(t, good.Children, 1)
	text, ok := good.Children[0].(*schemas.TextNode)
	require.True(t, ok)
	assert.Equal(t, "kept", text.Text)
	assert.True(t, text.IsVisible)

	// omitted text is absent, never present with isVisible false
	assert.Empty(t, findRecord(snap.Root, "veiled").Children)
	assert.Empty(t, findRecord(snap.Root, "faded").Children)
	assert.Empty(t, findRecord(snap.Root, "nestedfade").Children,
		"a transparent ancestor hides text even when the direct parent is opaque")
	assert.Empty(t, findRecord(snap.Root, "empty").Children)
	assert.Empty(t, findRecord(snap.Root, "far").Children)

	// the element itself ignores opacity and off-screen position
	assert.True(t, findRecord(snap.Root, "faded").IsVisible)
	assert.True(t, findRecord(snap.Root, "far").IsVisible)
}

func TestOcclusionBlocksHighlight(t *testing.T) {
	snap := buildSnapshot(t, `<html><body style="margin:0">
		<button id="buried" style="position:absolute; left:0; top:0; width:100px; height:100px">Hit me</button>
		<div id="cover" style="position:absolute; left:0; top:0; width:200px; height:200px"></div>
	</body></html>`)

	buried := findRecord(snap.Root, "buried")
	require.NotNil(t, buried)
	assert.True(t, buried.IsVisible)
	assert.True(t, buried.IsInteractive)
	assert.False(t, buried.IsTopElement)
	assert.Nil(t, buried.HighlightIndex)
}

func TestOcclusionFailOpenPolicy(t *testing.T) {
	src := `<html><body><button id="ghost" style="display:none">x</button></body></html>`

	snap := buildSnapshot(t, src)
	ghost := findRecord(snap.Root, "ghost")
	require.NotNil(t, ghost)
	assert.True(t, ghost.IsTopElement, "unresolvable hit tests default to top")
	assert.Nil(t, ghost.HighlightIndex, "visibility still gates highlighting")

	cfg := snapCfg()
	cfg.AssumeTopOnHitTestFailure = false
	strict := NewBuilder(cfg, nil, zap.NewNop()).Build(loadFixture(t, src))
	assert.False(t, findRecord(strict.Root, "ghost").IsTopElement)
}

func TestShadowTraversal(t *testing.T) {
	snap := buildSnapshot(t, `<html><body>
		<div id="host"><template shadowrootmode="open">
			<button id="inner">Inside</button>
		</template></div>
	</body></html>`)

	host := findRecord(snap.Root, "host")
	require.NotNil(t, host)
	assert.True(t, host.ShadowRoot)

	inner := findRecord(snap.Root, "inner")
	require.NotNil(t, inner)
	require.NotNil(t, inner.HighlightIndex, "shadow content is classified like any other element")
	assert.Equal(t, "button", inner.XPath, "xpaths stop at the shadow boundary")
}

func TestIframeTraversalAndOffsets(t *testing.T) {
	snap := buildSnapshot(t, `<html><body style="margin:0">
		<iframe id="frame" style="position:absolute; left:50px; top:100px; width:300px; height:150px"
			srcdoc='<body style="margin:0"><button id="inner" style="position:absolute; left:5px; top:10px; width:60px; height:20px">In</button></body>'></iframe>
	</body></html>`)

	frame := findRecord(snap.Root, "frame")
	require.NotNil(t, frame)
	require.Len(t, frame.Children, 1)

	inner := findRecord(snap.Root, "inner")
	require.NotNil(t, inner)
	require.NotNil(t, inner.HighlightIndex)
	assert.True(t, inner.IsTopElement, "framed elements are trusted as top")

	require.Len(t, snap.Highlights, 1)
	box := snap.Highlights[0]
	assert.Equal(t, *inner.HighlightIndex, box.Index)
	assert.InDelta(t, 55.0, box.Left, 0.01, "frame left offset is folded in")
	assert.InDelta(t, 110.0, box.Top, 0.01, "frame top offset is folded in")
}

func TestNestedIframeOffsetsCompose(t *testing.T) {
	// the inner srcdoc survives two rounds of attribute entity decoding, one
	// per document level
	snap := buildSnapshot(t, `<html><body style="margin:0">
		<iframe style="position:absolute; left:50px; top:100px; width:400px; height:300px"
			srcdoc='<body style="margin:0"><iframe style="position:absolute; left:20px; top:30px; width:200px; height:100px" srcdoc="<body style=&amp;quot;margin:0&amp;quot;><button id=&amp;quot;deep&amp;quot; style=&amp;quot;position:absolute; left:5px; top:10px; width:50px; height:20px&amp;quot;>X</button></body>"></iframe></body>'></iframe>
	</body></html>`)

	deep := findRecord(snap.Root, "deep")
	require.NotNil(t, deep)
	require.NotNil(t, deep.HighlightIndex)

	require.Len(t, snap.Highlights, 1)
	box := snap.Highlights[0]
	assert.InDelta(t, 75.0, box.Left, 0.01, "50 + 20 + 5")
	assert.InDelta(t, 140.0, box.Top, 0.01, "100 + 30 + 10")
}

func TestInaccessibleIframeIsSkipped(t *testing.T) {
	snap := buildSnapshot(t, `<html><body>
		<iframe id="blocked" src="https://other-origin.example/app"></iframe>
		<button id="after">Still here</button>
	</body></html>`)

	blocked := findRecord(snap.Root, "blocked")
	require.NotNil(t, blocked, "the iframe element itself stays in the tree")
	assert.Empty(t, blocked.Children)

	after := findRecord(snap.Root, "after")
	require.NotNil(t, after)
	require.NotNil(t, after.HighlightIndex, "traversal continues past the frame")
}

func TestFrameResolverFeedsFrames(t *testing.T) {
	resolver := FrameResolverFunc(func(src string) (string, error) {
		return `<body><a id="resolved" href="/in-frame">link</a></body>`, nil
	})
	page, err := LoadPage(`<html><body>
		<iframe id="frame" src="https://same-origin.example/widget"></iframe>
	</body></html>`, LoadOptions{Resolver: resolver, Logger: zap.NewNop()})
	require.NoError(t, err)

	snap := NewBuilder(snapCfg(), nil, zap.NewNop()).Build(page)
	resolved := findRecord(snap.Root, "resolved")
	require.NotNil(t, resolved)
	require.NotNil(t, resolved.HighlightIndex)
}

func TestHighlightToggle(t *testing.T) {
	cfg := snapCfg()
	cfg.DoHighlightElements = false
	snap := NewBuilder(cfg, nil, zap.NewNop()).Build(loadFixture(t, basicFixture))

	assert.Empty(t, snap.Highlights, "disabling highlights suppresses draw operations only")
	link := findRecord(snap.Root, "link")
	require.NotNil(t, link)
	require.NotNil(t, link.HighlightIndex, "index assignment is unchanged")
	assert.Equal(t, 0, *link.HighlightIndex)
}

func TestSnapshotIdempotence(t *testing.T) {
	first := buildSnapshot(t, basicFixture)
	second := buildSnapshot(t, basicFixture)

	diff := cmp.Diff(first.Root, second.Root,
		cmpopts.IgnoreFields(schemas.ElementNode{}, "Parent"))
	assert.Empty(t, diff, "a static page snapshots identically")
	assert.Equal(t, first.Highlights, second.Highlights)
}

func TestSelectorMap(t *testing.T) {
	snap := buildSnapshot(t, basicFixture)

	require.Len(t, snap.SelectorMap, 2)
	assert.Equal(t, "a", snap.SelectorMap[0].TagName)
	assert.Equal(t, "button", snap.SelectorMap[1].TagName)
}

func TestNoBodyYieldsNilRoot(t *testing.T) {
	b := NewBuilder(snapCfg(), nil, zap.NewNop())
	snap := b.Build(&Page{})
	assert.Nil(t, snap.Root)
	assert.Empty(t, snap.SelectorMap)
}
