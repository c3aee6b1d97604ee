// internal/browser/dom/xpath_test.go
package dom

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/pagescope/pagescope/internal/browser/style"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func styledByID(t *testing.T, src, id string) (*Page, *style.StyledNode) {
	t.Helper()
	p := loadFixture(t, src)
	var find func(sn *style.StyledNode) *style.StyledNode
	find = func(sn *style.StyledNode) *style.StyledNode {
		if v, ok := sn.Attr("id"); ok && v == id {
			return sn
		}
		for _, c := range sn.Children {
			if found := find(c); found != nil {
				return found
			}
		}
		if sn.ShadowRoot != nil {
			return find(sn.ShadowRoot)
		}
		return nil
	}
	sn := find(p.Styled)
	require.NotNil(t, sn, "element #%s not found", id)
	return p, sn
}

func TestBuildXPathOrdinals(t *testing.T) {
	src := `<html><body>
		<div>first</div>
		<div id="second">second</div>
		<span>inline</span>
		<div id="third">third</div>
		<p id="loner">only p</p>
	</body></html>`

	_, second := styledByID(t, src, "second")
	assert.Equal(t, "html/body/div[2]", BuildXPath(second))

	_, third := styledByID(t, src, "third")
	assert.Equal(t, "html/body/div[3]", BuildXPath(third), "the span does not disturb div counting")

	_, loner := styledByID(t, src, "loner")
	assert.Equal(t, "html/body/p", BuildXPath(loner), "a first-of-kind element carries no suffix")
}

func TestBuildXPathNested(t *testing.T) {
	_, leaf := styledByID(t, `<html><body>
		<section><article><a id="leaf" href="/">x</a></article></section>
	</body></html>`, "leaf")

	assert.Equal(t, "html/body/section/article/a", BuildXPath(leaf))
}

func TestBuildXPathStopsAtShadowBoundary(t *testing.T) {
	_, inner := styledByID(t, `<html><body>
		<div id="host"><template shadowrootmode="open">
			<div><button id="inner">x</button></div>
		</template></div>
	</body></html>`, "inner")

	path := BuildXPath(inner)
	assert.Equal(t, "div/button", path)
	assert.False(t, strings.Contains(path, "body"), "paths never cross the shadow boundary")
}

// Paths must resolve with a standard XPath engine inside their own scope.
func TestBuildXPathResolvable(t *testing.T) {
	src := `<html><body>
		<div>a</div>
		<div><button id="target">b</button></div>
	</body></html>`
	_, target := styledByID(t, src, "target")
	path := BuildXPath(target)

	doc, err := htmlquery.Parse(strings.NewReader(src))
	require.NoError(t, err)
	node := htmlquery.FindOne(doc, "/"+path)
	require.NotNil(t, node, "computed path %q must resolve", path)
	assert.Equal(t, "target", htmlquery.SelectAttr(node, "id"))
}
