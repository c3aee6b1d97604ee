// internal/browser/dom/history_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyFixture = `<html><body>
	<div class="toolbar">
		<button id="save" class="primary">Save</button>
		<button id="cancel">Cancel</button>
	</div>
	<a id="docs" href="/docs">Docs</a>
</body></html>`

func TestHistoryElementRoundTrip(t *testing.T) {
	first := buildSnapshot(t, historyFixture)
	save := findRecord(first.Root, "save")
	require.NotNil(t, save)

	entry := NewHistoryElement(save)
	require.NotNil(t, entry)
	assert.Equal(t, "button", entry.TagName)
	assert.Equal(t, []string{"body", "div", "button"}, entry.ParentBranch)

	// a fresh snapshot of the same page resolves to the same element
	second := buildSnapshot(t, historyFixture)
	found := entry.FindInTree(second.Root)
	require.NotNil(t, found)
	assert.Equal(t, "save", found.Attributes["id"])
	assert.True(t, entry.Matches(found))
}

func TestHistoryElementDistinguishesSiblings(t *testing.T) {
	snap := buildSnapshot(t, historyFixture)
	save := findRecord(snap.Root, "save")
	cancel := findRecord(snap.Root, "cancel")
	require.NotNil(t, save)
	require.NotNil(t, cancel)

	entry := NewHistoryElement(save)
	assert.False(t, entry.Matches(cancel), "sibling buttons differ by attributes and xpath")
	assert.NotEqual(t, HashElement(save), HashElement(cancel))
}

func TestHistoryElementGoneFromTree(t *testing.T) {
	snap := buildSnapshot(t, historyFixture)
	entry := NewHistoryElement(findRecord(snap.Root, "save"))

	changed := buildSnapshot(t, `<html><body>
		<div class="toolbar">
			<button id="save" class="primary" disabled="disabled">Save</button>
		</div>
	</body></html>`)
	assert.Nil(t, entry.FindInTree(changed.Root), "an attribute change breaks the identity hash")
}

func TestHashStability(t *testing.T) {
	snap := buildSnapshot(t, historyFixture)
	save := findRecord(snap.Root, "save")

	h1 := HashElement(save)
	h2 := HashElement(save)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1.BranchPathHash, 64)
	assert.Len(t, h1.AttributesHash, 64)
	assert.Len(t, h1.XPathHash, 64)
}

func TestHistoryElementNilSafety(t *testing.T) {
	assert.Nil(t, NewHistoryElement(nil))

	var entry *HistoryElement
	assert.Nil(t, entry.FindInTree(nil))
}