// -- cmd/snapshot_test.go --
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagescope/pagescope/api/schemas"
	"github.com/pagescope/pagescope/internal/browser/dom"
	"github.com/pagescope/pagescope/internal/config"
)

const fixturePage = `<html><body>
	<a id="home" href="/home">Home</a>
	<button id="send" aria-label="Send">Send</button>
</body></html>`

func buildFixtureSnapshot(t *testing.T) *dom.Snapshot {
	t.Helper()
	c := config.NewDefaultConfig()
	page, err := dom.LoadPage(fixturePage, dom.LoadOptions{
		ViewportWidth:  float64(c.Browser().ViewportWidth),
		ViewportHeight: float64(c.Browser().ViewportHeight),
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)
	return dom.NewBuilder(c.Snapshot(), nil, zap.NewNop()).Build(page)
}

func TestRenderSnapshotJSON(t *testing.T) {
	snap := buildFixtureSnapshot(t)

	out, err := renderSnapshot(snap, "json", nil)
	require.NoError(t, err)

	var decoded schemas.ElementNode
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "body", decoded.TagName)
	assert.Len(t, decoded.Children, 2)
}

func TestRenderSnapshotClickable(t *testing.T) {
	snap := buildFixtureSnapshot(t)

	out, err := renderSnapshot(snap, "clickable", []string{"href", "aria-label"})
	require.NoError(t, err)

	assert.Contains(t, out, `0[:]<a href="/home">Home</a>`)
	assert.Contains(t, out, `1[:]<button aria-label="Send">Send</button>`)
}

func TestRenderSnapshotUnknownFormat(t *testing.T) {
	_, err := renderSnapshot(buildFixtureSnapshot(t), "yaml", nil)
	assert.ErrorContains(t, err, "unknown format")
}

func TestReadSourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(fixturePage), 0o644))

	cmd := newSnapshotCmd()
	src, err := readSource(cmd, []string{path})
	require.NoError(t, err)
	assert.Equal(t, fixturePage, src)

	_, err = readSource(cmd, []string{filepath.Join(t.TempDir(), "missing.html")})
	assert.Error(t, err)
}

func TestSnapshotCommandFlags(t *testing.T) {
	cmd := newSnapshotCmd()

	format, err := cmd.Flags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "json", format)

	highlight, err := cmd.Flags().GetBool("highlight")
	require.NoError(t, err)
	assert.True(t, highlight)
}
