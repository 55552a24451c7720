package pages

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhunt/internal/viewmodel"
)

func TestHomePageStreamsFromURL(t *testing.T) {
	var buf bytes.Buffer
	page := viewmodel.HomePage{Title: "TinyHunt", StreamURL: `/stream?id=a"b`}
	require.NoError(t, HomePage(page).Render(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, "<title>TinyHunt</title>")
	assert.Contains(t, out, `data-stream="/stream?id=a&#34;b"`)
	assert.Contains(t, out, "new EventSource(app.dataset.stream)")
	assert.Contains(t, out, `id="hud"`)
	assert.Contains(t, out, `id="lines"`)
}
