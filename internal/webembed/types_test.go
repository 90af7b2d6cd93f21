package webembed_test

import (
	"encoding/json"
	"testing"

	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimension_Unmarshal(t *testing.T) {
	t.Parallel()

	var e webembed.Embed
	require.NoError(t, json.Unmarshal([]byte(`{"html":"x","width":"100%","height":null,"thumbnail_height":640.5}`), &e))

	assert.Equal(t, "100%", e.Width.String())
	assert.Empty(t, e.Height)
	assert.Equal(t, webembed.Dimension("640.5"), e.ThumbnailHeight)

	h, ok := e.ThumbnailHeight.Int()
	require.True(t, ok)
	assert.Equal(t, 640, h)

	_, ok = e.Width.Int()
	assert.False(t, ok)
}

func TestDimension_MarshalKeepsNumbers(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(webembed.Embed{HTML: "x", Width: "480", Height: "auto"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"html":"x","width":480,"height":"auto"}`, string(out))
}

func TestDimension_PixelSuffix(t *testing.T) {
	t.Parallel()

	n, ok := webembed.Dimension("320px").Int()
	require.True(t, ok)
	assert.Equal(t, 320, n)
}
