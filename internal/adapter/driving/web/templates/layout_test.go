package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderLayout(t *testing.T, refreshSeconds int) string {
	t.Helper()

	var sb strings.Builder
	body := templ.Raw("<p>body</p>")
	require.NoError(t, Layout("A & B", refreshSeconds, body).Render(context.Background(), &sb))
	return sb.String()
}

func TestLayout_WrapsBody(t *testing.T) {
	out := renderLayout(t, 30)

	assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
	assert.Contains(t, out, "<title>A &amp; B</title>")
	assert.Contains(t, out, `<meta http-equiv="refresh" content="30">`)
	assert.Contains(t, out, "<body><p>body</p></body>")
}

func TestLayout_NoRefreshWhenDisabled(t *testing.T) {
	out := renderLayout(t, 0)

	assert.NotContains(t, out, "http-equiv")
}
