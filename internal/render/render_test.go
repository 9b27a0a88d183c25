package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_RichText(t *testing.T) {
	out, err := Markdown("richtext", `<h1>Title</h1><p>Some <strong>bold</strong> text<script>alert(1)</script></p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "# Title")
	assert.Contains(t, out, "**bold**")
	assert.NotContains(t, out, "alert")
}

func TestMarkdown_Table(t *testing.T) {
	out, err := Markdown("table", "name,qty\napples,3\npears\n")
	require.NoError(t, err)
	assert.Equal(t, "| name | qty |\n| --- | --- |\n| apples | 3 |\n| pears |  |\n", out)
}

func TestText(t *testing.T) {
	assert.Equal(t, "Hello big world", Text("richtext", "<p>Hello <b>big</b>\n world</p>"))
	assert.Equal(t, "a b\nc", Text("table", "a,b\nc\n"))
	assert.Equal(t, "raw <b>", Text("plaintext", "raw <b>"))
}

func TestHTML(t *testing.T) {
	out, err := HTML("markdown", "Hi :smile:\n\n| a |\n| - |\n| 1 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, ":smile:")

	out, err = HTML("richtext", `<p style="color:red">ok<script>alert(1)</script></p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "script")

	out, err = HTML("plaintext", "<x>")
	require.NoError(t, err)
	assert.Equal(t, "<pre>&lt;x&gt;</pre>", out)
}

func TestTerminal_NoTTY(t *testing.T) {
	out, err := Terminal("markdown", "# Heading\n\nbody text", 40, "notty")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "Heading"))
	assert.True(t, strings.Contains(out, "body text"))

	empty, err := Terminal("richtext", "   ", 40, "notty")
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}
