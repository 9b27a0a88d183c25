package plugin

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletree/internal/editor"
	"appletree/internal/model"
	"appletree/internal/store"
)

func fixedClock() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

func newRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRegistry(dir, WithClock(fixedClock))
	Builtins(r)
	return r, dir
}

func editorTarget(docType string, body string) Target {
	buf := editor.NewBuffer(nil, nil)
	buf.SetBody(body)
	return Target{DocID: "d", DocType: docType, Surface: buf}
}

func TestLoad_DefaultsWithoutManifest(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Load())

	var names []string
	for _, p := range r.Plugins() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"timestamp", "wordcount"}, names)
	assert.Equal(t, []string{"timestamp", "wordcount", "screenshot"}, r.Available())
}

func TestSetEnabled_WritesManifest(t *testing.T) {
	r, dir := newRegistry(t)
	require.NoError(t, r.SetEnabled("screenshot", true))
	require.NoError(t, r.SetEnabled("wordcount", false))
	assert.ErrorIs(t, r.SetEnabled("nope", true), ErrUnknownPlugin)

	m, ok, err := ReadManifest(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, m.Plugins, 2)

	require.NoError(t, r.Load())
	_, ok = r.Get("screenshot")
	assert.True(t, ok)
	_, ok = r.Get("wordcount")
	assert.False(t, ok)
}

func TestReadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFile)

	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  - name: Bad-Name\n"), 0o600))
	_, _, err := ReadManifest(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  - name: a\n  - name: a\n"), 0o600))
	_, _, err = ReadManifest(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("plugins: [\n"), 0o600))
	_, _, err = ReadManifest(path)
	assert.Error(t, err)
}

func TestTimestamp_InsertUsesConfiguredFormat(t *testing.T) {
	r, dir := newRegistry(t)
	require.NoError(t, store.WriteConf(filepath.Join(dir, "plugins", "timestamp.conf"), "timestamp",
		[]string{"format", "junk"}, map[string]string{"format": "02.01.2006", "junk": "x"}))
	require.NoError(t, r.Load())

	cfg, err := r.Config("timestamp")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"format": "02.01.2006"}, cfg.Values())

	target := editorTarget(model.TypeRichText, "<p>a</p>")
	msg, err := r.Run(context.Background(), ScopeEditor, "timestamp", "insert", target)
	require.NoError(t, err)
	assert.Equal(t, "Inserted 09.03.2024", msg)
	assert.Equal(t, "<p>a</p><p>09.03.2024</p>", target.Surface.Body())

	target = editorTarget(model.TypeTable, "a,b\n")
	_, err = r.Run(context.Background(), ScopeEditor, "timestamp", "insert", target)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRun_Errors(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Load())
	ctx := context.Background()

	_, err := r.Run(ctx, ScopeEditor, "screenshot", "capture", Target{})
	assert.ErrorIs(t, err, ErrUnknownPlugin)

	_, err = r.Run(ctx, ScopeEditor, "timestamp", "nope", editorTarget("", ""))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = r.Run(ctx, ScopeProject, "timestamp", "insert", editorTarget("", ""))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = r.Run(ctx, ScopeEditor, "wordcount", "count", Target{})
	assert.ErrorIs(t, err, ErrNoEditor)
}

func TestWordcount(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Load())
	msg, err := r.Run(context.Background(), ScopeEditor, "wordcount", "count",
		editorTarget(model.TypeRichText, "<p>hello <b>big</b> world</p>"))
	require.NoError(t, err)
	assert.Equal(t, "3 words, 15 characters", msg)

	acts := r.Actions(ScopeEditor, editorTarget(model.TypePlainText, ""))
	var names []string
	for _, a := range acts {
		names = append(names, a.Plugin+"/"+a.Name)
	}
	assert.Equal(t, []string{"timestamp/insert", "wordcount/count"}, names)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins", "x.conf")
	c := LoadConfig(path, "x", map[string]string{"a": "1", "n": "5"}, nil)
	assert.Equal(t, 5, c.Int("n"))
	require.NoError(t, c.Set("a", "2"))
	require.NoError(t, c.Set("n", "oops"))
	assert.Error(t, c.Set("b", "3"))
	assert.Equal(t, 5, c.Int("n"))
	require.NoError(t, c.Save())

	again := LoadConfig(path, "x", map[string]string{"a": "1", "n": "5"}, nil)
	assert.Equal(t, "2", again.Get("a"))
	assert.Equal(t, []string{"a", "n"}, again.Keys())
}

func screenshotRegistry(t *testing.T, exec string) *Registry {
	t.Helper()
	r, _ := newRegistry(t)
	require.NoError(t, r.SetEnabled("screenshot", true))
	require.NoError(t, r.Load())
	cfg, err := r.Config("screenshot")
	require.NoError(t, err)
	require.NoError(t, cfg.Set("screenshot_exec", exec))
	return r
}

func TestScreenshot_StoresImageAndInsertsRef(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	src := filepath.Join(t.TempDir(), "shot.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 2))))
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0o600))
	r := screenshotRegistry(t, `sh -c 'cat "$1" > "$0"' {tempfilename} `+src)

	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	target := editorTarget(model.TypeMarkdown, "# t")
	target.Docs = s

	for _, a := range r.Actions(ScopeEditor, editorTarget(model.TypePlainText, "")) {
		assert.NotEqual(t, "screenshot", a.Plugin, "plaintext cannot hold images")
	}

	msg, err := r.Run(context.Background(), ScopeEditor, "screenshot", "capture", target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, "Inserted screenshot "))

	names, err := s.Images("d")
	require.NoError(t, err)
	require.Len(t, names, 1)
	img, err := s.Image("d", names[0])
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, "# t\n![screenshot]("+names[0]+")\n", target.Surface.Body())
}

func TestScreenshot_RejectsNonImageOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := screenshotRegistry(t, `sh -c 'printf shot > "$0"' {tempfilename}`)

	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	target := editorTarget(model.TypeMarkdown, "# t")
	target.Docs = s

	_, err = r.Run(context.Background(), ScopeEditor, "screenshot", "capture", target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImageFormat))

	names, err := s.Images("d")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, "# t", target.Surface.Body())
}
