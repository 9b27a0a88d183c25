package tui

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"

	"appletree/internal/editor"
	"appletree/internal/model"
)

func TestFitLine(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"abc", 1, "a"},
		{"abc", 0, ""},
		{"\x1b[1mbold\x1b[0m", 6, "\x1b[1mbold\x1b[0m  "},
	}
	for _, tc := range cases {
		if got := fitLine(tc.in, tc.width); got != tc.want {
			t.Fatalf("fitLine(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestNormalizePane(t *testing.T) {
	got := normalizePane("one\ntwo\nthree\nfour", 5, 3)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, ln := range lines {
		if w := xansi.StringWidth(ln); w != 5 {
			t.Fatalf("line %q has width %d", ln, w)
		}
	}

	got = normalizePane("x", 2, 3)
	if got != "x \n  \n  " {
		t.Fatalf("padding: %q", got)
	}
}

func TestGlyphs_ASCIIFallback(t *testing.T) {
	t.Cleanup(func() { setGlyphs(glyphSetUnicode) })

	t.Setenv("APPLETREE_TUI_GLYPHS", "ascii")
	applyGlyphPreference()
	if glyphTwistyCollapsed() != ">" || glyphSeparator() != " > " {
		t.Fatalf("expected ascii glyphs")
	}

	t.Setenv("APPLETREE_TUI_GLYPHS", "")
	applyGlyphPreference()
	if glyphTwistyCollapsed() != "▸" {
		t.Fatalf("expected unicode glyphs")
	}
}

func TestParseNewDocument(t *testing.T) {
	kinds := editor.DefaultKinds()
	cases := []struct {
		in, name, docType string
	}{
		{"Plain", "Plain", model.DefaultType},
		{"Notes :markdown", "Notes", model.TypeMarkdown},
		{"Budget :table", "Budget", model.TypeTable},
		// Unknown types stay part of the name.
		{"Ratio :golden", "Ratio :golden", model.DefaultType},
	}
	for _, tc := range cases {
		name, docType := parseNewDocument(tc.in, kinds)
		if name != tc.name || docType != tc.docType {
			t.Fatalf("parseNewDocument(%q) = %q, %q", tc.in, name, docType)
		}
	}
}

func TestFlattenTree_SkipsCollapsedChildren(t *testing.T) {
	m, _, _ := newTestModel(t)
	a, err := m.tree.CreateDocument("A", "", model.DefaultType)
	if err != nil {
		t.Fatal(err)
	}
	a1, _ := m.tree.CreateDocument("A1", a, model.DefaultType)
	if _, err := m.tree.CreateDocument("A1x", a1, model.DefaultType); err != nil {
		t.Fatal(err)
	}
	if _, err := m.tree.CreateDocument("B", "", model.TypeMarkdown); err != nil {
		t.Fatal(err)
	}

	rows := flattenTree(m.tree, nil, nil)
	var names []string
	for _, r := range rows {
		names = append(names, strings.Repeat(".", r.depth)+r.node.Name)
	}
	if got := strings.Join(names, " "); got != "A .A1 ..A1x B" {
		t.Fatalf("rows = %s", got)
	}

	rows = flattenTree(m.tree, map[string]bool{a1: true}, func(id string) bool { return id == a })
	if len(rows) != 3 || !rows[1].collapsed || !rows[1].hasChildren || !rows[0].draft {
		t.Fatalf("collapsed rows: %+v", rows)
	}
	title := treeRowItem{row: rows[2]}.Title()
	if !strings.Contains(title, "[markdown]") {
		t.Fatalf("title should carry a non-default type: %q", title)
	}
}
