package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForest_JSONTriples(t *testing.T) {
	f := Forest{
		{ID: "a", Name: "A", Children: Forest{{ID: "a1", Name: "A1"}}},
		{ID: "b", Name: "B"},
	}
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `[["a","A",[["a1","A1",[]]]],["b","B",[]]]`, string(b))

	var back Forest
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 3, back.Count())
	assert.Equal(t, []string{"a", "a1", "b"}, back.IDs())

	e, ok := back.Find("a1")
	require.True(t, ok)
	assert.Equal(t, "A1", e.Name)
	_, ok = back.Find("zzz")
	assert.False(t, ok)
}

func TestEntry_UnmarshalRejectsMalformed(t *testing.T) {
	var f Forest
	assert.Error(t, json.Unmarshal([]byte(`[["a","A"]]`), &f))
	assert.Error(t, json.Unmarshal([]byte(`[[1,"A",[]]]`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a"}`), &f))
}

func TestForest_Validate(t *testing.T) {
	assert.NoError(t, Forest{{ID: "a"}, {ID: "b"}}.Validate())

	err := Forest{{ID: "a", Children: Forest{{ID: "a"}}}}.Validate()
	assert.True(t, errors.Is(err, ErrDuplicateID))

	assert.Error(t, Forest{{ID: " "}}.Validate())
}

func TestMeta(t *testing.T) {
	var empty Meta
	assert.Equal(t, DefaultType, empty.Type())
	assert.Empty(t, empty.Tags())

	m := Meta{MetaType: " markdown ", MetaTags: "b, a,,b", "color": "red"}
	assert.Equal(t, TypeMarkdown, m.Type())
	assert.Equal(t, []string{"a", "b"}, m.Tags())

	f := m.Filtered()
	_, ok := f.Get("color")
	assert.False(t, ok)
	assert.Len(t, f, 2)

	c := m.Clone()
	c[MetaType] = TypeTable
	assert.Equal(t, TypeMarkdown, m.Type())
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"go", "notes"}, ParseTags(" notes ,go,notes"))
	assert.Equal(t, "a,b", JoinTags([]string{"b", "a", "b"}))
	assert.Equal(t, []string{"a", "c"}, ToggleTags([]string{"a", "b"}, "b", "c"))
	assert.Empty(t, ToggleTags([]string{"a"}, "a"))
	assert.Equal(t, []string{"a", "x", "y"}, ToggleTags([]string{"a"}, "x,y"))
	assert.Equal(t, []string{"x", "y"}, ParseTags(JoinTags(NormalizeTags([]string{" y , x"}))))
	assert.True(t, IsMetaKey(MetaModified))
	assert.False(t, IsMetaKey("color"))
}
