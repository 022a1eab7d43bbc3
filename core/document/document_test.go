package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		raw := []byte(`{"name":"ada","age":36,"tags":["x","y"],"gone":null}`)
		doc, err := FromJSON(raw)
		require.NoError(t, err)

		assert.Equal(t, "ada", doc.Get("name").String())
		assert.Equal(t, int64(36), doc.Get("age").Int())
		assert.Equal(t, "y", doc.Get("tags.1").String())
		assert.Equal(t, int64(2), doc.Get("tags.#").Int())

		assert.True(t, doc.Exists("name"))
		assert.False(t, doc.Exists("gone"))
		assert.False(t, doc.Exists("missing"))

		raw[2] = 'X'
		assert.Equal(t, "ada", doc.Get("name").String(), "input bytes are copied")
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := FromJSON([]byte(`{"name":`))
		assert.ErrorIs(t, err, ErrInvalidJSON)
		assert.Panics(t, func() { MustFromJSON("nope") })
	})
}

func TestFromValue(t *testing.T) {
	type user struct {
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}

	doc, err := FromValue(user{Name: "lin", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.Equal(t, "admin", doc.Get("roles.0").String())

	_, err = FromValue(nil)
	assert.Error(t, err)

	_, err = FromValue(func() {})
	assert.Error(t, err)
}

func TestFromMap(t *testing.T) {
	doc, err := FromMap(map[string]any{"a": map[string]any{"b": 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Get("a.b").Int())

	m := doc.Map()
	inner, ok := m["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), inner["b"])

	_, err = FromMap(nil)
	assert.Error(t, err)
}

func TestMap_NonObject(t *testing.T) {
	doc := MustFromJSON(`[1,2]`)
	m := doc.Map()
	assert.Equal(t, []any{float64(1), float64(2)}, m["value"])
	assert.Equal(t, `[1,2]`, doc.String())
}

func TestNilDocument(t *testing.T) {
	var doc *Document
	assert.False(t, doc.Get("a").Exists())
	assert.False(t, doc.Exists("a"))
	assert.Nil(t, doc.Raw())
	assert.Empty(t, doc.Map())
	assert.Equal(t, "null", doc.String())
}
