package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualValuesNumbers(t *testing.T) {
	assert.True(t, EqualValues(json.Number("100"), 100.0))
	assert.True(t, EqualValues(json.Number("1e2"), json.Number("100.0")))
	assert.False(t, EqualValues(json.Number("9007199254740993"), json.Number("9007199254740992")))
	assert.False(t, EqualValues(json.Number("1"), "1"))
	assert.False(t, EqualValues(nil, json.Number("0")))
}

func TestEqualValuesNested(t *testing.T) {
	a := map[string]any{"price": map[string]any{"gold": json.Number("10")}, "tags": []any{"x", json.Number("2")}}
	b := map[string]any{"price": map[string]any{"gold": 10.0}, "tags": []any{"x", 2.0}}
	assert.True(t, EqualValues(a, b))

	b["tags"] = []any{"x"}
	assert.False(t, EqualValues(a, b))
	assert.True(t, EqualFields(nil, map[string]any{}))
}

func TestChangedFields(t *testing.T) {
	before := map[string]any{"price": json.Number("10"), "visible": true, "old": "x"}
	after := map[string]any{"price": json.Number("10.0"), "visible": false, "new": map[string]any{}}
	assert.Equal(t, []string{"new", "old", "visible"}, ChangedFields(before, after))
	assert.Empty(t, ChangedFields(before, before))
}

func TestFormatValue(t *testing.T) {
	v := map[string]any{
		"visible":       false,
		"new_field":     map[string]any{},
		"prerequisites": nil,
		"price":         map[string]any{"gold": json.Number("90")},
		"tags":          []any{"a", json.Number("2")},
	}
	assert.Equal(t, "{new_field={}, prerequisites=null, price={gold=90}, tags=[a, 2], visible=false}", FormatValue(v))
}

func TestDecodeJSONKeepsPrecision(t *testing.T) {
	var m map[string]any
	require.NoError(t, DecodeJSON([]byte(`{"n": 9007199254740993}`), &m))
	assert.Equal(t, json.Number("9007199254740993"), m["n"])
}
