package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCode covers accepted and rejected catalog codes.
func TestParseCode(t *testing.T) {
	code, err := ParseCode("ru.nptst-MAIN-42")
	require.NoError(t, err)
	assert.Equal(t, "ru.nptst", code.Title)
	assert.Equal(t, TypeMain, code.Type)
	assert.Equal(t, 42, code.Version)
	assert.Equal(t, "ru.nptst-MAIN-42", code.String())

	coupon, err := ParseCode("wows-COUPON-1")
	require.NoError(t, err)
	assert.Equal(t, TypeCoupon, coupon.Type)

	invalid := []string{
		"",
		"test",
		"test-main-1",
		"test-MAIN-1d",
		"test-MAIN-",
		"-MAIN-1",
		"ru.nptst-PROMO-1",
		strings.Repeat("a", 45) + "-MAIN-1",
	}
	for _, s := range invalid {
		_, err := ParseCode(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

// TestValidatePublishID covers ULID format rules.
func TestValidatePublishID(t *testing.T) {
	assert.NoError(t, ValidatePublishID("01ARZ3NDEKTSV4RRFFQ69G5FAV"))

	assert.Error(t, ValidatePublishID(""))
	assert.Error(t, ValidatePublishID("abc"))
	assert.Error(t, ValidatePublishID("01arz3ndektsv4rrffq69g5fav"), "lowercase rejected")
	assert.Error(t, ValidatePublishID("01ARZ3NDEKTSV4RRFFQ69G5FAVX"), "too long")
	assert.Error(t, ValidatePublishID("01ARZ3NDEKTSV4RRFFQ69G5FAU"[:25]+"!"), "bad alphabet")
	assert.Error(t, ValidatePublishID("81ARZ3NDEKTSV4RRFFQ69G5FAV"), "timestamp overflow")
}

// TestValidateArchiveURL covers the URL rules applied at submission.
func TestValidateArchiveURL(t *testing.T) {
	assert.NoError(t, ValidateArchiveURL("http://catalogs.local/test_catalog.zip"))
	assert.NoError(t, ValidateArchiveURL("https://cdn.example.com/a.zip"))

	assert.Error(t, ValidateArchiveURL(""))
	assert.Error(t, ValidateArchiveURL("test"))
	assert.Error(t, ValidateArchiveURL("ftp://host/a.zip"))
	assert.Error(t, ValidateArchiveURL("http://"))
}

// TestEntityTypeLookup checks names and the enumerated description.
func TestEntityTypeLookup(t *testing.T) {
	et, ok := LookupEntityType("filter_property")
	require.True(t, ok)
	assert.Equal(t, "filter_properties.json", et.File)

	_, ok = LookupEntityType("not_exist")
	assert.False(t, ok)

	assert.Equal(t,
		"Parameter must have a value among : currency,entitlement,product,storefront,override,promotion,coupon,filter_property",
		EntityTypeDescription)

	byID, ok := EntityTypeByID(3)
	require.True(t, ok)
	assert.Equal(t, Product, byID)
}

// TestParseType accepts any case.
func TestParseType(t *testing.T) {
	typ, ok := ParseType("coupon")
	require.True(t, ok)
	assert.Equal(t, TypeCoupon, typ)

	_, ok = ParseType("promo")
	assert.False(t, ok)
}

// TestTitleParts splits realm and name.
func TestTitleParts(t *testing.T) {
	assert.Equal(t, "ru", Realm("ru.nptst"))
	assert.Equal(t, "nptst", TitleName("ru.nptst"))
	assert.Equal(t, "wows", TitleName("wows"))
	assert.True(t, ValidTitleCode("ru.nptst"))
	assert.False(t, ValidTitleCode("ru.nptst-MAIN-1"))
}

// TestLocalize picks the requested language and falls back to English.
func TestLocalize(t *testing.T) {
	meta := map[string]any{
		"name": map[string]any{
			"@type": "LocString",
			"data": map[string]any{
				"en": "Tank",
				"ru": "Танк",
			},
		},
		"tags": []any{
			map[string]any{
				"@type": "LocString",
				"data":  map[string]any{"en": "Heavy"},
			},
		},
	}

	ru := Localize(meta, "ru").(map[string]any)
	assert.Equal(t, "Танк", ru["name"].(map[string]any)["data"].(map[string]any)["value"])

	de := Localize(meta, "de").(map[string]any)
	assert.Equal(t, "Tank", de["name"].(map[string]any)["data"].(map[string]any)["value"])
	tag := de["tags"].([]any)[0].(map[string]any)
	assert.Equal(t, "Heavy", tag["data"].(map[string]any)["value"])

	regional := Localize(meta, "ru-RU").(map[string]any)
	assert.Equal(t, "Танк", regional["name"].(map[string]any)["data"].(map[string]any)["value"])

	_, touched := meta["name"].(map[string]any)["data"].(map[string]any)["value"]
	assert.False(t, touched, "input must not be modified")

	assert.Equal(t, meta, Localize(meta, ""))
}
