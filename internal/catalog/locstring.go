package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

const (
	locStringType   = "LocString"
	defaultLanguage = "en"
)

// Localize walks a metadata tree and adds a "value" key to the data of every
// LocString node, picked for the requested language. The input is not modified.
func Localize(tree any, lang string) any {
	if lang == "" {
		return tree
	}
	return localize(tree, lang)
}

func localize(node any, lang string) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v)+1)
		for k, child := range v {
			out[k] = localize(child, lang)
		}
		if t, _ := v["@type"].(string); t == locStringType {
			if data, ok := out["data"].(map[string]any); ok {
				if value, ok := pickTranslation(v["data"].(map[string]any), lang); ok {
					data["value"] = value
				}
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = localize(child, lang)
		}
		return out
	default:
		return node
	}
}

// pickTranslation matches lang against the keys of data, falling back to en.
func pickTranslation(data map[string]any, lang string) (any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	if v, ok := data[lang]; ok {
		return v, true
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	tagKeys := make([]string, 0, len(keys))
	if _, ok := data[defaultLanguage]; ok {
		tags = append(tags, language.English)
		tagKeys = append(tagKeys, defaultLanguage)
	}
	for _, k := range keys {
		if k == defaultLanguage {
			continue
		}
		tag, err := language.Parse(strings.ReplaceAll(k, "_", "-"))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		tagKeys = append(tagKeys, k)
	}

	if want, err := language.Parse(strings.ReplaceAll(lang, "_", "-")); err == nil && len(tags) > 0 {
		_, idx, conf := language.NewMatcher(tags).Match(want)
		if conf != language.No {
			return data[tagKeys[idx]], true
		}
	}
	if v, ok := data[defaultLanguage]; ok {
		return v, true
	}
	return data[keys[0]], true
}
