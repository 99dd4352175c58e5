// Package archive decodes catalog zip archives into typed entity sets and
// checks their consistency.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/rs/zerolog"
)

// ParseError reports why an archive was rejected. Reason goes after
// "archive:" in a task failure.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// Entity is one decoded catalog entity.
type Entity struct {
	ID       string             `json:"id"`
	Code     string             `json:"code"`
	Type     catalog.EntityType `json:"-"`
	Fields   map[string]any     `json:"fields"`
	Metadata json.RawMessage    `json:"metadata,omitempty"`
}

// Parsed holds every entity of an archive grouped by type, each group in
// archive order.
type Parsed struct {
	Entities map[string][]Entity
}

// Of returns the entities of one type.
func (p *Parsed) Of(et catalog.EntityType) []Entity {
	return p.Entities[et.Name]
}

// Count returns the total number of entities.
func (p *Parsed) Count() int {
	n := 0
	for _, list := range p.Entities {
		n += len(list)
	}
	return n
}

// Parser turns archive bytes into a Parsed catalog.
type Parser struct {
	expander *Expander
}

// NewParser creates a parser backed by the given expander.
func NewParser(expander *Expander) *Parser {
	return &Parser{expander: expander}
}

// Parse decodes and validates an archive. Schema and reference problems are
// returned as *ParseError.
func (p *Parser) Parse(ctx context.Context, content []byte) (*Parsed, error) {
	files, err := p.expander.Expand(ctx, content)
	if err != nil {
		return nil, err
	}

	parsed := &Parsed{Entities: make(map[string][]Entity, len(catalog.EntityTypes))}
	for _, et := range catalog.EntityTypes {
		file, ok := files[et.File]
		if !ok {
			continue
		}
		entities, err := decodeFile(et, file.Content)
		if err != nil {
			return nil, err
		}
		parsed.Entities[et.Name] = entities
	}

	if err := checkReferences(parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// Parse decodes an archive with default expansion limits.
func Parse(ctx context.Context, content []byte) (*Parsed, error) {
	return NewParser(NewExpander(DefaultExpandOptions(), zerolog.Nop())).Parse(ctx, content)
}

func decodeFile(et catalog.EntityType, content []byte) ([]Entity, error) {
	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("%s is not a list of objects", et.File)}
	}

	entities := make([]Entity, 0, len(rows))
	codes := make(map[string]struct{}, len(rows))
	ids := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		if row == nil {
			return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] is not an object", et.File, i)}
		}

		id, _ := row[et.IDKey].(string)
		if !catalog.ValidEntityID(id) {
			return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] has invalid %s", et.File, i, et.IDKey)}
		}
		id = strings.ToLower(id)
		code, _ := row[et.CodeKey].(string)
		if code == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] has empty %s", et.File, i, et.CodeKey)}
		}
		if _, dup := codes[code]; dup {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate %s code '%s'", et.Name, code)}
		}
		if _, dup := ids[id]; dup {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate %s id '%s'", et.Name, id)}
		}
		codes[code] = struct{}{}
		ids[id] = struct{}{}

		entity := Entity{ID: id, Code: code, Type: et, Fields: make(map[string]any, len(row))}
		for k, v := range row {
			switch k {
			case et.IDKey, et.CodeKey:
			case "metadata":
				raw, err := json.Marshal(v)
				if err != nil {
					return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] has invalid metadata", et.File, i)}
				}
				entity.Metadata = raw
			default:
				entity.Fields[k] = v
			}
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// checkReferences verifies that storefronts, promotions and overrides only
// point at codes present in the same archive.
func checkReferences(p *Parsed) error {
	products := codeSet(p.Of(catalog.Product))
	storefronts := codeSet(p.Of(catalog.Storefront))

	for _, sf := range p.Of(catalog.Storefront) {
		for _, ref := range references(sf.Fields["products"]) {
			if _, ok := products[ref]; !ok {
				return &ParseError{Reason: fmt.Sprintf("storefront '%s' references unknown product '%s'", sf.Code, ref)}
			}
		}
	}
	for _, promo := range p.Of(catalog.Promotion) {
		for _, ref := range references(promo.Fields["storefronts"]) {
			if _, ok := storefronts[ref]; !ok {
				return &ParseError{Reason: fmt.Sprintf("promotion '%s' references unknown storefront '%s'", promo.Code, ref)}
			}
		}
	}
	for _, ov := range p.Of(catalog.Override) {
		for _, ref := range references(ov.Fields["product"]) {
			if _, ok := products[ref]; !ok {
				return &ParseError{Reason: fmt.Sprintf("override '%s' references unknown product '%s'", ov.Code, ref)}
			}
		}
	}
	return nil
}

func codeSet(entities []Entity) map[string]struct{} {
	set := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		set[e.Code] = struct{}{}
	}
	return set
}

// references extracts referenced codes from a string, an object with a
// "code" key, or a list of either.
func references(v any) []string {
	switch ref := v.(type) {
	case nil:
		return nil
	case string:
		return []string{ref}
	case map[string]any:
		if code, ok := ref["code"].(string); ok {
			return []string{code}
		}
		return nil
	case []any:
		var out []string
		for _, item := range ref {
			out = append(out, references(item)...)
		}
		sort.Strings(out)
		return out
	default:
		return nil
	}
}
