package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// GlobalProperty is a runtime-tunable setting.
type GlobalProperty struct {
	ID          string  `db:"id"`
	Value       string  `db:"value"`
	Description *string `db:"description"`
}

// Properties returns every global property keyed by id.
func Properties(ctx context.Context, q Querier) (map[string]string, error) {
	sql, args, err := Builder.Select("id", "value", "description").From("global_property").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var props []GlobalProperty
	if err := pgxscan.Select(ctx, q, &props, sql, args...); err != nil {
		return nil, fmt.Errorf("select properties: %w", err)
	}
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p.ID] = p.Value
	}
	return out, nil
}

// SetProperty upserts a global property.
func SetProperty(ctx context.Context, q Querier, id, value string) error {
	sql, args, err := Builder.Insert("global_property").
		Columns("id", "value").
		Values(id, value).
		Suffix("ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = q.Exec(ctx, sql, args...)
	return err
}

// IntProperty reads an integer property, falling back to def when it is
// missing or malformed.
func IntProperty(props map[string]string, id string, def int) int {
	v, ok := props[id]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
