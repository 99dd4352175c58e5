package docs_test

import (
	"context"
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kosarica/catalog-service/docs"
	"github.com/kosarica/catalog-service/internal/handlers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type operation struct {
	Parameters []struct {
		Name   string `json:"name"`
		In     string `json:"in"`
		Schema struct {
			Ref string `json:"$ref"`
		} `json:"schema"`
	} `json:"parameters"`
}

type document struct {
	Info struct {
		Title string `json:"title"`
	} `json:"info"`
	Paths       map[string]map[string]operation `json:"paths"`
	Definitions map[string]struct {
		Required   []string       `json:"required"`
		Properties map[string]any `json:"properties"`
	} `json:"definitions"`
}

func readDoc(t *testing.T) document {
	t.Helper()
	var doc document
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))
	return doc
}

var pathParam = regexp.MustCompile(`:(\w+)`)

func TestEveryAPIRouteIsDocumented(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := handlers.NewRouter(context.Background(), handlers.New(handlers.Deps{Logger: zerolog.Nop()}), handlers.RouterOptions{})
	doc := readDoc(t)
	assert.Equal(t, "Catalog Service API", doc.Info.Title)

	var checked int
	for _, r := range router.Routes() {
		if !strings.HasPrefix(r.Path, "/api/") && r.Path != "/ping" && r.Path != "/healthy" {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "{$1}")
		ops, ok := doc.Paths[path]
		if !assert.True(t, ok, "%s is not documented", path) {
			continue
		}
		assert.Contains(t, ops, strings.ToLower(r.Method), "%s %s is not documented", r.Method, path)
		checked++
	}
	assert.Equal(t, 23, checked)
}

// bindingRequired lists the json names of the fields binding requires.
func bindingRequired(v any) []string {
	var names []string
	typ := reflect.TypeOf(v)
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if strings.Contains(f.Tag.Get("binding"), "required") {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func TestRequestBodiesMatchBinding(t *testing.T) {
	doc := readDoc(t)

	bodies := map[string]any{
		"handlers.PublishRequest":   handlers.PublishRequest{},
		"handlers.PublishV2Request": handlers.PublishV2Request{},
		"handlers.RepublishRequest": handlers.RepublishRequest{},
		"handlers.MigrateRequest":   handlers.MigrateRequest{},
	}
	for name, body := range bodies {
		def, ok := doc.Definitions[name]
		require.True(t, ok, name)
		required := append([]string(nil), def.Required...)
		sort.Strings(required)
		assert.Equal(t, bindingRequired(body), required, name)
	}

	migrate := doc.Definitions["handlers.MigrateRequest"]
	assert.Equal(t, map[string]any{"type": "string", "format": "date-time"}, migrate.Properties["activated_at"])
	assert.Equal(t, map[string]any{"type": "string", "format": "date-time"}, migrate.Properties["terminated_at"])
}

func TestPostBodiesReferenceDefinitions(t *testing.T) {
	doc := readDoc(t)

	for path, ops := range doc.Paths {
		op, ok := ops["post"]
		if !ok {
			continue
		}
		var refs []string
		for _, p := range op.Parameters {
			if p.In == "body" {
				refs = append(refs, p.Schema.Ref)
			}
		}
		require.Len(t, refs, 1, path)
		def := strings.TrimPrefix(refs[0], "#/definitions/")
		assert.Contains(t, doc.Definitions, def, path)
	}
}

func TestDiffQueryParameters(t *testing.T) {
	doc := readDoc(t)
	op := doc.Paths["/api/v1/catalogs/{code}/entities/{type}/diff/{source}"]["get"]

	var query []string
	for _, p := range op.Parameters {
		if p.In == "query" {
			query = append(query, p.Name)
		}
	}

	var bound []string
	typ := reflect.TypeOf(handlers.DiffQuery{})
	for i := 0; i < typ.NumField(); i++ {
		bound = append(bound, typ.Field(i).Tag.Get("form"))
	}
	sort.Strings(query)
	sort.Strings(bound)
	assert.Equal(t, bound, query)
	assert.Contains(t, doc.Definitions, "diff.Record")
}
