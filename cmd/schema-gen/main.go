// Schema Generator
//
// Generates JSON Schema files for the request and response bodies of the
// catalog API, for clients that validate payloads outside Go.
//
// Usage:
//
//	go run ./cmd/schema-gen -out ./schemas
//
// Output:
//
//	schemas/publish.json
//	schemas/catalogs.json
//	schemas/errors.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kosarica/catalog-service/internal/diff"
	"github.com/kosarica/catalog-service/internal/handlers"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

var groups = []SchemaGroup{
	{
		Name: "publish",
		Types: []any{
			handlers.PublishRequest{},
			handlers.PublishV2Request{},
			handlers.RepublishRequest{},
			handlers.MigrateRequest{},
			handlers.PublishV2Response{},
			handlers.PublicationInfo{},
		},
		Output: "publish.json",
	},
	{
		Name: "catalogs",
		Types: []any{
			handlers.CatalogInfo{},
			handlers.EntityCatalog{},
			handlers.EntityTitle{},
			diff.Record{},
		},
		Output: "catalogs.json",
	},
	{
		Name: "errors",
		Types: []any{
			handlers.ErrorResponse{},
		},
		Output: "errors.json",
	},
}

func main() {
	outputDir := flag.String("out", "./schemas", "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, group := range groups {
		outputPath := filepath.Join(*outputDir, group.Output)
		if err := writeSchema(generateGroupSchema(group), outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", group.Output, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outputPath)
	}
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{}

	definitions := make(map[string]any)
	for _, t := range group.Types {
		schema := reflector.Reflect(t)
		for name, def := range schema.Definitions {
			definitions[name] = def
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://catalogs.internal/schemas/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s API types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
