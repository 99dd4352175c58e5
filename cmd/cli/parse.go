package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/spf13/cobra"
)

var parseOutput string

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <archive.zip>",
	Short: "Validate a catalog archive offline",
	Long: `Parse a local catalog archive the same way the publish pipeline does. Every
entity file is decoded, ids and codes are checked and cross references between
entity types are resolved. Nothing is stored.`,
	Example: `  catalog-service parse ./ru.wot-MAIN-7.zip
  catalog-service parse ./ru.wot-MAIN-7.zip --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseOutput, "output", "table", "Output format: table or json")
}

func runParse(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	logger.Info().Str("file", filePath).Msg("Reading archive")
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	parsed, err := archive.Parse(cmd.Context(), content)
	if err != nil {
		return fmt.Errorf("archive is invalid: %w", err)
	}

	switch strings.ToLower(parseOutput) {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(parsed.Entities)
	case "table":
		outputParseTable(filePath, parsed)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", parseOutput)
	}
}

func outputParseTable(file string, parsed *archive.Parsed) {
	fmt.Printf("\nParse Results for %s\n", file)
	fmt.Println(strings.Repeat("-", 60))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Entity Type\tFile\tCount\n")
	fmt.Fprintf(w, "-----------\t----\t-----\n")
	for _, et := range catalog.EntityTypes {
		fmt.Fprintf(w, "%s\t%s\t%d\n", et.Name, et.File, len(parsed.Of(et)))
	}
	fmt.Fprintf(w, "Total\t\t%d\n", parsed.Count())
	w.Flush()
}
