package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/handlers"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

var (
	publicationsLimit int
	publicationsXLSX  string
)

var publicationsCmd = &cobra.Command{
	Use:   "publications <title>",
	Short: "List the publish history of a title",
	Long: `List the publish tasks of a title, newest first, read straight from the
database. With --xlsx the list is written to a spreadsheet instead.`,
	Example: `  catalog-service publications ru.wot --limit 20
  catalog-service publications ru.wot --xlsx ./ru.wot-publications.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runPublications,
}

func init() {
	rootCmd.AddCommand(publicationsCmd)

	publicationsCmd.Flags().IntVar(&publicationsLimit, "limit", handlers.DefaultPublicationsLimit, "Number of publications")
	publicationsCmd.Flags().StringVar(&publicationsXLSX, "xlsx", "", "Write an .xlsx file to this path")
}

func runPublications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if publicationsLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	pool, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	title, err := database.GetTitle(ctx, pool, args[0])
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("title %s is not found", args[0])
	}
	if err != nil {
		return err
	}
	pubs, err := taskqueue.New(pool).Publications(ctx, title.ID, publicationsLimit)
	if err != nil {
		return err
	}

	list := make([]handlers.PublicationInfo, 0, len(pubs))
	for _, p := range pubs {
		list = append(list, handlers.PublicationInfo{
			Status:       p.PublicStatus(),
			PublishID:    p.ID,
			CatalogCode:  p.CatalogCode,
			TrackingID:   p.TrackingID,
			CreatedAt:    p.CreatedAt,
			ActivatedAt:  p.ActivatedAt,
			TerminatedAt: p.TerminatedAt,
			FinishedAt:   p.FinishedAt,
			Failure:      p.Failure,
		})
	}

	if publicationsXLSX == "" {
		printPublications(list)
		return nil
	}
	if err := writePublicationsXLSX(publicationsXLSX, args[0], list); err != nil {
		return err
	}
	logger.Info().Str("file", publicationsXLSX).Int("rows", len(list)).Msg("Publications exported")
	return nil
}

var publicationColumns = []string{
	"Publish ID", "Catalog", "Status", "Tracking ID", "Created", "Activated", "Terminated", "Finished", "Failure",
}

// writePublicationsXLSX writes one sheet named after the title with a
// header row.
func writePublicationsXLSX(path, title string, list []handlers.PublicationInfo) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := title
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(publicationColumns))
	for i, c := range publicationColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range list {
		row := []any{
			p.PublishID, p.CatalogCode, p.Status, p.TrackingID,
			cellTime(&p.CreatedAt),
			cellTime(p.ActivatedAt), cellTime(p.TerminatedAt), cellTime(p.FinishedAt),
			cellString(p.Failure),
		}
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func cellTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func cellString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
