package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kosarica/catalog-service/internal/handlers"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var (
	serverURL      string
	apiKey         string
	publishURL     string
	publishCode    string
	publishTitle   string
	publishType    string
	publishID      string
	publishTool    string
	publishTimeout time.Duration
	publishWait    bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Submit a catalog archive to a running server",
	Long: `Submit a catalog archive for publishing. With --catalog-code the v1 endpoint is
used and the version is fixed by the caller. With --title and --type the v2 endpoint
picks the next version. A publish id is generated unless --publish-id is given.`,
	Example: `  catalog-service publish --url https://cdn/archives/main-7.zip --catalog-code ru.wot-MAIN-7
  catalog-service publish --url https://cdn/archives/main.zip --title ru.wot --type MAIN --tool catool --wait`,
	RunE: runPublish,
}

var statusCmd = &cobra.Command{
	Use:     "status <publish_id>",
	Short:   "Show the state of a publish task",
	Example: `  catalog-service status 01HZ3Q8T8W3K6V7M0R8G4XJ5B2`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(publishCmd, statusCmd)

	for _, cmd := range []*cobra.Command{publishCmd, statusCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Catalog server base URL")
		cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("CATS_SERVER_API_KEY"), "Internal API key")
	}

	publishCmd.Flags().StringVar(&publishURL, "url", "", "Archive URL (required)")
	publishCmd.Flags().StringVar(&publishCode, "catalog-code", "", "Catalog code {title}-{type}-{version}")
	publishCmd.Flags().StringVar(&publishTitle, "title", "", "Title code (v2 publish)")
	publishCmd.Flags().StringVar(&publishType, "type", "MAIN", "Catalog type (v2 publish)")
	publishCmd.Flags().StringVar(&publishID, "publish-id", "", "Publish id (ULID, generated when empty)")
	publishCmd.Flags().StringVar(&publishTool, "tool", "", "Publishing tool notified about the outcome")
	publishCmd.Flags().BoolVar(&publishWait, "wait", false, "Poll the status until the task finishes")
	publishCmd.Flags().DurationVar(&publishTimeout, "timeout", 10*time.Minute, "Maximum time to wait with --wait")
	_ = publishCmd.MarkFlagRequired("url")
	publishCmd.MarkFlagsMutuallyExclusive("catalog-code", "title")
}

func newPublishID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if publishID == "" {
		publishID = newPublishID()
	}
	if publishCode == "" && publishTitle == "" {
		return fmt.Errorf("either --catalog-code or --title is required")
	}
	client := newAPIClient(serverURL, apiKey)

	var (
		trackingID string
		err        error
	)
	if publishCode != "" {
		path := "/api/v1/catalog/publish"
		if publishTool != "" {
			path = "/api/v1/" + url.PathEscape(publishTool) + "/catalog/publish"
		}
		trackingID, err = client.do(ctx, http.MethodPost, path, handlers.PublishRequest{
			URL:         publishURL,
			CatalogCode: publishCode,
			PublishID:   publishID,
		}, nil)
	} else {
		tool := publishTool
		if tool == "" {
			tool = "catool"
		}
		var resp handlers.PublishV2Response
		trackingID, err = client.do(ctx, http.MethodPost, "/api/v2/"+url.PathEscape(tool)+"/catalog/publish", handlers.PublishV2Request{
			URL:         publishURL,
			TitleCode:   publishTitle,
			CatalogType: publishType,
			PublishID:   publishID,
		}, &resp)
		publishCode = resp.CatalogCode
	}
	if err != nil {
		return err
	}

	logger.Info().
		Str("publish_id", publishID).
		Str("catalog_code", publishCode).
		Str("tracking_id", trackingID).
		Msg("Catalog accepted")
	fmt.Println(publishID)

	if !publishWait {
		return nil
	}
	info, err := waitFinished(ctx, client, publishID, publishTimeout)
	if err != nil {
		return err
	}
	printPublications(info)
	if info[0].Status == "FAILED" {
		return fmt.Errorf("publish %s failed", publishID)
	}
	return nil
}

// waitFinished polls the status endpoint until the task leaves PENDING and
// IN_PROGRESS.
func waitFinished(ctx context.Context, client *apiClient, id string, timeout time.Duration) ([]handlers.PublicationInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var info []handlers.PublicationInfo
		if _, err := client.do(ctx, http.MethodGet, "/api/v1/catalog/publish/"+url.PathEscape(id)+"/status", nil, &info); err != nil {
			return nil, err
		}
		if len(info) > 0 && info[0].Status != "PENDING" && info[0].Status != "IN_PROGRESS" {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("publish %s did not finish: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL, apiKey)
	var info []handlers.PublicationInfo
	if _, err := client.do(cmd.Context(), http.MethodGet, "/api/v1/catalog/publish/"+url.PathEscape(args[0])+"/status", nil, &info); err != nil {
		return err
	}
	if len(info) == 0 {
		return fmt.Errorf("publish %s is unknown", args[0])
	}
	printPublications(info)
	return nil
}

func printPublications(list []handlers.PublicationInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "PUBLISH ID\tCATALOG\tSTATUS\tCREATED\tFINISHED\tFAILURE\n")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.PublishID, p.CatalogCode, p.Status,
			p.CreatedAt.Format(time.RFC3339), formatTime(p.FinishedAt), deref(p.Failure))
	}
	w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
