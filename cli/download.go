package cli

import (
	"time"

	"github.com/spf13/cobra"

	"newsarchive/archive"
	"newsarchive/queue"
)

var (
	downloadLCCN      string
	downloadKeywords  string
	downloadState     string
	downloadDateStart string
	downloadDateEnd   string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "search the archive and enqueue matching pages for download",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		req := archive.SearchRequest{
			Keywords:      downloadKeywords,
			PublicationID: downloadLCCN,
			State:         downloadState,
			PageIndex:     1,
			PageSize:      50,
		}
		if downloadDateStart != "" {
			t, err := time.Parse("2006-01-02", downloadDateStart)
			if err != nil {
				return err
			}
			req.DateStart = t
		}
		if downloadDateEnd != "" {
			t, err := time.Parse("2006-01-02", downloadDateEnd)
			if err != nil {
				return err
			}
			req.DateEnd = t
		}

		result, err := a.archive.Search(ctx, req)
		if err != nil {
			return err
		}
		if result.Adjustment != nil {
			log.WithField("original", result.Adjustment.Original.Format("2006-01-02")).
				WithField("adjusted", result.Adjustment.Adjusted.Format("2006-01-02")).
				Info("date_start adjusted to publication's earliest known issue")
		}

		var requests []queue.EnqueueRequest
		for _, page := range result.Pages {
			requests = append(requests, queue.EnqueueRequest{
				Operation: "download",
				Parameters: map[string]interface{}{
					"page": map[string]interface{}{
						"lccn":         page.LCCN,
						"title":        page.Title,
						"issue_date":   page.IssueDate.Format("2006-01-02"),
						"sequence":     page.Sequence,
						"url":          page.URL,
						"pdf_url":      page.PDFURL,
						"jp2_url":      page.JP2URL,
						"ocr_text_url": page.OCRTextURL,
					},
				},
				Priority: 100,
			})
		}

		bulkID, err := a.q.BulkCreate(ctx, "download "+downloadLCCN, "download", requests)
		if err != nil {
			return err
		}

		log.WithField("bulk_id", bulkID).WithField("count", len(requests)).Info("download tasks enqueued")
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadLCCN, "lccn", "", "publication LCCN to search")
	downloadCmd.Flags().StringVar(&downloadKeywords, "keywords", "", "free-text keyword filter")
	downloadCmd.Flags().StringVar(&downloadState, "state", "", "publication state filter")
	downloadCmd.Flags().StringVar(&downloadDateStart, "date-start", "", "range start (yyyy-mm-dd)")
	downloadCmd.Flags().StringVar(&downloadDateEnd, "date-end", "", "range end (yyyy-mm-dd)")
	RootCmd.AddCommand(downloadCmd)
}
