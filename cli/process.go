package cli

import (
	"github.com/spf13/cobra"

	"newsarchive/queue"
	"newsarchive/repo"
)

var (
	processPublication string
	processLanguage    string
	processReprocess   bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "enqueue ocr_extract and segment tasks for a publication's downloaded pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		// Without --reprocess only pages that have never been OCR'd (or
		// failed a prior attempt) are eligible; an explicit --reprocess
		// reruns every page of the publication regardless of status.
		statuses := []repo.PageStatus{repo.PageNew, repo.PageFailed}
		if processReprocess {
			statuses = []repo.PageStatus{"", repo.PageNew, repo.PageQueued, repo.PageProcessing, repo.PageOCRDone, repo.PageSegmented, repo.PageFailed}
		}

		var requests []queue.EnqueueRequest
		seen := map[string]bool{}
		for _, status := range statuses {
			pages, err := a.store.SearchPages(ctx, repo.SearchPredicate{
				PublicationID: processPublication,
				Status:        status,
			}, 10000, 0)
			if err != nil {
				return err
			}
			for _, page := range pages {
				if seen[page.PageID] {
					continue
				}
				seen[page.PageID] = true
				requests = append(requests, queue.EnqueueRequest{
					PageID:    page.PageID,
					Operation: "ocr_extract",
					Parameters: map[string]interface{}{
						"language": processLanguage,
					},
					Priority: 100,
				})
			}
		}

		if len(requests) == 0 {
			log.WithField("publication_id", processPublication).Info("no eligible pages to process")
			return nil
		}

		bulkID, err := a.q.BulkCreate(ctx, "process "+processPublication, "ocr_extract", requests)
		if err != nil {
			return err
		}

		for _, req := range requests {
			if err := a.store.MarkPageQueued(ctx, req.PageID); err != nil {
				return err
			}
		}

		log.WithField("bulk_id", bulkID).WithField("count", len(requests)).Info("processing tasks enqueued")
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processPublication, "publication", "", "publication LCCN to process")
	processCmd.Flags().StringVar(&processLanguage, "language", "", "OCR language hint override")
	processCmd.Flags().BoolVar(&processReprocess, "reprocess", false, "force reprocessing of already-processed pages")
	processCmd.MarkFlagRequired("publication")
	RootCmd.AddCommand(processCmd)
}
