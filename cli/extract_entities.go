package cli

import (
	"time"

	"github.com/spf13/cobra"

	"newsarchive/queue"
)

var (
	entitiesPublication string
	entitiesDateStart   string
	entitiesDateEnd     string
)

var extractEntitiesCmd = &cobra.Command{
	Use:   "extract-entities",
	Short: "enqueue entity extraction for a publication's segments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var start, end *time.Time
		if entitiesDateStart != "" {
			t, err := time.Parse("2006-01-02", entitiesDateStart)
			if err != nil {
				return err
			}
			start = &t
		}
		if entitiesDateEnd != "" {
			t, err := time.Parse("2006-01-02", entitiesDateEnd)
			if err != nil {
				return err
			}
			end = &t
		}

		segments, err := a.store.SegmentsForPublication(ctx, entitiesPublication, start, end)
		if err != nil {
			return err
		}

		var requests []queue.EnqueueRequest
		for _, seg := range segments {
			requests = append(requests, queue.EnqueueRequest{
				PageID:    seg.PageID,
				Operation: "extract_entities",
				Parameters: map[string]interface{}{
					"segment_id": seg.SegmentID,
					"text":       seg.Text,
				},
				Priority: 150,
			})
		}

		if len(requests) == 0 {
			log.WithField("publication_id", entitiesPublication).Info("no segments to extract entities from")
			return nil
		}

		bulkID, err := a.q.BulkCreate(ctx, "extract-entities "+entitiesPublication, "extract_entities", requests)
		if err != nil {
			return err
		}

		log.WithField("bulk_id", bulkID).WithField("count", len(requests)).Info("entity extraction tasks enqueued")
		return nil
	},
}

func init() {
	extractEntitiesCmd.Flags().StringVar(&entitiesPublication, "publication", "", "publication LCCN")
	extractEntitiesCmd.Flags().StringVar(&entitiesDateStart, "start-date", "", "range start (yyyy-mm-dd)")
	extractEntitiesCmd.Flags().StringVar(&entitiesDateEnd, "end-date", "", "range end (yyyy-mm-dd)")
	extractEntitiesCmd.MarkFlagRequired("publication")
	RootCmd.AddCommand(extractEntitiesCmd)
}
