package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsarchive/repo"
)

var (
	listPublication string
	listSource      string
	listStatus      string
	listLimit       int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list repository pages, optionally filtered by publication/status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.store.SearchPages(ctx, repo.SearchPredicate{
			PublicationID: listPublication,
			SourceSystem:  listSource,
			Status:        repo.PageStatus(listStatus),
		}, listLimit, 0)
		if err != nil {
			return err
		}

		for _, p := range pages {
			fmt.Printf("%s  %s  %s  seq=%d  status=%s\n",
				p.PageID, p.PublicationID, p.IssueDate.Format("2006-01-02"), p.Sequence, p.Status)
		}
		fmt.Printf("%d pages\n", len(pages))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listPublication, "publication", "", "filter by publication LCCN")
	listCmd.Flags().StringVar(&listSource, "source", "", "filter by source system")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by page status")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "max pages to list")
	RootCmd.AddCommand(listCmd)
}
