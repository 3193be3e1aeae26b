package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsarchive/search"
)

var (
	searchSource    string
	searchLimit     int
	searchOffset    int
	searchFuzzy     bool
	searchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "search indexed page and segment text, or promoted events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		withMain := searchSource == "main" || searchSource == "all"
		a, err := openApp(ctx, withMain)
		if err != nil {
			return err
		}
		defer a.Close()

		raw := args[0]

		if searchSource == "repo" || searchSource == "all" || searchSource == "" {
			q := search.ParseQuery(raw)
			q.FuzzyFallback = searchFuzzy
			resp, err := a.idx.Search(ctx, q, search.SearchOptions{
				Limit:       searchLimit,
				Offset:      searchOffset,
				FacetFields: []string{"publication_id", "year"},
				Threshold:   searchThreshold,
			})
			if err != nil {
				return err
			}
			for _, r := range resp.Results {
				fuzzy := ""
				if r.Fuzzy {
					fuzzy = " (fuzzy)"
				}
				fmt.Printf("[repo] %s  %s  %s  rank=%.3f%s\n",
					r.Document.PublicationID, r.Document.IssueDate.Format("2006-01-02"), r.Document.DocID, r.Rank, fuzzy)
			}
			fmt.Printf("repo: %d total\n", resp.TotalItems)
		}

		if searchSource == "main" || searchSource == "all" {
			events, err := a.connector.SearchEvents(ctx, raw, searchLimit, searchOffset)
			if err != nil {
				return err
			}
			for _, e := range events {
				fmt.Printf("[main] %s  %s  %s\n", e.PublicationID, e.IssueDate.Format("2006-01-02"), e.EventID)
			}
			fmt.Printf("main: %d results\n", len(events))
		}

		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchSource, "source", "repo", "repo|main|all")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "max results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset")
	searchCmd.Flags().BoolVar(&searchFuzzy, "fuzzy", false, "force trigram fuzzy matching")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "fuzzy similarity threshold, 0-100 (0 keeps the index default)")
	RootCmd.AddCommand(searchCmd)
}
