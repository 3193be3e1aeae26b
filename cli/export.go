package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsarchive/repo"
)

var (
	exportOutput      string
	exportFormat      string
	exportPublication string
	exportStatus      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "export repository pages to JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.store.SearchPages(ctx, repo.SearchPredicate{
			PublicationID: exportPublication,
			Status:        repo.PageStatus(exportStatus),
		}, 1000000, 0)
		if err != nil {
			return err
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()

		switch exportFormat {
		case "csv":
			return exportCSV(f, pages)
		case "json", "":
			return exportJSON(f, pages)
		default:
			return fmt.Errorf("unknown export format %q", exportFormat)
		}
	},
}

func exportJSON(f *os.File, pages []repo.Page) error {
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(pages)
}

func exportCSV(f *os.File, pages []repo.Page) error {
	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"page_id", "publication_id", "issue_date", "sequence", "source_system", "status", "image_ref"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range pages {
		row := []string{
			p.PageID, p.PublicationID, p.IssueDate.Format("2006-01-02"),
			fmt.Sprintf("%d", p.Sequence), p.SourceSystem, string(p.Status), p.ImageRef,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "destination file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json|csv")
	exportCmd.Flags().StringVar(&exportPublication, "publication", "", "filter by publication LCCN")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by page status")
	exportCmd.MarkFlagRequired("output")
	RootCmd.AddCommand(exportCmd)
}
