package cli

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"newsarchive/repo"
)

var (
	importSourceType string
	importSourcePath string
	importMapping    string
)

// columnMapping names the repository Page field each source column
// supplies. Fields not present in the mapping keep their zero value.
type columnMapping struct {
	PageID        string `json:"page_id"`
	PublicationID string `json:"publication_id"`
	IssueDate     string `json:"issue_date"`
	Sequence      string `json:"sequence"`
	SourceSystem  string `json:"source_system"`
	Status        string `json:"status"`
	ImageRef      string `json:"image_ref"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "import page rows from a CSV file or a SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var mapping columnMapping
		if err := json.Unmarshal([]byte(importMapping), &mapping); err != nil {
			return fmt.Errorf("parse --mapping: %w", err)
		}

		var rows []map[string]string
		switch importSourceType {
		case "csv":
			rows, err = readCSVRows(importSourcePath)
		case "sqlite":
			rows, err = readSQLiteRows(importSourcePath)
		default:
			return fmt.Errorf("unknown --source-type %q", importSourceType)
		}
		if err != nil {
			return err
		}

		imported := 0
		for _, row := range rows {
			page, err := rowToPage(row, mapping)
			if err != nil {
				log.WithError(err).Warn("skip row with invalid field")
				continue
			}
			if err := a.store.ImportPage(ctx, page); err != nil {
				return err
			}
			imported++
		}

		log.WithField("count", imported).Info("pages imported")
		return nil
	},
}

func rowToPage(row map[string]string, m columnMapping) (repo.Page, error) {
	p := repo.Page{
		PageID:        row[m.PageID],
		PublicationID: row[m.PublicationID],
		SourceSystem:  row[m.SourceSystem],
		Status:        repo.PageStatus(row[m.Status]),
		ImageRef:      row[m.ImageRef],
	}
	if p.PageID == "" {
		return repo.Page{}, fmt.Errorf("row missing page_id")
	}
	if raw := row[m.IssueDate]; raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return repo.Page{}, fmt.Errorf("parse issue_date %q: %w", raw, err)
		}
		p.IssueDate = t
	}
	if raw := row[m.Sequence]; raw != "" {
		seq, err := strconv.Atoi(raw)
		if err != nil {
			return repo.Page{}, fmt.Errorf("parse sequence %q: %w", raw, err)
		}
		p.Sequence = seq
	}
	return p, nil
}

func readCSVRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var out []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// readSQLiteRows reads every row of the first table named in the
// database's sqlite_master, generically enough to cover the simple
// flat export formats this command is meant to migrate from.
func readSQLiteRows(path string) ([]map[string]string, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}
	defer db.Close()

	var table string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' LIMIT 1`).Scan(&table); err != nil {
		return nil, fmt.Errorf("find source table: %w", err)
	}

	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return nil, fmt.Errorf("query source table: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]string
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		row := make(map[string]string, len(cols))
		for i, col := range cols {
			row[col] = fmt.Sprintf("%v", values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func init() {
	importCmd.Flags().StringVar(&importSourceType, "source-type", "", "csv|sqlite")
	importCmd.Flags().StringVar(&importSourcePath, "source-path", "", "path to the source file")
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "JSON object mapping page fields to source columns")
	importCmd.MarkFlagRequired("source-type")
	importCmd.MarkFlagRequired("source-path")
	importCmd.MarkFlagRequired("mapping")
	RootCmd.AddCommand(importCmd)
}
