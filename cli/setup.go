package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "create the repository, search, and main database schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := os.MkdirAll(cfg.RepositoryPath, 0o755); err != nil {
			return fmt.Errorf("create repository path: %w", err)
		}

		if err := a.store.Migrate(ctx); err != nil {
			return err
		}
		if err := a.idx.Migrate(ctx); err != nil {
			return err
		}
		if err := a.connector.Migrate(ctx); err != nil {
			return err
		}

		log.Info("schema setup complete")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(setupCmd)
}
