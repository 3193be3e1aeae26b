package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	maintVacuum       bool
	maintAnalyze      bool
	maintRebuildIndex bool
	maintReconcile    bool
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "vacuum/analyze the repository database and rebuild the search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if maintVacuum {
			if err := a.db.Exec(ctx, "VACUUM"); err != nil {
				return err
			}
			log.Info("repository database vacuumed")
		}
		if maintAnalyze {
			if err := a.db.Exec(ctx, "ANALYZE"); err != nil {
				return err
			}
			log.Info("repository database analyzed")
		}
		if maintRebuildIndex {
			repoCount, err := a.idx.Reindex(ctx, a.store, a.mainDB, "repository")
			if err != nil {
				return err
			}
			mainCount, err := a.idx.Reindex(ctx, a.store, a.mainDB, "main")
			if err != nil {
				return err
			}
			log.WithField("documents", humanize.Comma(int64(repoCount+mainCount))).Info("search index rebuilt")
		}

		reclaimed, err := a.q.ReclaimExpiredLeases(ctx)
		if err != nil {
			return err
		}
		if reclaimed > 0 {
			log.WithField("count", reclaimed).Info("expired task leases reclaimed")
		}

		if maintReconcile {
			result, err := a.connector.Reconcile(ctx)
			if err != nil {
				return err
			}
			log.WithFields(map[string]interface{}{
				"attached": result.Attached,
				"removed":  result.Removed,
			}).Info("connector reconciled")
		} else {
			orphans, err := a.connector.SyncFromMain(ctx)
			if err != nil {
				return err
			}
			if len(orphans) > 0 {
				log.WithField("count", len(orphans)).Warn("segment links reference main-store events with no backing repository segment")
			}
		}

		return nil
	},
}

func init() {
	maintenanceCmd.Flags().BoolVar(&maintVacuum, "vacuum", false, "VACUUM the repository database")
	maintenanceCmd.Flags().BoolVar(&maintAnalyze, "analyze", false, "ANALYZE the repository database")
	maintenanceCmd.Flags().BoolVar(&maintRebuildIndex, "rebuild-index", false, "rebuild the full-text search index")
	maintenanceCmd.Flags().BoolVar(&maintReconcile, "reconcile", false, "attach or remove stale event_links against the repository store")
	RootCmd.AddCommand(maintenanceCmd)
}
