package cli

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"newsarchive/backup"
)

var (
	backupOutput    string
	backupEndpoint  string
	backupRegion    string
	backupBucket    string
	backupAccessKey string
	backupSecretKey string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "archive the repository store's on-disk directory, optionally uploading to S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var target *backup.Target
		if backupBucket != "" {
			target = &backup.Target{
				Endpoint:  backupEndpoint,
				Region:    backupRegion,
				Bucket:    backupBucket,
				AccessKey: backupAccessKey,
				SecretKey: backupSecretKey,
			}
		}

		if err := backup.CreateArchive(ctx, cfg.RepositoryPath, backupOutput, target); err != nil {
			return err
		}

		if info, err := os.Stat(backupOutput); err == nil {
			log.WithField("size", humanize.Bytes(uint64(info.Size()))).WithField("path", backupOutput).Info("backup archive written")
		} else {
			log.WithField("path", backupOutput).Info("backup archive uploaded")
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupOutput, "output", "", "destination path, or s3://bucket/key")
	backupCmd.Flags().StringVar(&backupEndpoint, "s3-endpoint", "", "custom S3-compatible endpoint URL")
	backupCmd.Flags().StringVar(&backupRegion, "s3-region", "", "S3 region")
	backupCmd.Flags().StringVar(&backupBucket, "s3-bucket", "", "S3 bucket (enables upload when --output is s3://...)")
	backupCmd.Flags().StringVar(&backupAccessKey, "s3-access-key", "", "S3 access key")
	backupCmd.Flags().StringVar(&backupSecretKey, "s3-secret-key", "", "S3 secret key")
	backupCmd.MarkFlagRequired("output")
	RootCmd.AddCommand(backupCmd)
}
