package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"newsarchive/kinderr"
)

// CreateArchive tars and gzips every file under repoBase into outputPath.
// When outputPath begins with "s3://<bucket>/<key>" and target is non-nil
// (its Bucket is replaced by the one in the path), the archive is
// written to a temporary file first and then uploaded, so a failed
// upload never leaves a partial object under the final key.
func CreateArchive(ctx context.Context, repoBase, outputPath string, target *Target) error {
	if strings.HasPrefix(outputPath, "s3://") && target != nil {
		tmp, err := os.CreateTemp("", "newsarchive-backup-*.tar.gz")
		if err != nil {
			return kinderr.Wrap(kinderr.Internal, err, "backup: create temp archive")
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		if err := writeTarGz(repoBase, tmpPath); err != nil {
			return err
		}

		bucket, key := splitS3Path(outputPath)
		target.Bucket = bucket
		uploader, err := NewUploader(ctx, *target)
		if err != nil {
			return err
		}
		return uploader.Upload(ctx, tmpPath, key)
	}

	return writeTarGz(repoBase, outputPath)
}

func splitS3Path(s3Path string) (bucket, key string) {
	trimmed := strings.TrimPrefix(s3Path, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func writeTarGz(repoBase, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "backup: create output file")
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(repoBase, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(repoBase, path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = relPath

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
