package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitS3Path(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantBucket string
		wantKey    string
	}{
		{"bucket and key", "s3://my-bucket/backups/2024/archive.tar.gz", "my-bucket", "backups/2024/archive.tar.gz"},
		{"bucket only", "s3://my-bucket", "my-bucket", ""},
		{"bucket with trailing slash", "s3://my-bucket/", "my-bucket", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key := splitS3Path(tt.in)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestWriteTarGzRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "originals", "2024"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "originals", "2024", "page.txt"), []byte("hello newspaper"), 0o644))

	out := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, writeTarGz(src, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
		if hdr.Name == filepath.Join("originals", "2024", "page.txt") {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			assert.Equal(t, "hello newspaper", string(data))
		}
	}
	assert.Contains(t, names, filepath.Join("originals", "2024", "page.txt"))
}

func TestCreateArchiveLocalOutput(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "page.txt"), []byte("data"), 0o644))

	out := filepath.Join(t.TempDir(), "archive.tar.gz")
	err := CreateArchive(context.Background(), src, out, nil)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
