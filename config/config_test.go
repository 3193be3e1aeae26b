package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsForKeysMissingFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "repository_path: /data/newsarchive\ndatabase_path: postgres://localhost/newsarchive\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, 2, cfg.OCR.MaxWorkers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadMissingFileFailsValidationWithoutRequiredPaths(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository_path is required")
	assert.Contains(t, err.Error(), "database_path is required")
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
repository_path: /data/newsarchive
database_path: postgres://localhost/newsarchive
ocr:
  language: fra
  max_workers: 8
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/newsarchive", cfg.RepositoryPath)
	assert.Equal(t, "postgres://localhost/newsarchive", cfg.DatabasePath)
	assert.Equal(t, "fra", cfg.OCR.Language)
	assert.Equal(t, 8, cfg.OCR.MaxWorkers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "repository_path: /data/newsarchive\ndatabase_path: postgres://localhost/newsarchive\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("NEWSARCHIVE_OCR_LANGUAGE", "deu")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deu", cfg.OCR.Language)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &Config{
		RepositoryPath: "/data",
		DatabasePath:   "postgres://localhost/db",
		OCR:            OCR{MaxWorkers: 1},
		Downloader:     Downloader{MaxWorkers: 1, RetryAttempts: 1},
		Queue:          Queue{MaxConcurrent: 1, BatchSize: 1},
		Log:            Log{Level: "verbose", Format: "text"},
	}
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level must be one of")
}

func TestValidateAllGood(t *testing.T) {
	cfg := &Config{
		RepositoryPath: "/data",
		DatabasePath:   "postgres://localhost/db",
		OCR:            OCR{MaxWorkers: 1},
		Downloader:     Downloader{MaxWorkers: 1, RetryAttempts: 1},
		Queue:          Queue{MaxConcurrent: 1, BatchSize: 1},
		Log:            Log{Level: "info", Format: "text"},
	}
	assert.NoError(t, validate(cfg))
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Contains(t, path, ".newsarchive/config.yaml")
}
