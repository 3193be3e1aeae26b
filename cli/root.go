// Package cli provides the newsarchive command-line interface: setup,
// acquisition, OCR processing, search, export/import, maintenance,
// backup, and the long-running pipeline service, all driven from one
// cobra root command with viper-backed configuration.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"newsarchive/config"
	"newsarchive/logging"
)

var cfgFile string

// cfg and log are populated by initConfig before any command's Run
// executes, and are what subcommand files reach for.
var cfg *config.Config
var log *logging.ContextLogger

// RootCmd is the newsarchive entry point.
var RootCmd = &cobra.Command{
	Use:   "newsarchive",
	Short: "acquire, OCR, and index historical newspaper pages",
	Long: `newsarchive acquires newspaper pages from the Library of Congress
Chronicling America archive, runs OCR and layout analysis over them,
indexes the extracted text, and promotes reviewed article segments into
a separate events database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.newsarchive/config.yaml)")
	viper.BindPFlag("config", RootCmd.PersistentFlags().Lookup("config"))
}

// initConfig loads the configuration file plus NEWSARCHIVE_* environment
// overrides and constructs the shared logger, the way the teacher's
// root command resolves viper before any subcommand runs.
func initConfig() {
	path := cfgFile
	if path == "" {
		defaultPath, err := config.DefaultPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "newsarchive: configuration error:", err)
		os.Exit(2)
	}
	cfg = loaded

	level, parseErr := parseLevel(cfg.Log.Level)
	if parseErr != nil {
		level = logging.LevelInfo
	}
	logger := logging.New(logging.Config{Level: level, Format: cfg.Log.Format})
	log = logging.NewContextLogger(logger, nil)
}

func parseLevel(s string) (logging.Level, error) {
	switch s {
	case "debug":
		return logging.LevelDebug, nil
	case "info":
		return logging.LevelInfo, nil
	case "warn":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	default:
		return logging.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
