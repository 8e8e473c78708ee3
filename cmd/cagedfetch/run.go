package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cagedfetch/pkg/config"
	"cagedfetch/pkg/ftpwalk"
	"cagedfetch/pkg/ingest"
	"cagedfetch/pkg/logger"
)

var (
	// Run command flags
	ftpHost      string
	basePath     string
	outputDir    string
	ledgerFile   string
	years        []string
	keepArchives bool
	inMemory     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform one full ingestion pass over the FTP server",
	Long: `Perform one full ingestion pass: connect to the FTP server, walk
every year and month folder under the base path, download and extract each
month's archives, and decode the extracted tables.

Months recorded in the ledger file are skipped, so re-running after an
interruption resumes past everything already ingested.`,
	Example: `  # Ingest every year found under the base path
  cagedfetch run

  # Restrict to specific years and a custom output directory
  cagedfetch run --years 2024,2025 --output ./dados

  # Keep the downloaded .7z archives instead of deleting them
  cagedfetch run --keep-archives`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runIngestion(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&ftpHost, "host", "", "FTP host (default ftp.mtps.gov.br)")
	runCmd.Flags().StringVar(&basePath, "base-path", "", "remote base path of the microdata tree")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "local directory for downloaded and extracted files")
	runCmd.Flags().StringVar(&ledgerFile, "ledger", "", "path of the processed-folders ledger file")
	runCmd.Flags().StringSliceVar(&years, "years", nil, "restrict ingestion to these 4-digit years")
	runCmd.Flags().BoolVar(&keepArchives, "keep-archives", false, "keep downloaded .7z archives after extraction")
	runCmd.Flags().BoolVar(&inMemory, "in-memory", false, "stream archive members into memory instead of extracting to disk")
}

func runIngestion(cmd *cobra.Command, args []string) {
	cfg := loadConfigOrExit(cmd)

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("cagedfetch starting")

	log.WithField("host", cfg.FTP.Host).Info("Connecting to FTP server")
	session, err := ftpwalk.Dial(cfg.FTP.Host, cfg.FTP.Timeout)
	if err != nil {
		log.WithError(err).Error("Connection failed")
		os.Exit(1)
	}
	defer session.Quit()
	log.Info("Anonymous login successful")

	runner, err := ingest.New(cfg, session, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize ingestion")
		os.Exit(1)
	}

	result, err := runner.Run()
	if err != nil {
		log.WithError(err).Error("Ingestion aborted")
		os.Exit(1)
	}

	log.WithFields(result.Fields()).Info("Ingestion completed")
}

// loadConfigOrExit merges flags over the layered configuration.
func loadConfigOrExit(cmd *cobra.Command) *config.Config {
	flags := make(map[string]interface{})
	if ftpHost != "" {
		flags["host"] = ftpHost
	}
	if basePath != "" {
		flags["base-path"] = basePath
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if ledgerFile != "" {
		flags["ledger"] = ledgerFile
	}
	if len(years) > 0 {
		flags["years"] = years
	}
	if cmd.Flags().Changed("keep-archives") {
		flags["keep-archives"] = keepArchives
	}
	if cmd.Flags().Changed("in-memory") {
		flags["in-memory"] = inMemory
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	return cfg
}
