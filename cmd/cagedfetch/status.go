package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cagedfetch/pkg/ledger"
	"cagedfetch/pkg/logger"
	"cagedfetch/pkg/storage"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show processed folders and stored files",
	Long: `Show the local ingestion state: every year/month folder recorded in
the ledger and the number of extracted files in the durable store. No
connection to the FTP server is made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runStatus(cmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&outputDir, "output", "o", "", "local directory for downloaded and extracted files")
	statusCmd.Flags().StringVar(&ledgerFile, "ledger", "", "path of the processed-folders ledger file")
}

func runStatus(cmd *cobra.Command) {
	cfg := loadConfigOrExit(cmd)

	// Status output is plain text; keep the logger at error level
	quiet := cfg.Logging
	quiet.Level = "error"
	if err := logger.Initialize(&quiet); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	led, err := ledger.Open(cfg.Ledger.File, logger.GetLogger())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open ledger:", err)
		os.Exit(1)
	}

	fmt.Printf("Ledger: %s (%d folders processed)\n", led.Path(), led.Len())
	for _, key := range led.Keys() {
		fmt.Printf("  %s\n", key)
	}

	store, err := storage.NewStore(cfg.Output.Directory)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open durable store:", err)
		os.Exit(1)
	}

	fmt.Printf("Store:  %s (%d extracted files)\n", store.Dir(), store.Count())
}
