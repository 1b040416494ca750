package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/newthinker/stratboard/internal/app"
	"github.com/newthinker/stratboard/internal/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestName        string
	ingestDescription string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Create a strategy from exported report files",
	Long:  "Parse, normalize and store report exports under a new strategy without going through the API",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "Strategy name (required)")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "Strategy description")

	ingestCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	files := make([]ingest.File, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		files = append(files, ingest.File{Name: filepath.Base(path), Data: data})
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	res, err := a.Ingest().Upload(cmd.Context(), ingest.UploadRequest{
		Name:        ingestName,
		Description: ingestDescription,
		Files:       files,
	})
	if res != nil && res.StrategyID != "" {
		printUpload(cmd, res)
	}
	if err != nil {
		log.Error("ingest failed", zap.Error(err))
		return err
	}
	return nil
}

func printUpload(cmd *cobra.Command, res *ingest.UploadResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Strategy: %s\n", res.StrategyID)
	fmt.Fprintf(out, "Reports stored: %d\n", res.Processed)
	for _, id := range res.ReportIDs {
		fmt.Fprintf(out, "  %s\n", id)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped: %d\n", len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "  %s: %s\n", s.FileName, s.Reason)
		}
	}
}
