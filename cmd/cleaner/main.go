// Package main provides the cleaner CLI, which runs the mapping and cleaning
// pipeline over two local workbooks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"spreadsheet-data-cleaner/internal/app"
	"spreadsheet-data-cleaner/internal/config"
	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
	"spreadsheet-data-cleaner/internal/services"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cleaner",
		Short:         "Align messy spreadsheets to a template schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	return root
}

// newRunCommand creates the run subcommand
func newRunCommand() *cobra.Command {
	var (
		templateFlag  string
		messyFlag     string
		outFlag       string
		thresholdFlag float64
		previewFlag   int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Map and clean a messy workbook against a template",
		Example: `  cleaner run --template template.xlsx --messy messy.xlsx --out ./out
  cleaner run --template t.xlsx --messy m.xlsx --out ./out --threshold 0.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				cfg.SparsityThreshold = thresholdFlag
			}
			if cmd.Flags().Changed("preview-rows") {
				cfg.PreviewRows = previewFlag
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			application, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := os.MkdirAll(outFlag, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			result, err := application.Pipeline.Run(cmd.Context(), services.RunInput{
				Trigger:      models.TriggerCLI,
				TemplatePath: templateFlag,
				MessyPath:    messyFlag,
				CleanedPath:  filepath.Join(outFlag, models.CleanedFileName),
				RejectedPath: filepath.Join(outFlag, models.RejectedFileName),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&templateFlag, "template", "", "Template workbook defining the output columns")
	cmd.Flags().StringVar(&messyFlag, "messy", "", "Messy workbook to clean")
	cmd.Flags().StringVar(&outFlag, "out", ".", "Directory for cleaned_output.xlsx and rejected_rows.xlsx")
	cmd.Flags().Float64Var(&thresholdFlag, "threshold", models.DefaultSparsityThreshold,
		"Fraction of missing cells a row may have before it is rejected")
	cmd.Flags().IntVar(&previewFlag, "preview-rows", models.DefaultPreviewRows,
		"Raw rows shown to the model for header detection")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("messy")

	return cmd
}
