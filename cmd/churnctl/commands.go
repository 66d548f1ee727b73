package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"churn-predictor/internal/app"
	"churn-predictor/internal/batch"
	"churn-predictor/internal/config"
	"churn-predictor/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func load(ctx context.Context, configPath string, withHistory bool) (*app.Components, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := app.NewLogger(cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	components, err := app.Build(ctx, cfg, withHistory, logger)
	if err != nil {
		return nil, nil, err
	}
	return components, logger, nil
}

func predictCmd(configPath *string) *cobra.Command {
	var (
		inputPath  string
		outputPath string
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score every customer in a CSV file",
		Long: `Reads customers from a CSV file whose header uses the field names
(tenure, MonthlyCharges, Contract, ...) and writes one result line per row.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			components, logger, err := load(ctx, *configPath, record)
			if err != nil {
				return err
			}
			defer components.Close()
			defer logger.Sync()

			var in io.Reader = cmd.InOrStdin()
			if inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			rows, err := batch.ReadRows(in)
			if err != nil {
				return err
			}

			outcomes, err := components.Predictor.PredictBatch(ctx, rows)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outputPath != "-" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			logger.Info("Batch scored", zap.Int("rows", len(outcomes)))
			return batch.WriteOutcomes(out, outcomes)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "CSV file to score (- for stdin)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Result file (- for stdout)")
	cmd.Flags().BoolVar(&record, "record", false, "Save predictions to the history database")

	return cmd
}

func featuresCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Print the feature columns the model expects, in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, logger, err := load(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer components.Close()
			defer logger.Sync()

			for _, name := range components.Predictor.Features() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print an argon2id hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
