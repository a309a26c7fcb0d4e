package main

import (
	"encoding/json"
	"fmt"
	"io"

	config "materials-forecast-api/configs"
	"materials-forecast-api/internal/bootstrap"

	"github.com/spf13/cobra"
)

// cliOptions グローバルフラグ
type cliOptions struct {
	historyFile string
	configFile  string
	seed        uint64
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Run building-materials demand forecasts from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.historyFile, "history-file", "", "seed history from an .xlsx/.csv workbook instead of the generator")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config-file", "", "YAML file with forecasting config templates")
	rootCmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "random seed for the history generator (0 = time based)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newForecastCmd(opts),
		newConfigsCmd(opts),
		newHistoryCmd(opts),
	)
	return rootCmd
}

// newApp フラグと環境変数からサービスを組み立てる。フラグが優先。
func newApp(opts *cliOptions) (*bootstrap.App, error) {
	cfg := config.LoadConfig()
	if opts.historyFile != "" {
		cfg.HistoryFile = opts.historyFile
	}
	if opts.configFile != "" {
		cfg.ForecastConfigFile = opts.configFile
	}
	if opts.seed != 0 {
		cfg.RandomSeed = opts.seed
	}
	// CLI は設定DBへの書き込みをしない
	cfg.ConfigDBPath = ""
	return bootstrap.New(cfg, bootstrap.NewLogger(opts.logLevel))
}

func newForecastCmd(opts *cliOptions) *cobra.Command {
	var productID, plantID, configID string

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Generate a forecast and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			forecast, err := app.Forecasts.GenerateForecast(cmd.Context(), productID, plantID, configID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), forecast)
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "product id (e.g. Aluminium-Sheets-001)")
	cmd.Flags().StringVar(&plantID, "plant", "", "plant id (e.g. plant001)")
	cmd.Flags().StringVar(&configID, "config", "", "forecasting config id (default construction_ensemble)")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("plant")
	return cmd
}

func newConfigsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configs",
		Short: "List forecasting configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			for _, cfg := range app.Forecasts.GetForecastingConfigs() {
				fmt.Fprintf(out, "%-24s %-22s horizon=%-4d accuracy=%.1f\n", cfg.ID, cfg.Algorithm, cfg.Horizon, cfg.Accuracy)
			}
			return nil
		},
	}
}

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	var productID, plantID string
	var last int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent historical records as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if last < 0 {
				return fmt.Errorf("--last must be >= 0")
			}
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			records := app.Forecasts.GetHistoricalData(productID, plantID)
			if last > 0 && len(records) > last {
				records = records[len(records)-last:]
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "product id")
	cmd.Flags().StringVar(&plantID, "plant", "", "plant id")
	cmd.Flags().IntVar(&last, "last", 7, "number of most recent days (0 = all)")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("plant")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
