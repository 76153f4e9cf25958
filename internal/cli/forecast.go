package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fincast-io/fincast/internal/config"
	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/engine"
	"github.com/fincast-io/fincast/internal/logger"
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().StringP("file", "f", "", "Path to a JSON dataset file")
	forecastCmd.Flags().StringP("company", "n", "", "Company name for the report")
	forecastCmd.Flags().IntP("weeks", "w", 12, "Forecast horizon in weeks")
	forecastCmd.Flags().Bool("ensemble", false, "Route eligible categories through the model ensemble")
	forecastCmd.Flags().Bool("json", false, "Emit the full forecast as JSON instead of a summary")
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Generate a one-shot forecast from a dataset file",
	Long: `Generate a cash-flow forecast from a JSON dataset file without
starting the daemon. The dataset carries transactions, declared date
bounds, and the opening balance.`,
	RunE: runForecast,
}

func runForecast(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return fmt.Errorf("dataset file required: fincastd forecast -f <file>")
	}
	company, _ := cmd.Flags().GetString("company")
	weeks, _ := cmd.Flags().GetInt("weeks")
	useEnsemble, _ := cmd.Flags().GetBool("ensemble")
	asJSON, _ := cmd.Flags().GetBool("json")

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}
	var dataset domain.HistoricalDataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return fmt.Errorf("parsing dataset: %w", err)
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	engCfg := engineConfig(cfg)
	engCfg.UseEnsemble = engCfg.UseEnsemble || useEnsemble

	eng := engine.New(engCfg, logger.New("warn"))
	forecast, err := eng.Generate(cmd.Context(), engine.Request{
		Dataset:     dataset,
		CompanyName: company,
		WeeksAhead:  weeks,
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(forecast)
	}
	printSummary(forecast)
	return nil
}

func printSummary(f domain.Forecast) {
	if f.CompanyName != "" {
		fmt.Fprintf(os.Stdout, "Forecast for %s\n", f.CompanyName)
	}
	fmt.Fprintf(os.Stdout, "Current balance:  %12.2f\n", f.CurrentBalance)
	fmt.Fprintf(os.Stdout, "Final balance:    %12.2f\n", f.FinalBalance())
	fmt.Fprintf(os.Stdout, "Minimum balance:  %12.2f\n", f.MinimumBalance())
	if burn := f.AverageWeeklyBurn(); burn > 0 {
		fmt.Fprintf(os.Stdout, "Avg weekly burn:  %12.2f\n", burn)
	}
	if weeks, runsOut := f.WeeksUntilZero(); runsOut {
		fmt.Fprintf(os.Stdout, "Weeks until zero: %d\n", weeks)
	}
	if f.ModelAccuracy != nil {
		fmt.Fprintf(os.Stdout, "Model accuracy:   %.0f%%\n", *f.ModelAccuracy*100)
	}

	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, "%-12s %14s %14s %14s\n", "Week of", "Balance", "Lower", "Upper")
	for _, p := range f.Points {
		fmt.Fprintf(os.Stdout, "%-12s %14.2f %14.2f %14.2f\n",
			p.Date.Format("2006-01-02"), p.PredictedBalance, p.ConfidenceLower, p.ConfidenceUpper)
	}
}
