package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	coreadvice "github.com/kilianp07/smartcharge/core/advice"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/pkg/export"
)

type forecastOptions struct {
	model   string
	history historyFlags
	format  string
}

func newForecastCmd() *cobra.Command {
	var o forecastOptions
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Predict the next 24 hours of price and emission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.model, "model", "model.json", "trained model file")
	cmd.Flags().StringVar(&o.format, "format", "table", "output format: table, csv or json")
	o.history.register(cmd)
	return cmd
}

func runForecast(cmd *cobra.Command, o forecastOptions) error {
	if !o.history.set() {
		return fmt.Errorf("one of --history or --price/--emission is required")
	}
	m, err := forecast.Load(o.model)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	history, start, err := o.history.window(time.Now())
	if err != nil {
		return err
	}
	fc, err := coreadvice.NewAdvisor(m).Forecast(history)
	if err != nil {
		return err
	}
	return writeForecast(cmd, o.format, start, fc)
}

func writeForecast(cmd *cobra.Command, format string, start time.Time, fc model.Window) error {
	out := cmd.OutOrStdout()
	switch format {
	case "csv":
		return export.WriteForecastCSV(out, start, fc)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(coreadvice.Series{Price: fc.Prices(), Emission: fc.Emissions()})
	case "table":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tPRICE\tEMISSION")
		for h := 0; h < fc.Len(); h++ {
			fmt.Fprintf(tw, "%s\t%.4f\t%.2f\n", start.Add(time.Duration(h)*time.Hour).Format(time.RFC3339), fc.Price(h), fc.Emission(h))
		}
		fmt.Fprintf(tw, "mean\t%.4f\t\n", fc.MeanPrice())
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
