package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/forecast"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
)

type trainOptions struct {
	data     string
	out      string
	training string
	epochs   int
	metrics  bool
}

func newTrainCmd() *cobra.Command {
	var o trainOptions
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the forecaster on an hourly CSV and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTrain(ctx, cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.data, "data", "", "hourly CSV with time, price and emission columns")
	cmd.Flags().StringVar(&o.out, "out", "model.json", "where to write the trained model")
	cmd.Flags().StringVar(&o.training, "training", "", "training config file (yaml or json)")
	cmd.Flags().IntVar(&o.epochs, "epochs", 0, "override the number of epochs")
	cmd.Flags().BoolVar(&o.metrics, "metrics", false, "record epochs in the metrics sinks of --config")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runTrain(ctx context.Context, cmd *cobra.Command, o trainOptions) error {
	cfg := forecast.DefaultTrainingConfig()
	if o.training != "" {
		var err error
		if cfg, err = forecast.LoadTrainingConfig(o.training); err != nil {
			return fmt.Errorf("training config: %w", err)
		}
	}
	if o.epochs > 0 {
		cfg.Epochs = o.epochs
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if o.metrics {
		c, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if sink, err = coremetrics.NewMetricsSink(c.Metrics.Sinks); err != nil {
			return fmt.Errorf("metrics sinks: %w", err)
		}
	}

	m, hist, err := app.TrainFromCSV(ctx, o.data, cfg, sink, logger.New("training"))
	if err != nil {
		return err
	}
	if err := m.Save(o.out); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return writeHistory(cmd, hist, o.out)
}

func writeHistory(cmd *cobra.Command, hist forecast.History, out string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EPOCH\tTRAIN_LOSS\tVAL_LOSS")
	for i, l := range hist.TrainLoss {
		val := "-"
		if i < len(hist.ValLoss) && !math.IsNaN(hist.ValLoss[i]) {
			val = fmt.Sprintf("%.6f", hist.ValLoss[i])
		}
		fmt.Fprintf(tw, "%d\t%.6f\t%s\n", i+1, l, val)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	note := ""
	if hist.Stopped {
		note = " (early stop)"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "saved model to %s after %d epochs%s\n", out, len(hist.TrainLoss), note)
	return err
}
