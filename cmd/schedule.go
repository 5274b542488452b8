package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	coreadvice "github.com/kilianp07/smartcharge/core/advice"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/scheduler"
	"github.com/kilianp07/smartcharge/pkg/export"
)

type scheduleOptions struct {
	soc       float64
	capacity  float64
	rate      float64
	departure string
	now       string
	forecast  string
	model     string
	history   historyFlags
	format    string
	html      string
}

func newScheduleCmd() *cobra.Command {
	var o scheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the savings of delaying a charge by 0 to 23 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, o)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&o.soc, "soc", 0, "state of charge in percent")
	f.Float64Var(&o.capacity, "capacity", 0, "usable battery capacity in kWh")
	f.Float64Var(&o.rate, "rate", 0, "charging rate in kW")
	f.StringVar(&o.departure, "departure", "", `departure as RFC3339 or wall clock ("8:30AM", "20:30")`)
	f.StringVar(&o.now, "now", "", "evaluate as of this RFC3339 time instead of the current time")
	f.StringVar(&o.forecast, "forecast", "", "hourly CSV whose first 24 hours are the forecast")
	f.StringVar(&o.model, "model", "model.json", "trained model, used when --forecast is not set")
	f.StringVar(&o.format, "format", "table", "output format: table, csv or json")
	f.StringVar(&o.html, "html", "", "also write an HTML chart to this file")
	o.history.register(cmd)
	_ = cmd.MarkFlagRequired("soc")
	_ = cmd.MarkFlagRequired("capacity")
	_ = cmd.MarkFlagRequired("rate")
	_ = cmd.MarkFlagRequired("departure")
	return cmd
}

func runSchedule(cmd *cobra.Command, o scheduleOptions) error {
	now, err := parseNow(o.now)
	if err != nil {
		return fmt.Errorf("--now: %w", err)
	}
	dep, err := parseDeparture(o.departure, now)
	if err != nil {
		return err
	}
	job := model.ChargeJob{SoC: o.soc, BatteryKWh: o.capacity, ChargingKW: o.rate, Departure: dep}

	fc, start, err := scheduleForecast(o, now)
	if err != nil {
		return err
	}
	profile, err := scheduler.Schedule(job, fc, now)
	if err != nil {
		return err
	}
	if err := writeProfile(cmd, o.format, profile, now); err != nil {
		return err
	}
	if o.html == "" {
		return nil
	}
	f, err := os.Create(o.html)
	if err != nil {
		return err
	}
	if err := export.WriteHTML(f, start, fc, profile); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func scheduleForecast(o scheduleOptions, now time.Time) (model.Window, time.Time, error) {
	if o.forecast != "" {
		return loadForecast(o.forecast)
	}
	if !o.history.set() {
		return model.Window{}, time.Time{}, fmt.Errorf("one of --forecast or --history/--price/--emission is required")
	}
	m, err := forecast.Load(o.model)
	if err != nil {
		return model.Window{}, time.Time{}, fmt.Errorf("load model: %w", err)
	}
	history, start, err := o.history.window(now)
	if err != nil {
		return model.Window{}, time.Time{}, err
	}
	fc, err := coreadvice.NewAdvisor(m).Forecast(history)
	return fc, start, err
}

func writeProfile(cmd *cobra.Command, format string, p model.SavingsProfile, now time.Time) error {
	out := cmd.OutOrStdout()
	switch format {
	case "csv":
		return export.WriteCSV(out, p)
	case "json":
		return export.WriteJSON(out, p)
	case "table":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "hours to charge: %.2f, baseline cost %.4f, baseline emissions %.2f\n", p.HoursToCharge, p.BaselineCost, p.BaselineEmitted)
		fmt.Fprintln(tw, "DELAY\tSTART\tCOST_SAVING\tEMISSION_SAVING")
		for _, r := range export.Rows(p) {
			fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.2f\n", r.DelayHours, now.Add(time.Duration(r.DelayHours)*time.Hour).Format("15:04"), r.CostSavings, r.EmissionSavings)
		}
		fmt.Fprintf(tw, "best cost delay: %dh, best emission delay: %dh\n", p.BestCostDelay(), p.BestEmissionDelay())
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
