package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/smartcharge/core/model"
)

// WriteHTML renders a page with the forecast (price and emission per hour
// from start) and the savings of every delay. An empty forecast window
// omits the forecast charts.
func WriteHTML(w io.Writer, start time.Time, fc model.Window, p model.SavingsProfile) error {
	page := components.NewPage()
	page.PageTitle = "Charging advice"
	if fc.Len() > 0 {
		page.AddCharts(forecastChart(start, fc))
	}
	page.AddCharts(savingsChart(p))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func forecastChart(start time.Time, fc model.Window) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "24h forecast", Subtitle: fmt.Sprintf("mean price %.4f", fc.MeanPrice())}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price / Emission"}),
	)
	hours := make([]string, fc.Len())
	price := make([]opts.LineData, fc.Len())
	emission := make([]opts.LineData, fc.Len())
	start = start.UTC().Truncate(time.Hour)
	for h := 0; h < fc.Len(); h++ {
		hours[h] = start.Add(time.Duration(h) * time.Hour).Format("2006-01-02 15:04")
		price[h] = opts.LineData{Value: fc.Price(h)}
		emission[h] = opts.LineData{Value: fc.Emission(h)}
	}
	line.SetXAxis(hours).
		AddSeries("Price", price).
		AddSeries("Emission", emission)
	return line
}

func savingsChart(p model.SavingsProfile) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Savings by start delay",
			Subtitle: fmt.Sprintf("best cost delay %dh, best emission delay %dh", p.BestCostDelay(), p.BestEmissionDelay()),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Delay (h)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Saving"}),
	)
	delays := make([]string, p.Scenarios())
	cost := make([]opts.LineData, p.Scenarios())
	emission := make([]opts.LineData, p.Scenarios())
	for d := range delays {
		delays[d] = strconv.Itoa(d)
		cost[d] = opts.LineData{Value: p.CostSavings[d]}
		emission[d] = opts.LineData{Value: p.EmissionSavings[d]}
	}
	line.SetXAxis(delays).
		AddSeries("Cost savings", cost).
		AddSeries("Emission savings", emission)
	return line
}
