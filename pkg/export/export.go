// Package export renders forecasts and savings profiles as JSON, CSV or an
// HTML chart page.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// ProfileRow is one delay of a savings profile.
type ProfileRow struct {
	DelayHours      int     `json:"delay_hours"`
	CostSavings     float64 `json:"cost_savings"`
	EmissionSavings float64 `json:"emission_savings"`
}

// ProfileDocument is the JSON layout of a savings profile.
type ProfileDocument struct {
	HoursToCharge     float64      `json:"hours_to_charge"`
	BaselineCost      float64      `json:"baseline_cost"`
	BaselineEmissions float64      `json:"baseline_emissions"`
	BestCostDelay     int          `json:"best_cost_delay"`
	BestEmissionDelay int          `json:"best_emission_delay"`
	Delays            []ProfileRow `json:"delays"`
}

// Rows flattens p into one row per delay.
func Rows(p model.SavingsProfile) []ProfileRow {
	rows := make([]ProfileRow, p.Scenarios())
	for d := range rows {
		rows[d] = ProfileRow{DelayHours: d, CostSavings: p.CostSavings[d], EmissionSavings: p.EmissionSavings[d]}
	}
	return rows
}

// WriteJSON writes p as an indented ProfileDocument.
func WriteJSON(w io.Writer, p model.SavingsProfile) error {
	doc := ProfileDocument{
		HoursToCharge:     p.HoursToCharge,
		BaselineCost:      p.BaselineCost,
		BaselineEmissions: p.BaselineEmitted,
		BestCostDelay:     p.BestCostDelay(),
		BestEmissionDelay: p.BestEmissionDelay(),
		Delays:            Rows(p),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSV writes p with the header delay_hours,cost_savings,emission_savings.
func WriteCSV(w io.Writer, p model.SavingsProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"delay_hours", "cost_savings", "emission_savings"}); err != nil {
		return err
	}
	for _, r := range Rows(p) {
		rec := []string{
			strconv.Itoa(r.DelayHours),
			strconv.FormatFloat(r.CostSavings, 'f', -1, 64),
			strconv.FormatFloat(r.EmissionSavings, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteForecastCSV writes fc as time,price,emission rows, hour h stamped
// start+h. The output can be read back by the series loader.
func WriteForecastCSV(w io.Writer, start time.Time, fc model.Window) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "price", "emission"}); err != nil {
		return err
	}
	start = start.UTC().Truncate(time.Hour)
	for h := 0; h < fc.Len(); h++ {
		rec := []string{
			start.Add(time.Duration(h) * time.Hour).Format(time.RFC3339),
			strconv.FormatFloat(fc.Price(h), 'f', -1, 64),
			strconv.FormatFloat(fc.Emission(h), 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
