// Package series turns raw price and carbon-intensity samples into the
// strictly hourly series the forecaster trains on.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// ErrGap is returned when an hour holds no sample at all.
var ErrGap = errors.New("series has a gap")

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// Sample is one raw observation. A nil field means the value is missing.
type Sample struct {
	Time     time.Time
	Price    *float64
	Emission *float64
}

// LoadFile reads a CSV file, see Read.
func LoadFile(path string) (model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Read parses CSV with a header naming time, price and emission columns in
// any order, then aligns the samples with Hourly. Empty cells are missing
// values.
func Read(r io.Reader) (model.Series, error) {
	samples, err := ReadSamples(r)
	if err != nil {
		return nil, err
	}
	return Hourly(samples)
}

// ReadSamples parses CSV rows without aligning them.
func ReadSamples(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	ti, ok := column(cols, "time", "timestamp", "datetime")
	if !ok {
		return nil, fmt.Errorf("missing time column in header %v", header)
	}
	pi, ok := column(cols, "price", "price_eur_kwh")
	if !ok {
		return nil, fmt.Errorf("missing price column in header %v", header)
	}
	ei, ok := column(cols, "emission", "emissions", "carbon_intensity")
	if !ok {
		return nil, fmt.Errorf("missing emission column in header %v", header)
	}

	var out []Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseTime(rec[ti])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s := Sample{Time: ts}
		if s.Price, err = parseOptional(rec[pi]); err != nil {
			return nil, fmt.Errorf("line %d: price: %w", line, err)
		}
		if s.Emission, err = parseOptional(rec[ei]); err != nil {
			return nil, fmt.Errorf("line %d: emission: %w", line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func column(cols map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", v)
}

func parseOptional(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

type bucket struct {
	priceSum, emissionSum float64
	prices, emissions     int
}

// Hourly averages samples per UTC hour and returns one point per hour from
// the first hour holding both values to the last sampled hour. An hour
// missing one of the values carries it forward from the previous hour. An
// hour without any sample is an ErrGap.
func Hourly(samples []Sample) (model.Series, error) {
	buckets := map[time.Time]*bucket{}
	for _, s := range samples {
		h := s.Time.UTC().Truncate(time.Hour)
		b := buckets[h]
		if b == nil {
			b = &bucket{}
			buckets[h] = b
		}
		if s.Price != nil {
			b.priceSum += *s.Price
			b.prices++
		}
		if s.Emission != nil {
			b.emissionSum += *s.Emission
			b.emissions++
		}
	}
	hours := make([]time.Time, 0, len(buckets))
	for h := range buckets {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	// skip leading hours until both values are known
	start := 0
	for start < len(hours) && (buckets[hours[start]].prices == 0 || buckets[hours[start]].emissions == 0) {
		start++
	}
	if start == len(hours) {
		return model.Series{}, nil
	}

	var out model.Series
	var lastPrice, lastEmission float64
	for h := hours[start]; !h.After(hours[len(hours)-1]); h = h.Add(time.Hour) {
		b := buckets[h]
		if b == nil {
			return nil, fmt.Errorf("%w: no data at %s", ErrGap, h.Format(time.RFC3339))
		}
		if b.prices > 0 {
			lastPrice = b.priceSum / float64(b.prices)
		}
		if b.emissions > 0 {
			lastEmission = b.emissionSum / float64(b.emissions)
		}
		out = append(out, model.TimeSeriesPoint{Time: h, Price: lastPrice, Emission: lastEmission})
	}
	return out, out.Validate()
}
