// Package advicelog keeps a queryable history of served advice.
package advicelog

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
)

// Record captures one advice request and its answer.
type Record struct {
	Timestamp         time.Time             `json:"timestamp"`
	RequestID         string                `json:"request_id"`
	ClientID          string                `json:"client_id,omitempty"`
	Transport         string                `json:"transport,omitempty"`
	Outcome           string                `json:"outcome"`
	Job               model.ChargeJob       `json:"job"`
	Forecast          *Forecast             `json:"forecast,omitempty"`
	Profile           *model.SavingsProfile `json:"profile,omitempty"`
	BestCostDelay     int                   `json:"best_cost_delay"`
	BestEmissionDelay int                   `json:"best_emission_delay"`
	LatencyMS         float64               `json:"latency_ms"`
	Error             string                `json:"error,omitempty"`
}

// Forecast is the serialised forecast window of a record.
type Forecast struct {
	Price    []float64 `json:"price"`
	Emission []float64 `json:"emission"`
}

// FromEvent converts an advice event into a record.
func FromEvent(ev metrics.AdviceEvent) Record {
	r := Record{
		Timestamp: ev.Time.UTC(),
		RequestID: ev.RequestID,
		ClientID:  ev.ClientID,
		Transport: ev.Transport,
		Outcome:   string(ev.Outcome),
		Job:       ev.Job,
		LatencyMS: float64(ev.Latency.Microseconds()) / 1000,
		Error:     ev.Error,
	}
	if ev.Forecast.Len() > 0 {
		r.Forecast = &Forecast{Price: ev.Forecast.Prices(), Emission: ev.Forecast.Emissions()}
	}
	if ev.Profile.Scenarios() > 0 {
		p := ev.Profile
		r.Profile = &p
		r.BestCostDelay = p.BestCostDelay()
		r.BestEmissionDelay = p.BestEmissionDelay()
	}
	return r
}

// Query filters records. Zero fields match everything. Limit keeps the most
// recent records.
type Query struct {
	Start    time.Time
	End      time.Time
	ClientID string
	Outcome  string
	Limit    int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.ClientID != "" && r.ClientID != q.ClientID {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	return true
}

// finish sorts oldest first and applies the limit.
func (q Query) finish(res []Record) []Record {
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Sink adapts a Store to metrics.MetricsSink so the history can be fed from
// the advice event bus.
type Sink struct {
	Store Store
}

// RecordAdvice appends the event to the store.
func (s Sink) RecordAdvice(ev metrics.AdviceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Store.Append(ctx, FromEvent(ev))
}
