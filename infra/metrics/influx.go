package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// InfluxConfig addresses an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// InfluxSink writes advice, forecast and training events to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a sink for the configured bucket. No connection is
// made until the first write.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings InfluxDB and returns a NopSink when the
// health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAdvice writes one "advice" point. Successful advice also writes the
// forecast window and the savings profile, one point per hour and delay.
func (s *InfluxSink) RecordAdvice(ev coremetrics.AdviceEvent) error {
	points := []*write.Point{s.advicePoint(ev)}
	if ev.Outcome == coremetrics.OutcomeOK {
		for h := 0; h < ev.Forecast.Len(); h++ {
			points = append(points, write.NewPointWithMeasurement("forecast").
				AddTag("request_id", ev.RequestID).
				AddTag("hour", strconv.Itoa(h)).
				AddField("price", round3(ev.Forecast.Price(h))).
				AddField("emission", round3(ev.Forecast.Emission(h))).
				SetTime(ev.Time.Add(time.Duration(h)*time.Hour)))
		}
		for d := 0; d < ev.Profile.Scenarios(); d++ {
			points = append(points, write.NewPointWithMeasurement("savings_profile").
				AddTag("request_id", ev.RequestID).
				AddTag("delay", strconv.Itoa(d)).
				AddField("cost_saving", round3(ev.Profile.CostSavings[d])).
				AddField("emission_saving", round3(ev.Profile.EmissionSavings[d])).
				SetTime(ev.Time))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

func (s *InfluxSink) advicePoint(ev coremetrics.AdviceEvent) *write.Point {
	p := write.NewPointWithMeasurement("advice").
		AddTag("outcome", string(ev.Outcome))
	if ev.Transport != "" {
		p.AddTag("transport", ev.Transport)
	}
	if ev.ClientID != "" {
		p.AddTag("client_id", ev.ClientID)
	}
	p.AddField("request_id", ev.RequestID).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if ev.Outcome == coremetrics.OutcomeOK && ev.Profile.Scenarios() > 0 {
		c, e := ev.Profile.BestCostDelay(), ev.Profile.BestEmissionDelay()
		p.AddField("hours_to_charge", round3(ev.Profile.HoursToCharge)).
			AddField("scenarios", ev.Profile.Scenarios()).
			AddField("best_cost_delay", c).
			AddField("best_cost_saving", round3(ev.Profile.CostSavings[c])).
			AddField("best_emission_delay", e).
			AddField("best_emission_saving", round3(ev.Profile.EmissionSavings[e])).
			AddField("mean_price", round3(ev.Forecast.MeanPrice()))
	}
	if ev.Error != "" {
		p.AddField("error", ev.Error)
	}
	return p.SetTime(ev.Time)
}

// RecordForecast writes one inference measurement.
func (s *InfluxSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_inference").
		AddField("mean_price", round3(ev.MeanPrice)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTraining writes one point per epoch.
func (s *InfluxSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("training_epoch").
		AddField("epoch", ev.Epoch).
		AddField("train_loss", ev.TrainLoss).
		AddField("grad_norm", ev.GradNorm).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if !math.IsNaN(ev.ValLoss) {
		p.AddField("val_loss", ev.ValLoss)
	}
	p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
