package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiadvice "github.com/kilianp07/smartcharge/api/advice"
	"github.com/kilianp07/smartcharge/config"
	coreadvice "github.com/kilianp07/smartcharge/core/advice"
	"github.com/kilianp07/smartcharge/core/advicelog"
	"github.com/kilianp07/smartcharge/core/forecast"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/metrics/eco"
	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/profile"
	"github.com/kilianp07/smartcharge/infra/kpi"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/metrics"
	"github.com/kilianp07/smartcharge/infra/monitoring"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	"github.com/kilianp07/smartcharge/internal/eventbus"
	"github.com/kilianp07/smartcharge/jobs/ecokpi"
)

// backfillDays bounds the history replayed into an in-memory savings store.
const backfillDays = 30

// Service wires the forecaster, the advice use case, its event sinks and
// the HTTP and MQTT transports.
type Service struct {
	Holder  *forecast.Holder
	Advisor *coreadvice.Advisor

	cfg       *config.Config
	bus       *eventbus.Bus[coremetrics.AdviceEvent]
	sink      coremetrics.MetricsSink
	eventSink coremetrics.MetricsSink
	history   advicelog.Store
	savings   eco.Store
	profiles  profile.Store
	state     func() forecast.State
	preloaded bool
	log       logger.Logger
	closers   []func() error
}

// Option customises New.
type Option func(*Service)

// WithForecaster serves f instead of the configured model. The model file is
// then neither loaded nor trained.
func WithForecaster(f forecast.Forecaster) Option {
	return func(s *Service) {
		s.Advisor = s.newAdvisor(f)
		s.state = func() forecast.State { return forecast.StateLoaded }
		s.preloaded = true
	}
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	s := &Service{
		cfg:  cfg,
		bus:  eventbus.New[coremetrics.AdviceEvent](),
		sink: sink,
		log:  logg,
	}
	s.closers = append(s.closers, func() error { closeSink(sink); return nil })

	s.history, err = advicelog.New(cfg.AdviceLog)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("advice log: %w", err)
	}
	s.closers = append(s.closers, s.history.Close)

	switch cfg.KPI.Backend {
	case "sqlite":
		store, err := kpi.NewSQLiteStore(cfg.KPI.Path)
		if err != nil {
			s.closeAll()
			return nil, fmt.Errorf("kpi store: %w", err)
		}
		s.savings = store
		s.closers = append(s.closers, store.Close)
	default:
		s.savings = eco.NewMemoryStore()
		n, err := ecokpi.Backfill(context.Background(), s.savings, s.history, advicelog.Query{Start: time.Now().AddDate(0, 0, -backfillDays)})
		if err != nil {
			logg.Warnf("backfill savings: %v", err)
		} else if n > 0 {
			logg.Infof("rebuilt savings tallies from %d advice records", n)
		}
	}
	ecoSink, err := metrics.NewEcoSink(s.savings, prometheus.DefaultRegisterer)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("eco sink: %w", err)
	}
	s.eventSink = coremetrics.NewMultiSink(sink, ecoSink, advicelog.Sink{Store: s.history})

	s.profiles, err = profile.New(cfg.Profiles)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("profiles: %w", err)
	}
	s.closers = append(s.closers, s.profiles.Close)

	s.Holder = forecast.NewHolder(logger.New("forecaster"))
	s.Advisor = s.newAdvisor(s.Holder)
	s.state = s.Holder.State
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Service) newAdvisor(f forecast.Forecaster) *coreadvice.Advisor {
	return coreadvice.NewAdvisor(f,
		coreadvice.WithPublisher(s.bus),
		coreadvice.WithSink(s.sink),
		coreadvice.WithProfiles(s.profiles),
		coreadvice.WithLogger(logger.New("advice")),
	)
}

// Advise answers req; see coreadvice.Advisor.
func (s *Service) Advise(ctx context.Context, transport string, req coreadvice.Request) (coreadvice.Response, error) {
	return s.Advisor.Advise(ctx, transport, req)
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	return apiadvice.NewRouter(apiadvice.Routes{
		Advisor:  s,
		History:  s.history,
		Token:    s.cfg.HTTP.HistoryToken,
		Savings:  s.savings,
		Profiles: s.profiles,
		State:    s.state,
		Metrics:  promhttp.Handler(),
	})
}

// HandleMQTT answers one advice request received over MQTT.
func (s *Service) HandleMQTT(ctx context.Context, clientID string, payload []byte) any {
	var req coreadvice.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return coreadvice.ErrorBody{Outcome: coremetrics.OutcomeInvalid, Error: "decode request: " + err.Error()}
	}
	req.ClientID = clientID
	resp, err := s.Advise(ctx, coreadvice.TransportMQTT, req)
	if err != nil {
		return coreadvice.NewErrorBody(resp.RequestID, err)
	}
	return resp
}

// Run serves advice until ctx is cancelled. The HTTP API is up while the
// model loads or trains and answers 503 until it is ready.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := metrics.StartEventCollector(ctx, s.bus, s.eventSink, logger.New("collector"))
	defer func() {
		cancel()
		<-done
	}()

	errs := make(chan error, 1)
	if s.cfg.HTTP.Enabled() {
		go func() {
			if err := apiadvice.Serve(ctx, s.cfg.HTTP.Addr, s.Handler(), logger.New("http")); err != nil {
				errs <- err
			}
		}()
	}

	if !s.preloaded {
		fc := s.cfg.Forecaster
		if err := s.Holder.LoadOrTrain(ctx, fc.ModelPath, trainFunc(fc, s.sink, logger.New("training"))); err != nil {
			coremon.Report(err, "service", "load_model")
			return fmt.Errorf("forecaster: %w", err)
		}
	}

	if s.cfg.MQTT.Enabled() {
		srv, err := mqtt.NewAdviceServer(s.cfg.MQTT, s.HandleMQTT)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer srv.Close()
	}

	s.log.Infof("serving advice")
	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

// Close releases the stores and sinks. It must be called after Run returns.
func (s *Service) Close() error {
	s.bus.Close()
	err := s.closeAll()
	coremon.Flush(2 * time.Second)
	return err
}

func (s *Service) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func closeSink(sink coremetrics.MetricsSink) {
	switch v := sink.(type) {
	case *coremetrics.MultiSink:
		for _, child := range v.Sinks {
			closeSink(child)
		}
	case interface{ Close() }:
		v.Close()
	}
}
