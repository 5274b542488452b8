package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	coreadvice "github.com/kilianp07/smartcharge/core/advice"
	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e tests skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
}

// startInflux starts an InfluxDB 2.7 container initialised with the e2e
// org, bucket and token.
func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "8086")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func flat(v float64) []float64 {
	s := make([]float64, model.HistoryHours)
	for i := range s {
		s[i] = v
	}
	return s
}

func staticForecaster(t *testing.T) forecast.Static {
	t.Helper()
	price := flat(0.1)
	price[0], price[1] = 0.4, 0.4
	w, err := model.NewForecastWindow(price, flat(250))
	require.NoError(t, err)
	return forecast.Static{Forecast: w}
}

func serviceConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.HTTP.Addr = "off"
	cfg.AdviceLog.Backend = "sqlite"
	cfg.AdviceLog.Path = filepath.Join(t.TempDir(), "advice.db")
	cfg.Forecaster.ModelPath = filepath.Join(t.TempDir(), "model.json")
	return cfg
}

func runService(t *testing.T, cfg *config.Config) *app.Service {
	t.Helper()
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	svc, err := app.New(cfg, app.WithForecaster(staticForecaster(t)))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errc)
		assert.NoError(t, svc.Close())
	})
	return svc
}

func adviceRequest() coreadvice.Request {
	return coreadvice.Request{
		SoC:        60,
		BatteryKWh: 50,
		ChargingKW: 10,
		Departure:  time.Now().Add(8 * time.Hour),
		Price:      flat(0.2),
		Emission:   flat(250),
	}
}

func TestE2EAdviceWrittenToInflux(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	url := startInflux(ctx, t)

	cfg := serviceConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": url, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}
	svc := runService(t, cfg)

	req := adviceRequest()
	req.ClientID = "e2e-car"
	resp, err := svc.Advise(ctx, coreadvice.TransportHTTP, req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.BestCostDelay)

	cli := NewInfluxClient(url, influxOrg, influxToken)
	defer cli.Close()
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-1h) |> filter(fn: (r) => r._measurement == "advice" and r.client_id == "e2e-car" and r._field == "best_cost_delay")`, influxBucket)
	require.Eventually(t, func() bool {
		n, err := cli.Count(ctx, flux)
		return err == nil && n == 1
	}, 30*time.Second, 500*time.Millisecond)

	hourly := fmt.Sprintf(`from(bucket:%q) |> range(start:-1h, stop:2d) |> filter(fn: (r) => r._measurement == "forecast" and r.request_id == %q and r._field == "price")`, influxBucket, resp.RequestID)
	n, err := cli.Count(ctx, hourly)
	require.NoError(t, err)
	assert.Equal(t, model.ForecastHours, n)
}

func TestE2EAdviceOverMQTT(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	broker := startMosquitto(ctx, t)

	cfg := serviceConfig(t)
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "e2e-advisor"
	cfg.MQTT.QoS = 1
	runService(t, cfg)

	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-car")
	cli := paho.NewClient(opts)
	tok := cli.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	defer cli.Disconnect(100)

	answers := make(chan []byte, 2)
	tok = cli.Subscribe("smartcharge/advice/response/e2e-car", 1, func(_ paho.Client, m paho.Message) {
		answers <- m.Payload()
	})
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())

	payload, err := json.Marshal(adviceRequest())
	require.NoError(t, err)
	var resp coreadvice.Response
	// The service subscribes once connected; retry until it answers.
	require.Eventually(t, func() bool {
		cli.Publish("smartcharge/advice/request/e2e-car", 1, false, payload).Wait()
		select {
		case b := <-answers:
			return json.Unmarshal(b, &resp) == nil
		case <-time.After(time.Second):
			return false
		}
	}, 30*time.Second, 100*time.Millisecond)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 2, resp.BestCostDelay)
	assert.Len(t, resp.Forecast.Price, model.ForecastHours)

	bad, err := json.Marshal(coreadvice.Request{SoC: 10, BatteryKWh: 50, ChargingKW: 10, Departure: time.Now().Add(time.Hour), Price: flat(1), Emission: flat(1)})
	require.NoError(t, err)
	cli.Publish("smartcharge/advice/request/e2e-car", 1, false, bad).Wait()
	select {
	case b := <-answers:
		var eb coreadvice.ErrorBody
		require.NoError(t, json.Unmarshal(b, &eb))
		assert.Equal(t, "infeasible", string(eb.Outcome))
		assert.InDelta(t, 3.5, eb.DeficitHours, 0.01)
	case <-time.After(10 * time.Second):
		t.Fatal("no answer to infeasible request")
	}
}
