// Package mqtt serves charge advice over an MQTT broker. Requests arrive on
// a per-client topic and the answer is published on the matching response
// topic.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// ErrClosed is returned when publishing on a closed server.
var ErrClosed = errors.New("mqtt server closed")

// Handler answers one request. clientID is the last level of the request
// topic. The returned value is published as JSON.
type Handler func(ctx context.Context, clientID string, payload []byte) any

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// AdviceServer subscribes to advice requests and publishes responses.
type AdviceServer struct {
	cli     pahoClient
	cfg     Config
	handler Handler
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewAdviceServer connects to the broker and subscribes to cfg.RequestTopic.
// The subscription is renewed on every reconnect.
func NewAdviceServer(cfg Config, h Handler) (*AdviceServer, error) {
	if h == nil {
		return nil, fmt.Errorf("mqtt: nil handler")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &AdviceServer{cfg: cfg, handler: h, log: logger.New("mqtt_advice"), ctx: ctx, cancel: cancel}

	opts.OnConnect = func(c paho.Client) {
		s.log.Infof("MQTT connected, subscribing %s", cfg.RequestTopic)
		if token := c.Subscribe(cfg.RequestTopic, cfg.QoS, s.onRequest); token.Wait() && token.Error() != nil {
			s.log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		s.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		cancel()
		return nil, token.Error()
	}
	s.cli = c
	return s, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID + "-" + uuid.NewString()[:8])
	opts.AutoReconnect = true
	opts.SetOrderMatters(false)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// ClientIDFromTopic returns the last level of topic.
func ClientIDFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// ResponseTopic returns the topic answers for clientID are published on.
func (s *AdviceServer) ResponseTopic(clientID string) string {
	return s.cfg.ResponsePrefix + clientID
}

func (s *AdviceServer) onRequest(_ paho.Client, msg paho.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	clientID := ClientIDFromTopic(msg.Topic())
	payload := append([]byte(nil), msg.Payload()...)
	go func() {
		defer s.wg.Done()
		defer coremon.Recover()
		ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.HandlerTimeout)*time.Millisecond)
		defer cancel()
		resp := s.handler(ctx, clientID, payload)
		if err := s.publish(clientID, resp); err != nil {
			s.log.Errorf("respond to %s: %v", clientID, err)
		}
	}()
}

// Publish sends v as JSON on the response topic of clientID, retrying with
// exponential backoff.
func (s *AdviceServer) Publish(clientID string, v any) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.publish(clientID, v)
}

func (s *AdviceServer) publish(clientID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic := s.ResponseTopic(clientID)
	backoff := time.Duration(s.cfg.BackoffMS) * time.Millisecond
	var publishErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		token := s.cli.Publish(topic, s.cfg.QoS, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			s.log.Debugf("published advice on %s", topic)
			return nil
		}
		s.log.Warnf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < s.cfg.MaxRetries {
			time.Sleep(backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "client_id": clientID})
	return publishErr
}

// Close stops accepting requests, waits for in-flight handlers and
// disconnects.
func (s *AdviceServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	s.cancel()
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
}
