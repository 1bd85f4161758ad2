package ingest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	"github.com/devsmilefactory/moversfinder-sub010/core/metrics"
)

// DefaultMQTTTopic is subscribed when the config names none.
const DefaultMQTTTopic = "rides/status"

// MQTTConfig defines the connection parameters for the Paho bridge.
type MQTTConfig struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Topic      string `json:"topic"`
	QoS        byte   `json:"qos"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c MQTTConfig) LoadTLSConfig() (*tls.Config, error) {
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("ingest: tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("ingest: load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("ingest: read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTSource subscribes to the ride status topic and feeds decoded events to
// the handler. The subscription is re-established on every reconnect.
type MQTTSource struct {
	cfg     MQTTConfig
	cli     pahoClient
	handler Handler
	sink    metrics.MetricsSink
	log     logger.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewMQTTSource builds the client without connecting; Run establishes the
// connection.
func NewMQTTSource(cfg MQTTConfig, handler Handler, sink metrics.MetricsSink, log logger.Logger) (*MQTTSource, error) {
	if handler == nil || log == nil {
		return nil, fmt.Errorf("ingest: nil parameter provided to NewMQTTSource")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("ingest: mqtt broker required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "moversfinder-notify"
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultMQTTTopic
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}

	s := &MQTTSource{cfg: cfg, handler: handler, sink: sink, log: log}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected, subscribing to %s", cfg.Topic)
		if token := c.Subscribe(cfg.Topic, cfg.QoS, s.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	s.cli = newMQTTClient(opts)
	return s, nil
}

// Run connects and blocks until the context is canceled.
func (s *MQTTSource) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	if token := s.cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("ingest: mqtt connect: %w", token.Error())
	}
	<-ctx.Done()
	s.cli.Disconnect(250)
	return nil
}

func (s *MQTTSource) onMessage(_ paho.Client, msg paho.Message) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	ev, err := decodeStatusChange(msg.Payload())
	recordIngest(s.sink, s.log, "mqtt", ev, err)
	if err != nil {
		s.log.Errorf("payload on %s rejected: %v", msg.Topic(), err)
		return
	}
	s.log.Debugf("mqtt event for ride %s: %s -> %s", ev.RideID, ev.OldStatus, ev.NewStatus)
	s.handler(ctx, ev)
}

// Close gracefully drops the broker connection.
func (s *MQTTSource) Close() error {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	return nil
}
