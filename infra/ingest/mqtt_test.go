package ingest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
)

// recordingSink captures ingest events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []metrics.IngestEvent
}

func (r *recordingSink) RecordDeliveryResult([]metrics.DeliveryResult) error { return nil }

func (r *recordingSink) RecordIngest(ev metrics.IngestEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) ingested() []metrics.IngestEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]metrics.IngestEvent, len(r.events))
	copy(out, r.events)
	return out
}

func statusPayload(rideID, oldStatus, newStatus string) []byte {
	return []byte(`{"record":{"id":"` + rideID + `","ride_status":"` + newStatus + `","user_id":"pass-1","driver_id":"drv-1"},"old_record":{"ride_status":"` + oldStatus + `"}}`)
}

func TestMQTTSourceDeliversDecodedEvents(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()

	got := make(chan model.RideEvent, 4)
	sink := &recordingSink{}
	src, err := NewMQTTSource(MQTTConfig{Broker: "tcp://localhost:1883", Topic: "rides/status", QoS: 1}, func(_ context.Context, ev model.RideEvent) {
		got <- ev
	}, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("NewMQTTSource: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = src.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		mc.mu.Lock()
		subscribed := len(mc.subscribed) > 0
		mc.mu.Unlock()
		if subscribed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("source never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	mc.mu.Lock()
	if mc.subscribed[0].topic != "rides/status" || mc.subscribed[0].qos != 1 {
		t.Errorf("subscribed %s qos %d", mc.subscribed[0].topic, mc.subscribed[0].qos)
	}
	handler := mc.subscribed[0].handler
	mc.mu.Unlock()

	handler(mc, mockMessage{p: statusPayload("ride-1", "pending", "accepted")})
	select {
	case ev := <-got:
		if ev.RideID != "ride-1" || ev.NewStatus != "accepted" {
			t.Errorf("decoded event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}

	handler(mc, mockMessage{p: []byte(`{"record":`)})
	select {
	case ev := <-got:
		t.Fatalf("handler invoked for broken payload: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	events := sink.ingested()
	if len(events) != 2 {
		t.Fatalf("ingest events = %d, want 2", len(events))
	}
	if events[0].Source != "mqtt" || events[0].RideID != "ride-1" || events[0].Error != "" {
		t.Errorf("first ingest event %+v", events[0])
	}
	if events[1].Error == "" {
		t.Error("broken payload should record an error")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestNewMQTTSourceDefaults(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()

	src, err := NewMQTTSource(MQTTConfig{Broker: "tcp://localhost:1883"}, func(context.Context, model.RideEvent) {}, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("NewMQTTSource: %v", err)
	}
	if src.cfg.Topic != DefaultMQTTTopic {
		t.Errorf("topic = %q, want default", src.cfg.Topic)
	}
	if src.cfg.ClientID == "" {
		t.Error("client id not defaulted")
	}
	if src.sink == nil {
		t.Error("sink not defaulted")
	}
}

func TestNewMQTTSourceValidation(t *testing.T) {
	if _, err := NewMQTTSource(MQTTConfig{Broker: "tcp://x"}, nil, nil, logger.NopLogger{}); err == nil {
		t.Error("expected error for nil handler")
	}
	if _, err := NewMQTTSource(MQTTConfig{}, func(context.Context, model.RideEvent) {}, nil, logger.NopLogger{}); err == nil {
		t.Error("expected error for missing broker")
	}
}

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := MQTTConfig{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts *paho.ClientOptions

	mu         sync.Mutex
	subscribed []struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(string, byte, bool, interface{}) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	m.mu.Lock()
	m.subscribed = append(m.subscribed, struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}{topic, qos, callback})
	m.mu.Unlock()
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "rides/status" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
