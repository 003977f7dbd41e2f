package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/boardsync-core/internal/events"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/config"
)

// testConfig returns a configuration for a local Mosquitto broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "boardsync-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker, skipping the test when none is running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 200*time.Millisecond)
	if err != nil {
		t.Skip("no MQTT broker on 127.0.0.1:1883")
	}
	conn.Close()

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Offline tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", topics.Event("sync.install_result", "DE6164C4B3"), "boardsync/event/sync.install_result/DE6164C4B3"},
		{"event web key", topics.Event("board.created", "web:10.0.0.7:80"), "boardsync/event/board.created/web:10.0.0.7:80"},
		{"event without board", topics.Event("board.registry_cleared", ""), "boardsync/event/board.registry_cleared/_"},
		{"event unsafe key", topics.Event("board.created", "usb:/media/CIRCUITPY"), "boardsync/event/board.created/usb:_media_CIRCUITPY"},
		{"wildcard key", topics.Event("board.created", "a+b#"), "boardsync/event/board.created/a_b_"},
		{"all events", topics.AllEvents(), "boardsync/event/#"},
		{"board events", topics.BoardEvents("ABC"), "boardsync/event/+/ABC"},
		{"rescan", topics.RescanCommand(), "boardsync/command/rescan"},
		{"status", topics.SystemStatus(), "boardsync/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "core", Password: "secret"}
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:8883]", opts.Servers)
	}
	if opts.ClientID != "boardsync-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
	if !opts.WillEnabled || opts.WillTopic != "boardsync/system/status" || !opts.WillRetained {
		t.Errorf("LWT = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var will statusPayload
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("LWT payload is not JSON: %v", err)
	}
	if will.Status != statusOffline || will.Reason != "unexpected_disconnect" || will.ClientID != "boardsync-test" {
		t.Errorf("LWT payload = %+v", will)
	}
}

func TestBuildClientOptions_PlainNoAuth(t *testing.T) {
	opts := buildClientOptions(testConfig())
	if opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("broker = %s, want tcp://127.0.0.1:1883", opts.Servers[0])
	}
	if opts.Username != "" {
		t.Error("plain config should not set credentials")
	}
}

func TestStatusMessage(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(statusMessage("core-1", statusOnline, ""), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.Status != statusOnline || p.ClientID != "core-1" || p.Reason != "" {
		t.Errorf("payload = %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", p.Timestamp, err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription), logger: noopLogger{}}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", []byte("x"), 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("a/b", []byte("x"), 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("a/b", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("a/b", nil, 1, false), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, handler), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("a/b", 5, handler), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("a/b", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("a/b", 1, handler), ErrNotConnected},
		{"health check", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.HasSubscription("a/b") {
		t.Error("failed subscribe must not be tracked")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHandleDisconnect_InvokesCallback(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription), logger: noopLogger{}}
	c.setConnected(true)

	var got error
	c.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("broker went away")
	c.handleDisconnect(lost)

	if c.connected {
		t.Error("connection state still set after connection loss")
	}
	if !errors.Is(got, lost) {
		t.Errorf("callback error = %v, want %v", got, lost)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Client{}
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func TestDispatch(t *testing.T) {
	t.Run("error is logged", func(t *testing.T) {
		logger := &recordingLogger{}
		dispatch(logger, func(string, []byte) error { return errors.New("boom") }, "t", nil)
		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})
	t.Run("panic is recovered", func(t *testing.T) {
		logger := &recordingLogger{}
		dispatch(logger, func(string, []byte) error { panic("bad payload") }, "t", nil)
		if len(logger.errs) != 1 {
			t.Errorf("errors = %v, want one entry", logger.errs)
		}
	})
}

// =============================================================================
// Event bridge
// =============================================================================

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []published
	err   error
	block chan struct{}
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload, qos, retained})
	return f.err
}

func (f *fakePublisher) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func TestEventPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewEventPublisher(pub, 1)

	p.Publish(events.Event{Type: events.TypeInstallResult, BoardKey: "ABC", Module: "neopixel", Status: "installed"})
	p.Publish(events.Event{Type: events.TypeRegistryCleared})
	p.Close()

	msgs := pub.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[0].topic != "boardsync/event/sync.install_result/ABC" || msgs[0].qos != 1 || msgs[0].retained {
		t.Errorf("first message = %+v", msgs[0])
	}
	var ev events.Event
	if err := json.Unmarshal(msgs[0].payload, &ev); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if ev.Module != "neopixel" || ev.Status != "installed" {
		t.Errorf("decoded event = %+v", ev)
	}
	if msgs[1].topic != "boardsync/event/board.registry_cleared/_" {
		t.Errorf("second topic = %q", msgs[1].topic)
	}

	// After Close, events are ignored rather than panicking on a closed queue.
	p.Publish(events.Event{Type: events.TypeBoardCreated})
	p.Close()
}

func TestEventPublisher_DropsWhenFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	p := NewEventPublisher(pub, 0)

	// One event is held by the blocked sender; the queue holds eventBuffer more.
	for i := 0; i < eventBuffer+10; i++ {
		p.Publish(events.Event{Type: events.TypeModuleStatus, BoardKey: "ABC"})
	}
	if p.Dropped() == 0 {
		t.Error("expected events to be dropped once the queue is full")
	}
	close(pub.block)
	p.Close()
}

func TestEventPublisher_LogsFailures(t *testing.T) {
	pub := &fakePublisher{err: ErrNotConnected}
	logger := &recordingLogger{}
	p := NewEventPublisher(pub, 1)
	p.SetLogger(logger)

	p.Publish(events.Event{Type: events.TypeBoardUpdated, BoardKey: "ABC"})
	p.Close()

	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "publishing event failed") {
		t.Errorf("warns = %v", logger.warns)
	}
}

type fakeSubscriber struct {
	topic   string
	handler MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return nil
}

func TestSubscribeRescan(t *testing.T) {
	var calls []bool
	sub := &fakeSubscriber{}
	if err := SubscribeRescan(sub, func(full bool) bool { calls = append(calls, full); return true }); err != nil {
		t.Fatalf("SubscribeRescan() error = %v", err)
	}
	if sub.topic != "boardsync/command/rescan" {
		t.Errorf("topic = %q", sub.topic)
	}

	tests := []struct {
		name    string
		payload string
		want    bool
		wantErr bool
	}{
		{"empty payload", "", false, false},
		{"whitespace", "  \n", false, false},
		{"full", `{"full":true}`, true, false},
		{"incremental", `{"full":false}`, false, false},
		{"garbage", `{full`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			err := sub.handler(sub.topic, []byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("error = %v, want ErrInvalidCommand", err)
				}
				if len(calls) != 0 {
					t.Error("trigger must not be called for an invalid payload")
				}
				return
			}
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("trigger calls = %v, want [%v]", calls, tt.want)
			}
		})
	}
}

// =============================================================================
// Broker tests (skipped without a local Mosquitto)
// =============================================================================

func TestBroker_EventRoundtrip(t *testing.T) {
	client := connectOrSkip(t)

	received := make(chan []byte, 1)
	if err := client.Subscribe(Topics{}.BoardEvents("ROUNDTRIP"), 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.BoardEvents("ROUNDTRIP")) {
		t.Error("subscription not tracked")
	}

	p := NewEventPublisher(client, 1)
	p.Publish(events.Event{Type: events.TypeBoardCreated, BoardKey: "ROUNDTRIP", Board: "Feather"})
	defer p.Close()

	select {
	case payload := <-received:
		var ev events.Event
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Board != "Feather" {
			t.Errorf("received %s (err %v)", payload, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_RescanCommand(t *testing.T) {
	client := connectOrSkip(t)

	fired := make(chan bool, 1)
	if err := SubscribeRescan(client, func(full bool) bool { fired <- full; return true }); err != nil {
		t.Fatalf("SubscribeRescan() error = %v", err)
	}
	if err := client.Publish(Topics{}.RescanCommand(), []byte(`{"full":true}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case full := <-fired:
		if !full {
			t.Error("expected full rescan")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rescan trigger")
	}
}
