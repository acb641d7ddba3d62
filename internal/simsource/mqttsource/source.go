// Package mqttsource implements a telemetry source fed by a simulator
// gateway over MQTT. The gateway publishes the full variable set on a
// retained state topic and session transitions on a session topic; writes
// and events travel back on per-name topics.
package mqttsource

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/opensquawk/simbridge/internal/simsource"
	"github.com/opensquawk/simbridge/pkg/log"
)

const ProviderName = "mqtt"

func init() {
	simsource.Register(ProviderName, func(config any) (simsource.Source, error) {
		cfg, ok := config.(*Config)
		if !ok || cfg == nil {
			return nil, fmt.Errorf("mqttsource: config of type %T", config)
		}
		return New(cfg)
	})
}

// Config carries the broker connection settings and topic layout.
type Config struct {
	BrokerURL          string
	Username           string
	Password           string
	ClientID           string
	KeepAlive          uint16
	ConnectTimeout     time.Duration
	CleanStart         bool
	InsecureSkipVerify bool

	// TopicRoot prefixes every topic, e.g. "simgw/v1".
	TopicRoot string
}

// sessionMessage is the session-topic payload.
type sessionMessage struct {
	Event string `json:"event"` // "start" or "stop"
}

// writeMessage is the payload published for variable writes and events.
type writeMessage struct {
	Value float64 `json:"value"`
}

type Source struct {
	cfg *Config
	cm  *autopaho.ConnectionManager

	mu            sync.Mutex
	connected     bool
	sessionActive bool
	latest        map[string]float64
	latestAt      time.Time
	closed        bool

	events chan simsource.Event
}

var _ simsource.Source = (*Source)(nil)

func New(cfg *Config) (*Source, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("mqttsource: broker URL is required")
	}
	if _, err := url.Parse(cfg.BrokerURL); err != nil {
		return nil, fmt.Errorf("mqttsource: invalid broker URL: %w", err)
	}
	if cfg.TopicRoot == "" {
		cfg.TopicRoot = "simgw/v1"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "simbridge-source"
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &Source{
		cfg:    cfg,
		latest: map[string]float64{},
		events: make(chan simsource.Event, 64),
	}, nil
}

func (s *Source) Name() string { return ProviderName }

func (s *Source) stateTopic() string   { return s.cfg.TopicRoot + "/state" }
func (s *Source) sessionTopic() string { return s.cfg.TopicRoot + "/session" }
func (s *Source) writeTopic(name string) string {
	return s.cfg.TopicRoot + "/write/" + name
}
func (s *Source) eventTopic(name string) string {
	return s.cfg.TopicRoot + "/event/" + name
}

func (s *Source) Connect(ctx context.Context) error {
	brokerURL, _ := url.Parse(s.cfg.BrokerURL) // validated in New

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     s.cfg.KeepAlive,
		CleanStartOnInitialConnection: s.cfg.CleanStart,
		ReconnectBackoff:              autopaho.NewConstantBackoff(3 * time.Second),
		ConnectTimeout:                s.cfg.ConnectTimeout,
		ConnectUsername:               s.cfg.Username,
		ConnectPassword:               []byte(s.cfg.Password),
		TlsCfg: &tls.Config{
			InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		},
		ClientConfig: paho.ClientConfig{
			ClientID: s.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				s.route,
			},
		},
		OnConnectionUp: s.onConnectionUp,
		OnConnectError: func(err error) {
			log.Error(err, "Simulator gateway connection failed, retrying", "broker", s.cfg.BrokerURL)
		},
	}

	log.Info("Connecting to simulator gateway", "broker", s.cfg.BrokerURL, "clientID", s.cfg.ClientID)

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return err
	}
	s.cm = cm
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	s.sessionActive = false
	cm := s.cm
	close(s.events)
	s.mu.Unlock()

	if cm != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cm.Disconnect(ctx)
	}
	return nil
}

func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.sessionActive
}

func (s *Source) Events() <-chan simsource.Event { return s.events }

func (s *Source) Sample(ctx context.Context) (*simsource.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || !s.sessionActive || len(s.latest) == 0 {
		return nil, simsource.ErrNotReady
	}
	values := make(map[string]float64, len(s.latest))
	for name, v := range s.latest {
		values[name] = v
	}
	return &simsource.Reading{Values: values, CapturedAt: s.latestAt}, nil
}

func (s *Source) WriteValue(ctx context.Context, name string, value float64) error {
	return s.publish(ctx, s.writeTopic(name), value)
}

func (s *Source) SendEvent(ctx context.Context, name string, value int64) error {
	return s.publish(ctx, s.eventTopic(name), float64(value))
}

func (s *Source) publish(ctx context.Context, topic string, value float64) error {
	s.mu.Lock()
	cm, connected := s.cm, s.connected
	s.mu.Unlock()
	if cm == nil || !connected {
		return simsource.ErrNotReady
	}

	payload, err := json.Marshal(writeMessage{Value: value})
	if err != nil {
		return err
	}
	_, err = cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	return err
}

// onConnectionUp runs on every (re)connect; subscriptions do not survive a
// clean-start reconnect so they are re-issued here.
func (s *Source) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	log.Info("Simulator gateway connection established")

	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: s.stateTopic(), QoS: 1},
			{Topic: s.sessionTopic(), QoS: 1},
		},
	}); err != nil {
		log.Error(err, "Failed to subscribe to gateway topics")
		return
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.emit(simsource.EventOpen)
}

func (s *Source) route(p paho.PublishReceived) (bool, error) {
	switch p.Packet.Topic {
	case s.stateTopic():
		s.handleState(p.Packet.Payload)
	case s.sessionTopic():
		s.handleSession(p.Packet.Payload)
	default:
		log.Debug("Message on unhandled topic", "topic", p.Packet.Topic)
	}
	return true, nil
}

func (s *Source) handleState(payload []byte) {
	var values map[string]float64
	if err := json.Unmarshal(payload, &values); err != nil {
		log.Debug("Malformed state payload", "error", err)
		return
	}

	s.mu.Lock()
	for name, v := range values {
		s.latest[name] = v
	}
	s.latestAt = time.Now()
	s.mu.Unlock()
	s.emit(simsource.EventData)
}

func (s *Source) handleSession(payload []byte) {
	var msg sessionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Debug("Malformed session payload", "error", err)
		return
	}

	s.mu.Lock()
	switch msg.Event {
	case "start":
		s.sessionActive = true
	case "stop":
		s.sessionActive = false
		s.latest = map[string]float64{}
	}
	s.mu.Unlock()

	switch msg.Event {
	case "start":
		s.emit(simsource.EventSessionStart)
	case "stop":
		s.emit(simsource.EventSessionStop)
	}
}

// emit delivers on the event channel without blocking the MQTT reader.
// Sends happen under the mutex so Close cannot race a send against the
// channel close.
func (s *Source) emit(kind simsource.EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- simsource.Event{Kind: kind, At: time.Now()}:
	default:
		// Consumer is behind; the session flags already carry the state.
	}
}
