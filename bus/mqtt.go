package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var _ Client = (*MQTT)(nil)

// Config holds the connection parameters for an MQTT-backed Client.
type Config struct {
	Host        string
	Port        int
	ClientID    string // empty generates a unique id via uuid
	Username    string
	Password    string
	WillTopic   string
	WillPayload string
}

// MQTT is the paho-backed implementation of Client.
type MQTT struct {
	client mqtt.Client
	log    *slog.Logger

	mu       sync.Mutex
	handlers map[string]MessageHandler
}

// NewMQTT connects to the broker described by cfg and returns a ready
// Client. The connection uses auto-reconnect with a retained last-will on
// WillTopic, matching the reconnect/keep-alive wiring used for the other
// MQTT publishers in the broader pack.
func NewMQTT(cfg Config, log *slog.Logger) (*MQTT, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "timeguard-" + uuid.NewString()
	}

	m := &MQTT{log: log, handlers: make(map[string]MessageHandler)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected")
		m.resubscribeAll()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Info("mqtt reconnecting")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	m.client = client

	return m, nil
}

func (m *MQTT) Publish(topic string, payload []byte, retained bool) error {
	token := m.client.Publish(topic, 1, retained, payload)
	token.Wait()
	return token.Error()
}

func (m *MQTT) Subscribe(topic string, handler MessageHandler) error {
	m.mu.Lock()
	m.handlers[topic] = handler
	m.mu.Unlock()

	token := m.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (m *MQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	delete(m.handlers, topic)
	m.mu.Unlock()

	token := m.client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

func (m *MQTT) Disconnect() {
	m.client.Disconnect(250)
}

// resubscribeAll re-registers every handler with the broker; paho does not
// replay subscriptions across a dropped-and-restored connection on its own.
func (m *MQTT) resubscribeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, handler := range m.handlers {
		h := handler
		if token := m.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			h(msg.Topic(), msg.Payload())
		}); token.Wait() && token.Error() != nil {
			m.log.Warn("resubscribe failed", "topic", topic, "error", token.Error())
		}
	}
}
