package alerts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// Publisher is the subset of mqtt.Client the notifier needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Timeout  time.Duration
	Logger   *slog.Logger
}

// MQTTNotifier publishes each artifact as a JSON message with base64 media.
type MQTTNotifier struct {
	pub     Publisher
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTNotifier connects to the broker and returns a notifier bound to cfg.Topic.
func NewMQTTNotifier(cfg MQTTConfig) (*MQTTNotifier, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectionLostHandler(connectionLostHandler(cfg.Logger, broker))

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout(cfg.Timeout)) {
		return nil, fmt.Errorf("%w: mqtt connection timeout", ErrTransport)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: mqtt connection failed: %v", ErrTransport, err)
	}

	n := NewMQTTNotifierWithPublisher(client, cfg.Topic, cfg.QoS, cfg.Timeout)
	n.client = client
	return n, nil
}

// NewMQTTNotifierWithPublisher wraps an already connected publisher.
func NewMQTTNotifierWithPublisher(pub Publisher, topic string, qos byte, timeout time.Duration) *MQTTNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MQTTNotifier{pub: pub, topic: topic, qos: qos, timeout: timeout}
}

func (m *MQTTNotifier) Name() string { return "mqtt" }

func (m *MQTTNotifier) Send(ctx context.Context, alert Alert) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	data, err := os.ReadFile(alert.Artifact.Path)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}

	payload, err := json.Marshal(mqttMessage{
		Event:       "motion_alert",
		Device:      alert.Device,
		TriggeredAt: alert.TriggeredAt.UTC(),
		Caption:     alert.Caption(),
		Delta:       alert.Delta,
		Orientation: alert.Orientation,
		Media: mqttMedia{
			Kind:       alert.Artifact.Kind,
			Name:       filepath.Base(alert.Artifact.Path),
			CapturedAt: alert.Artifact.CapturedAt.UTC(),
			Data:       base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal mqtt payload: %w", err)
	}

	token := m.pub.Publish(m.topic, m.qos, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return Receipt{}, fmt.Errorf("%w: mqtt publish timeout after %s", ErrTransport, m.timeout)
	}
	if err := token.Error(); err != nil {
		return Receipt{}, fmt.Errorf("%w: mqtt publish: %v", ErrTransport, err)
	}

	ack := m.topic
	if pt, ok := token.(*mqtt.PublishToken); ok && pt.MessageID() != 0 {
		ack = m.topic + "#" + strconv.Itoa(int(pt.MessageID()))
	}
	return Receipt{Ack: ack}, nil
}

// Close disconnects the broker connection opened by NewMQTTNotifier.
func (m *MQTTNotifier) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

func connectionLostHandler(logger *slog.Logger, broker string) mqtt.ConnectionLostHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}
}

func connectTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > 10*time.Second {
		return 10 * time.Second
	}
	return d
}

type mqttMessage struct {
	Event       string            `json:"event"`
	Device      string            `json:"device"`
	TriggeredAt time.Time         `json:"triggered_at"`
	Caption     string            `json:"caption"`
	Delta       model.Vec3        `json:"delta"`
	Orientation model.Orientation `json:"orientation"`
	Media       mqttMedia         `json:"media"`
}

type mqttMedia struct {
	Kind       model.MediaKind `json:"kind"`
	Name       string          `json:"name"`
	CapturedAt time.Time       `json:"captured_at"`
	Data       string          `json:"data"`
}
