package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/alert"
	"github.com/sweeney/sleepcheck/internal/logic"
)

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	Topics         Topics
	BufferSize     int
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, messages are held in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	logger *zap.Logger

	mu            sync.Mutex
	buffer        *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is unreachable within the connect timeout the publisher is still returned
// and keeps retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker address required")
	}
	if opts.ClientID == "" {
		opts.ClientID = "sleepcheck"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	p := &RealPublisher{
		topics: opts.Topics,
		logger: opts.Logger.With(zap.String("broker", opts.Broker)),
		buffer: newRingBuffer(opts.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(opts.Topics.System(), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("mqtt connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		p.logger.Warn("mqtt connect timed out, buffering until connected",
			zap.Duration("timeout", opts.ConnectTimeout))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	msgs, dropped := p.buffer.drainAll()
	p.mu.Unlock()

	p.logger.Info("mqtt connected", zap.Bool("reconnect", reconnect), zap.Int("replay", len(msgs)))
	if dropped > 0 {
		p.logger.Warn("mqtt buffer overflowed while offline", zap.Int("dropped", dropped))
	}

	// Handlers run on paho's goroutine; do not wait on tokens here.
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			c.Publish(p.topics.System(), 1, false, payload)
		}
	}
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	if !p.client.IsConnectionOpen() {
		p.hold(msg)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.hold(msg)
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		p.hold(msg)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) hold(msg bufferedMsg) {
	p.mu.Lock()
	first := p.buffer.push(msg)
	n := p.buffer.len()
	p.mu.Unlock()
	if first {
		p.logger.Warn("mqtt buffer full, dropping oldest", zap.Int("capacity", n))
	}
}

// PublishEvent sends a sleep event. QoS 1 so the feed does not lose records.
func (p *RealPublisher) PublishEvent(event logic.Event) error {
	payload, err := FormatEventPayload(event)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return p.publish(p.topics.Events(event.ChildID), 1, false, payload)
}

// PublishNotification sends a retained notification so a dashboard that
// connects later still shows it until the next one replaces it.
func (p *RealPublisher) PublishNotification(n alert.Notification) error {
	payload, err := FormatNotificationPayload(n)
	if err != nil {
		return fmt.Errorf("format notification payload: %w", err)
	}
	return p.publish(p.topics.Notification(n.ChildID), 1, true, payload)
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(p.topics.System(), 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
