// notify/notifier.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bctw/collector/models"
)

// Notifier announces new alerts and finished runs to downstream consumers.
type Notifier interface {
	AlertInserted(ctx context.Context, a models.AlertRecord) error
	RunFinished(ctx context.Context, s models.RunSummary) error
	Close()
}

// Nop discards notifications. It is used when no broker is configured.
type Nop struct{}

func (Nop) AlertInserted(context.Context, models.AlertRecord) error { return nil }
func (Nop) RunFinished(context.Context, models.RunSummary) error    { return nil }
func (Nop) Close()                                                  {}

// publisher is the part of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes JSON messages under a topic prefix:
//
//	<prefix>/alerts/<vendor>
//	<prefix>/runs/<vendor>
type MQTT struct {
	client  publisher
	closeFn func()
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// DialMQTT connects to broker. The connection is established before the
// first publish so a bad broker address fails at startup.
func DialMQTT(broker, clientID, prefix string, logger *slog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	logger.Info("Notify: connected to MQTT broker", "broker", broker)
	n := newMQTT(client, prefix, logger)
	n.closeFn = func() { client.Disconnect(250) }
	return n, nil
}

func newMQTT(client publisher, prefix string, logger *slog.Logger) *MQTT {
	return &MQTT{
		client:  client,
		prefix:  strings.TrimRight(prefix, "/"),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (m *MQTT) AlertInserted(ctx context.Context, a models.AlertRecord) error {
	return m.publish(ctx, fmt.Sprintf("%s/alerts/%s", m.prefix, strings.ToLower(string(a.DeviceMake))), a)
}

func (m *MQTT) RunFinished(ctx context.Context, s models.RunSummary) error {
	return m.publish(ctx, fmt.Sprintf("%s/runs/%s", m.prefix, strings.ToLower(string(s.Vendor))), s)
}

func (m *MQTT) Close() {
	if m.closeFn != nil {
		m.closeFn()
	}
}

func (m *MQTT) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal notification for %s: %w", topic, err)
	}
	token := m.client.Publish(topic, 1, false, payload)

	wait := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		wait = min(wait, time.Until(deadline))
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	m.logger.Debug("Notify: published", "topic", topic)
	return nil
}
