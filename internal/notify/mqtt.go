package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTOptions configures the MQTT notifier.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// MQTTNotifier publishes alerts with QoS 1.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	log    *logrus.Logger
}

// NewMQTTNotifier connects to the broker.
func NewMQTTNotifier(opts MQTTOptions, logger *logrus.Logger) (*MQTTNotifier, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.WithFields(logrus.Fields{
		"broker": opts.Broker,
		"topic":  opts.Topic,
	}).Info("Connected to MQTT broker")
	return newMQTTNotifier(client, opts.Topic, logger), nil
}

func newMQTTNotifier(client mqtt.Client, topic string, logger *logrus.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, log: logger}
}

// Notify implements Notifier.
func (m *MQTTNotifier) Notify(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	token := m.client.Publish(m.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", m.topic, err)
	}

	m.log.WithFields(logrus.Fields{
		"tick":  alert.Tick,
		"topic": m.topic,
	}).Debug("Alert published to MQTT")
	return nil
}

// Close disconnects from the broker.
func (m *MQTTNotifier) Close() {
	m.client.Disconnect(250)
}
