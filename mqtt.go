package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes every state change under <topic>/<characteristic> and
// accepts <topic>/<characteristic>/set as another push channel.
type MQTT struct {
	client mqtt.Client
	topic  string
	sink   UpdateSink
	ctx    context.Context
	logger *slog.Logger
}

func NewMQTT(mqttUrl, topic string, sink UpdateSink, logger *slog.Logger) (*MQTT, error) {
	m := &MQTT{
		topic:  strings.TrimSuffix(topic, "/"),
		sink:   sink,
		ctx:    context.Background(),
		logger: logger,
	}

	opts := mqtt.NewClientOptions()
	opts.ClientID = "webwindow-" + strings.ReplaceAll(m.topic, "/", "-")
	opts.AutoReconnect = true

	if u, err := url.Parse(mqttUrl); err != nil {
		return nil, fmt.Errorf("mqtt url parse: %w", err)
	} else {
		opts.Servers = []*url.URL{u}

		if u.User != nil {
			opts.Username = u.User.Username()
			opts.Password, _ = u.User.Password()
		}
	}

	opts.SetOnConnectHandler(m.connected)
	opts.SetConnectionLostHandler(m.disconnected)

	m.client = mqtt.NewClient(opts)

	return m, nil
}

// Start retries the connection every second until it succeeds or ctx ends.
func (m *MQTT) Start(ctx context.Context) error {
	m.ctx = ctx

	retry := time.NewTicker(1 * time.Second)
	defer retry.Stop()

	m.logger.Info("Attempting to connect to MQTT.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			token := m.client.Connect()
			token.Wait()

			if err := token.Error(); err != nil {
				m.logger.Error("Connect attempt failed, will retry.", "err", err)
			} else {
				return nil
			}
		}
	}
}

func (m *MQTT) Stop() error {
	m.logger.Info("Disconnecting from MQTT.")
	m.client.Disconnect(1500)
	return nil
}

func (m *MQTT) connected(c mqtt.Client) {
	m.logger.Info("Connected to MQTT.")

	topic := m.topic + "/+/set"
	token := c.Subscribe(topic, 1, m.messageSet)

	if !token.WaitTimeout(5 * time.Second) {
		m.logger.Error("Failed to subscribe to set topic.", "err", token.Error(), "topic", topic)
	}
}

func (m *MQTT) disconnected(c mqtt.Client, err error) {
	m.logger.Error("Disconnected from MQTT, will reconnect.", "err", err)
}

func (m *MQTT) messageSet(c mqtt.Client, message mqtt.Message) {
	ch, err := m.characteristicFromTopic(message.Topic())
	if err != nil {
		m.logger.Warn("Invalid MQTT set message.", "topic", message.Topic(), "err", err)
		return
	}

	u := Update{Characteristic: ch, Value: strings.TrimSpace(string(message.Payload()))}
	if err := m.sink.Submit(m.ctx, u); err != nil {
		m.logger.Debug("Dropped MQTT update.", "characteristic", ch, "err", err)
	}
}

func (m *MQTT) characteristicFromTopic(topic string) (Characteristic, error) {
	name, ok := strings.CutPrefix(topic, m.topic+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCharacteristic, topic)
	}

	name, ok = strings.CutSuffix(name, "/set")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCharacteristic, topic)
	}

	return ParseCharacteristic(name)
}

func (m *MQTT) Updated(c Characteristic, s State) {
	m.publish(fmt.Sprintf("%s/%s", m.topic, c), strconv.Itoa(s.Value(c)))
}

func (m *MQTT) Failed(c Characteristic, err error) {
	m.publish(fmt.Sprintf("%s/%s/error", m.topic, c), err.Error())
}

func (m *MQTT) publish(topic, payload string) {
	if !m.client.IsConnectionOpen() {
		return
	}

	token := m.client.Publish(topic, 1, true, payload)
	go func() {
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			m.logger.Warn("Failed to publish to MQTT.", "topic", topic, "err", token.Error())
		}
	}()
}
