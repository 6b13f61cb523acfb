package mqtt

import (
	"errors"
	"fmt"
	"time"

	"lodepa-air/pkg/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	ErrNotConnected   = errors.New("mqtt: not connected")
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// Client publishes on a single auto-reconnecting paho connection
type Client struct {
	client         mqtt.Client
	broker         string
	publishTimeout time.Duration
	logger         *zap.Logger
}

// NewClient connects to cfg.Broker and waits at most cfg.ConnectTimeout
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		broker:         cfg.Broker,
		publishTimeout: cfg.PublishTimeout,
		logger:         logger.With(zap.String("broker", cfg.Broker)),
	}
	c.client = mqtt.NewClient(c.options(cfg))

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout(cfg)) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return c, nil
}

func (c *Client) options(cfg *config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout(cfg))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.logger.Info("Reconnecting to MQTT broker")
	})
	return opts
}

func connectTimeout(cfg *config.MQTTConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return 10 * time.Second
}

// Publish sends payload and waits for the broker ack, bounded by the publish timeout
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("publish to %s: %w", topic, ErrNotConnected)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if c.publishTimeout > 0 {
		if !token.WaitTimeout(c.publishTimeout) {
			return fmt.Errorf("publish to %s: %w", topic, ErrPublishTimeout)
		}
	} else {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Check reports ErrNotConnected while the connection is down
func (c *Client) Check() error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

// Disconnect waits up to 250ms for in-flight work
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
